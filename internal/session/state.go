package session

import (
	"time"

	"go.uber.org/zap"
)

const DefaultRetryDelay = 2 * time.Second

// Conn is what the state machine needs from a transport client.
type Conn interface {
	Update() error
	IsConnected() bool
	Close()
}

// State is one of JustLaunched, Disconnected, Connecting or Connected.
type State[C Conn] interface {
	Name() string
	sessionState()
}

type JustLaunched[C Conn] struct{}

type Disconnected[C Conn] struct {
	RetryAt time.Time
}

// Connecting holds a client whose proxy has not reported a live connection
// yet, either on first dial or while reconnecting.
type Connecting[C Conn] struct {
	Client C
}

type Connected[C Conn] struct {
	Client C
	Since  time.Time
}

func (JustLaunched[C]) Name() string { return "JustLaunched" }
func (Disconnected[C]) Name() string { return "Disconnected" }
func (Connecting[C]) Name() string   { return "Connecting" }
func (Connected[C]) Name() string    { return "Connected" }

func (JustLaunched[C]) sessionState() {}
func (Disconnected[C]) sessionState() {}
func (Connecting[C]) sessionState()   {}
func (Connected[C]) sessionState()    {}

type Inputs[C Conn] struct {
	Now time.Time
	// Starts a new client. Called only from Disconnected once RetryAt has passed.
	Connect    func() (C, error)
	RetryDelay time.Duration

	Logger *zap.Logger
}

// Advance returns the state that follows state. The only side effects are on
// the client a state holds: it is updated every call and closed when the
// session drops back to Disconnected.
func Advance[C Conn](state State[C], inputs Inputs[C]) State[C] {
	log := inputs.Logger
	if log == nil {
		log = zap.NewNop()
	}
	retryDelay := inputs.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	switch s := state.(type) {
	case JustLaunched[C]:
		return Disconnected[C]{RetryAt: inputs.Now}

	case Disconnected[C]:
		if inputs.Now.Before(s.RetryAt) {
			return s
		}

		client, err := inputs.Connect()
		if err != nil {
			log.Warn("Could not start client, retrying later", zap.Error(err), zap.Duration("retryDelay", retryDelay))
			return Disconnected[C]{RetryAt: inputs.Now.Add(retryDelay)}
		}
		return Connecting[C]{Client: client}

	case Connecting[C]:
		if err := s.Client.Update(); err != nil {
			log.Warn("Connection attempt failed", zap.Error(err))
			s.Client.Close()
			return Disconnected[C]{RetryAt: inputs.Now.Add(retryDelay)}
		}
		if s.Client.IsConnected() {
			log.Info("Connected")
			return Connected[C]{Client: s.Client, Since: inputs.Now}
		}
		return s

	case Connected[C]:
		if err := s.Client.Update(); err != nil {
			log.Warn("Disconnected", zap.Error(err), zap.Duration("uptime", inputs.Now.Sub(s.Since)))
			s.Client.Close()
			return Disconnected[C]{RetryAt: inputs.Now.Add(retryDelay)}
		}
		if !s.Client.IsConnected() {
			log.Info("Connection dropped, waiting for reconnect")
			return Connecting[C]{Client: s.Client}
		}
		return s
	}

	log.Error("Unknown session state, starting over", zap.String("state", state.Name()))
	return JustLaunched[C]{}
}

// ClientOf returns the client held by state, if any.
func ClientOf[C Conn](state State[C]) (C, bool) {
	switch s := state.(type) {
	case Connecting[C]:
		return s.Client, true
	case Connected[C]:
		return s.Client, true
	}

	var zero C
	return zero, false
}
