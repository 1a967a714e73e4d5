package monitor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	utils "github.com/sessamekesh/chessnet/pkg/util"
	"go.uber.org/zap"
)

const (
	DefaultListenEndpoint = "/stats"
	DefaultInterval       = time.Second

	// Dashboards only ever send close frames
	maxReadMessageSize = 512
)

type MonitorParams struct {
	ListenAddress    string
	ListenEndpoint   string
	AllowAllHosts    bool
	AllowlistedHosts []string
	DenylistedHosts  []string

	// How often each dashboard receives the latest frame
	Interval time.Duration

	Logger *zap.Logger
}

// Monitor streams StatsFrames to WebSocket dashboards. The server loop calls
// Publish; every connected dashboard receives the most recent frame once per
// Interval. Frames published between two sends are skipped.
type Monitor struct {
	upgrader *websocket.Upgrader
	params   MonitorParams

	latest   atomic.Pointer[[]byte]
	sequence atomic.Uint64

	mut_connections sync.RWMutex
	connections     map[string]*websocket.Conn

	log       *zap.Logger
	stringGen *utils.RandomStringGenerator
}

func checkOrigin(r *http.Request, params MonitorParams) bool {
	origin := r.Header.Get("Origin")
	if utils.Contains(origin, params.DenylistedHosts) {
		return false
	}

	if params.AllowAllHosts {
		return true
	}

	return utils.Contains(origin, params.AllowlistedHosts)
}

func CreateMonitor(params MonitorParams) *Monitor {
	if params.Logger == nil {
		params.Logger = zap.Must(zap.NewDevelopment())
	}
	if params.ListenEndpoint == "" {
		params.ListenEndpoint = DefaultListenEndpoint
	}
	if params.Interval <= 0 {
		params.Interval = DefaultInterval
	}

	return &Monitor{
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, params)
			},
		},
		params: params,

		mut_connections: sync.RWMutex{},
		connections:     make(map[string]*websocket.Conn),

		log:       params.Logger.With(zap.String("handler", "Monitor")),
		stringGen: utils.CreateRandomStringGenerator(time.Now().UnixMicro()),
	}
}

// Publish encodes frame and makes it the one sent on the next interval. Safe
// to call from any goroutine.
func (m *Monitor) Publish(frame StatsFrame) {
	encoded := BuildStatsFrame(frame)
	m.latest.Store(&encoded)
	m.sequence.Add(1)
}

func (m *Monitor) ConnectionCount() int {
	m.mut_connections.RLock()
	defer m.mut_connections.RUnlock()
	return len(m.connections)
}

// Handler serves the WebSocket endpoint. Connections end when ctx is done.
func (m *Monitor) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(m.params.ListenEndpoint, func(w http.ResponseWriter, r *http.Request) {
		m.onWsRequest(ctx, w, r)
	})
	return mux
}

func (m *Monitor) onWsRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	connId := m.stringGen.GetRandomString(6)
	log := m.log.With(zap.String("wsConnId", connId))

	log.Info("New monitor request", zap.String("remoteAddr", r.RemoteAddr))
	c, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Failed to upgrade HTTP request to WebSocket connection", zap.Error(err))
		return
	}
	defer c.Close()

	c.SetReadLimit(maxReadMessageSize)

	func() {
		m.mut_connections.Lock()
		defer m.mut_connections.Unlock()
		m.connections[connId] = c
	}()
	defer func() {
		m.mut_connections.Lock()
		defer m.mut_connections.Unlock()
		delete(m.connections, connId)
		log.Debug("Removed dashboard from monitor connections map")
	}()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		m.readUntilClosed(c, log)
	}()

	ticker := time.NewTicker(m.params.Interval)
	defer ticker.Stop()

	lastSent := uint64(0)
	for {
		select {
		case <-ctx.Done():
			c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		case <-readerDone:
			return
		case <-ticker.C:
			sequence := m.sequence.Load()
			frame := m.latest.Load()
			if frame == nil || sequence == lastSent {
				continue
			}

			c.SetWriteDeadline(time.Now().Add(m.params.Interval))
			if err := c.WriteMessage(websocket.BinaryMessage, *frame); err != nil {
				log.Info("Failed to send stats frame, dropping dashboard", zap.Error(err))
				return
			}
			lastSent = sequence
		}
	}
}

func (m *Monitor) readUntilClosed(c *websocket.Conn, log *zap.Logger) {
	expectedCloseErrors := []int{websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived}
	for {
		msgType, payload, err := c.ReadMessage()
		if err != nil {
			var closeError *websocket.CloseError
			switch {
			case errors.As(err, &closeError) && websocket.IsCloseError(err, expectedCloseErrors...):
				log.Info("Dashboard closed connection", zap.Int("closeCode", closeError.Code), zap.String("closeMsg", closeError.Text))
			case websocket.IsUnexpectedCloseError(err, expectedCloseErrors...):
				log.Warn("Dashboard closed connection unexpectedly", zap.Error(err))
			case errors.Is(err, net.ErrClosed):
				log.Debug("Monitor closed connection")
			default:
				log.Warn("Unexpected WebSocket error on read", zap.Error(err))
			}
			return
		}

		log.Debug("Ignoring message from dashboard", zap.Int("msgType", msgType), zap.Int("size", len(payload)))
	}
}

// Start serves the monitor on ListenAddress until ctx is done.
func (m *Monitor) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              m.params.ListenAddress,
		Handler:           m.Handler(ctx),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()

		m.log.Info("Starting monitor server", zap.String("addr", m.params.ListenAddress), zap.String("endpoint", m.params.ListenEndpoint))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("Unexpected monitor server close", zap.Error(err))
			errs <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		select {
		case <-ctx.Done():
		case err := <-errs:
			errs <- err
			return
		}

		shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownRelease()
		m.log.Info("Attempting to trigger shutdown of monitor server")

		if err := server.Shutdown(shutdownCtx); err != nil {
			m.log.Error("Failed to gracefully shut down monitor server", zap.Error(err))
			return
		}
		m.log.Info("Successfully shutdown monitor server")
	}()

	wg.Wait()

	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}
