package session

import (
	goerrs "errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type fakeConn struct {
	connected bool
	updateErr error
	closed    bool
}

func (c *fakeConn) Update() error     { return c.updateErr }
func (c *fakeConn) IsConnected() bool { return c.connected }
func (c *fakeConn) Close()            { c.closed = true }

func TestSessionLifecycle(t *testing.T) {
	start := time.Now()
	conn := &fakeConn{}
	dials := 0

	inputs := Inputs[*fakeConn]{
		Now: start,
		Connect: func() (*fakeConn, error) {
			dials++
			return conn, nil
		},
		RetryDelay: time.Second,
		Logger:     zaptest.NewLogger(t),
	}

	var state State[*fakeConn] = JustLaunched[*fakeConn]{}

	state = Advance(state, inputs)
	if _, ok := state.(Disconnected[*fakeConn]); !ok {
		t.Fatalf("JustLaunched should advance to Disconnected, got %s", state.Name())
	}

	state = Advance(state, inputs)
	if _, ok := state.(Connecting[*fakeConn]); !ok || dials != 1 {
		t.Fatalf("expected Connecting after one dial, got %s (dials=%d)", state.Name(), dials)
	}

	state = Advance(state, inputs)
	if _, ok := state.(Connecting[*fakeConn]); !ok {
		t.Fatalf("should keep Connecting until the proxy connects, got %s", state.Name())
	}

	conn.connected = true
	inputs.Now = start.Add(time.Second)
	state = Advance(state, inputs)
	connected, ok := state.(Connected[*fakeConn])
	if !ok {
		t.Fatalf("expected Connected, got %s", state.Name())
	}
	if !connected.Since.Equal(inputs.Now) {
		t.Errorf("Since = %v, want %v", connected.Since, inputs.Now)
	}
	if client, ok := ClientOf[*fakeConn](state); !ok || client != conn {
		t.Errorf("ClientOf() should return the held client")
	}

	// Proxy reconnecting
	conn.connected = false
	state = Advance(state, inputs)
	if _, ok := state.(Connecting[*fakeConn]); !ok {
		t.Fatalf("expected Connecting while reconnecting, got %s", state.Name())
	}

	conn.updateErr = goerrs.New("proxy exited")
	state = Advance(state, inputs)
	disconnected, ok := state.(Disconnected[*fakeConn])
	if !ok {
		t.Fatalf("expected Disconnected after a client error, got %s", state.Name())
	}
	if !conn.closed {
		t.Errorf("client should be closed when the session drops")
	}
	if !disconnected.RetryAt.Equal(inputs.Now.Add(time.Second)) {
		t.Errorf("RetryAt = %v, want now + RetryDelay", disconnected.RetryAt)
	}
	if _, ok := ClientOf[*fakeConn](state); ok {
		t.Errorf("Disconnected holds no client")
	}
}

func TestDisconnectedWaitsForRetry(t *testing.T) {
	now := time.Now()
	dials := 0
	inputs := Inputs[*fakeConn]{
		Now: now,
		Connect: func() (*fakeConn, error) {
			dials++
			return nil, goerrs.New("refused")
		},
		RetryDelay: time.Second,
		Logger:     zaptest.NewLogger(t),
	}

	var state State[*fakeConn] = Disconnected[*fakeConn]{RetryAt: now.Add(time.Second)}
	state = Advance(state, inputs)
	if dials != 0 {
		t.Fatalf("should not dial before RetryAt")
	}

	inputs.Now = now.Add(time.Second)
	state = Advance(state, inputs)
	if dials != 1 {
		t.Fatalf("expected one dial, got %d", dials)
	}
	disconnected, ok := state.(Disconnected[*fakeConn])
	if !ok || !disconnected.RetryAt.Equal(inputs.Now.Add(time.Second)) {
		t.Errorf("failed dial should push RetryAt back, got %+v", state)
	}
}

func TestConnectingFailureDisconnects(t *testing.T) {
	conn := &fakeConn{updateErr: goerrs.New("refused")}
	state := Advance[*fakeConn](Connecting[*fakeConn]{Client: conn}, Inputs[*fakeConn]{Now: time.Now()})

	if _, ok := state.(Disconnected[*fakeConn]); !ok {
		t.Fatalf("expected Disconnected, got %s", state.Name())
	}
	if !conn.closed {
		t.Errorf("client should be closed")
	}
}
