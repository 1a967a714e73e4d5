package proxy

import "sync/atomic"

// ConnectionFlags is shared between a Proxy worker and its owner so either
// can check liveness without going through the channel.
type ConnectionFlags struct {
	running   atomic.Bool
	connected atomic.Bool
}

func CreateConnectionFlags() *ConnectionFlags {
	flags := &ConnectionFlags{}
	flags.running.Store(true)
	return flags
}

func (f *ConnectionFlags) IsRunning() bool {
	return f.running.Load()
}

func (f *ConnectionFlags) IsConnected() bool {
	return f.connected.Load()
}

// Stop asks the worker to exit at the top of its next tick.
func (f *ConnectionFlags) Stop() {
	f.running.Store(false)
}

func (f *ConnectionFlags) setConnected(connected bool) {
	f.connected.Store(connected)
}
