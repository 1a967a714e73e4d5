package stats

import "time"

const DefaultPingTimeoutFactor = 10

type Rtt struct {
	Latest time.Duration

	// Zero when no ping is in flight
	PingSentAt time.Time
	LastPing   time.Time
	LastPong   time.Time
}

func (r *Rtt) HasRtt() bool {
	return !r.LastPong.IsZero()
}

func (r *Rtt) PingOutstanding() bool {
	return !r.PingSentAt.IsZero()
}

// NeedsPing reports whether a new ping should go out. A ping that has been
// outstanding for longer than DefaultPingTimeoutFactor intervals is abandoned.
func (r *Rtt) NeedsPing(now time.Time, interval time.Duration) bool {
	if r.PingOutstanding() {
		return now.Sub(r.PingSentAt) > interval*DefaultPingTimeoutFactor
	}
	return r.LastPing.IsZero() || now.Sub(r.LastPing) >= interval
}

func (r *Rtt) OnPingSent(now time.Time) {
	r.PingSentAt = now
	r.LastPing = now
}

func (r *Rtt) OnPongReceived(now time.Time) {
	if !r.PingOutstanding() {
		return
	}
	r.Latest = now.Sub(r.PingSentAt)
	r.PingSentAt = time.Time{}
	r.LastPong = now
}

// Reset forgets any in-flight ping, used when the underlying connection is replaced.
func (r *Rtt) Reset() {
	r.PingSentAt = time.Time{}
	r.LastPing = time.Time{}
}
