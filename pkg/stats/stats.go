package stats

import (
	"sync/atomic"
	"time"
)

// NetworkStats is written by a Proxy worker and read by its owner through a Cell.
type NetworkStats struct {
	Rtt Rtt
	Bps Bps
}

func (s *NetworkStats) Update(now time.Time) {
	s.Bps.Update(now)
}

func (s *NetworkStats) GetRtt() time.Duration {
	return s.Rtt.Latest
}

// Clone returns a deep copy that shares no memory with s.
func (s *NetworkStats) Clone() NetworkStats {
	return NetworkStats{
		Rtt: s.Rtt,
		Bps: s.Bps.clone(),
	}
}

// Cell is a single-slot snapshot buffer. Publish never blocks and Load always
// observes a complete snapshot.
type Cell struct {
	slot atomic.Pointer[NetworkStats]
}

func CreateCell() *Cell {
	c := &Cell{}
	c.slot.Store(&NetworkStats{})
	return c
}

func (c *Cell) Publish(s *NetworkStats) {
	snapshot := s.Clone()
	c.slot.Store(&snapshot)
}

func (c *Cell) Load() NetworkStats {
	return c.slot.Load().Clone()
}
