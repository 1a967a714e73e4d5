package stats

import "time"

const (
	WindowLength = 10 * time.Second
	bucketLength = time.Second
)

type WindowEntry struct {
	Start         time.Time
	BytesSent     uint64
	BytesReceived uint64
}

// Bps tracks lifetime byte totals and a rolling window of per-second buckets.
type Bps struct {
	TotalSent     uint64
	TotalReceived uint64

	window []WindowEntry
}

func (b *Bps) Update(now time.Time) {
	cutoff := now.Add(-WindowLength)
	kept := b.window[:0]
	for _, entry := range b.window {
		if !entry.Start.Before(cutoff) {
			kept = append(kept, entry)
		}
	}
	b.window = kept

	if len(b.window) == 0 || now.Sub(b.window[len(b.window)-1].Start) >= bucketLength {
		b.window = append(b.window, WindowEntry{Start: now})
	}
}

func (b *Bps) current(now time.Time) *WindowEntry {
	if len(b.window) == 0 {
		b.Update(now)
	}
	return &b.window[len(b.window)-1]
}

func (b *Bps) OnBytesSent(now time.Time, n uint64) {
	b.TotalSent += n
	b.current(now).BytesSent += n
}

func (b *Bps) OnBytesReceived(now time.Time, n uint64) {
	b.TotalReceived += n
	b.current(now).BytesReceived += n
}

func (b *Bps) ReceivedLast10Sec() uint64 {
	var total uint64
	for _, entry := range b.window {
		total += entry.BytesReceived
	}
	return total
}

func (b *Bps) SentLast10Sec() uint64 {
	var total uint64
	for _, entry := range b.window {
		total += entry.BytesSent
	}
	return total
}

func (b *Bps) BpsReceivedLast10Sec() uint64 {
	return b.ReceivedLast10Sec() / uint64(WindowLength/time.Second)
}

func (b *Bps) BpsSentLast10Sec() uint64 {
	return b.SentLast10Sec() / uint64(WindowLength/time.Second)
}

func (b *Bps) Buckets() int {
	return len(b.window)
}

func (b Bps) clone() Bps {
	b.window = append([]WindowEntry(nil), b.window...)
	return b
}
