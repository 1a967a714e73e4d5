package stats

import (
	"sync"
	"testing"
	"time"
)

func TestRtt_PingPong(t *testing.T) {
	start := time.Unix(1000, 0)
	interval := 100 * time.Millisecond
	r := Rtt{}

	if !r.NeedsPing(start, interval) {
		t.Fatal("a fresh tracker should want a ping")
	}
	r.OnPingSent(start)

	if r.NeedsPing(start.Add(interval), interval) {
		t.Error("should not ping again while a ping is outstanding")
	}

	r.OnPongReceived(start.Add(30 * time.Millisecond))
	if r.Latest != 30*time.Millisecond {
		t.Errorf("Latest = %v, want 30ms", r.Latest)
	}
	if r.PingOutstanding() {
		t.Error("pong should clear the outstanding ping")
	}
	if !r.HasRtt() {
		t.Error("HasRtt() should be true after a pong")
	}

	if r.NeedsPing(start.Add(50*time.Millisecond), interval) {
		t.Error("interval has not elapsed since the last ping")
	}
	if !r.NeedsPing(start.Add(interval), interval) {
		t.Error("interval elapsed, should ping")
	}
}

func TestRtt_UnsolicitedPongIsIgnored(t *testing.T) {
	r := Rtt{Latest: 5 * time.Millisecond}
	r.OnPongReceived(time.Now())
	if r.Latest != 5*time.Millisecond || r.HasRtt() {
		t.Errorf("unsolicited pong changed state: %+v", r)
	}
}

func TestRtt_StalePingIsAbandoned(t *testing.T) {
	start := time.Unix(1000, 0)
	interval := 10 * time.Millisecond
	r := Rtt{}
	r.OnPingSent(start)

	if r.NeedsPing(start.Add(interval*DefaultPingTimeoutFactor), interval) {
		t.Error("ping is not yet stale")
	}
	if !r.NeedsPing(start.Add(interval*DefaultPingTimeoutFactor+time.Millisecond), interval) {
		t.Error("stale ping should be replaced")
	}
}

func TestBps_RollingWindow(t *testing.T) {
	start := time.Unix(2000, 0)
	b := Bps{}

	for i := 0; i < 15; i++ {
		now := start.Add(time.Duration(i) * time.Second)
		b.Update(now)
		b.OnBytesReceived(now, 100)
		b.OnBytesSent(now, 10)
	}

	if b.TotalReceived != 1500 || b.TotalSent != 150 {
		t.Errorf("totals = %d/%d, want 1500/150", b.TotalReceived, b.TotalSent)
	}
	if b.Buckets() > 11 {
		t.Errorf("window holds %d buckets, want at most 11", b.Buckets())
	}
	if got := b.ReceivedLast10Sec(); got < 1000 || got > 1100 {
		t.Errorf("ReceivedLast10Sec() = %d, want about 1000", got)
	}
	if got := b.BpsReceivedLast10Sec(); got < 100 || got > 110 {
		t.Errorf("BpsReceivedLast10Sec() = %d, want about 100", got)
	}
}

func TestBps_SameSecondSharesBucket(t *testing.T) {
	start := time.Unix(3000, 0)
	b := Bps{}
	b.Update(start)
	b.OnBytesSent(start, 1)
	b.Update(start.Add(500 * time.Millisecond))
	b.OnBytesSent(start.Add(500*time.Millisecond), 1)

	if b.Buckets() != 1 {
		t.Errorf("Buckets() = %d, want 1", b.Buckets())
	}
	if b.SentLast10Sec() != 2 {
		t.Errorf("SentLast10Sec() = %d, want 2", b.SentLast10Sec())
	}
}

func TestCell_SnapshotsAreIndependent(t *testing.T) {
	c := CreateCell()
	s := NetworkStats{}
	now := time.Unix(4000, 0)
	s.Update(now)
	s.Bps.OnBytesReceived(now, 42)

	c.Publish(&s)
	s.Bps.OnBytesReceived(now, 1000)

	loaded := c.Load()
	if loaded.Bps.TotalReceived != 42 {
		t.Errorf("snapshot TotalReceived = %d, want 42", loaded.Bps.TotalReceived)
	}
	if loaded.Bps.ReceivedLast10Sec() != 42 {
		t.Errorf("snapshot window was mutated by the writer: %d", loaded.Bps.ReceivedLast10Sec())
	}
}

func TestCell_ConcurrentPublishAndLoad(t *testing.T) {
	c := CreateCell()
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s := NetworkStats{}
		now := time.Unix(5000, 0)
		for i := 0; i < 1000; i++ {
			s.Update(now)
			s.Bps.OnBytesSent(now, 1)
			c.Publish(&s)
		}
	}()

	var last uint64
	for i := 0; i < 1000; i++ {
		snapshot := c.Load()
		if snapshot.Bps.TotalSent < last {
			t.Fatalf("snapshot went backwards: %d < %d", snapshot.Bps.TotalSent, last)
		}
		if snapshot.Bps.TotalSent != snapshot.Bps.SentLast10Sec() {
			t.Fatalf("torn snapshot: total %d, window %d", snapshot.Bps.TotalSent, snapshot.Bps.SentLast10Sec())
		}
		last = snapshot.Bps.TotalSent
	}

	wg.Wait()
}
