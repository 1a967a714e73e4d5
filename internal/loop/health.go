package loop

import (
	"time"

	"go.uber.org/zap"
)

// Slack allowed on top of the target period before a tick counts as late
const lateFactor = 1.1

// LoopHealth watches the gap between consecutive ticks of a fixed-rate loop.
// It belongs to the loop driver; nothing else should call Check.
type LoopHealth struct {
	period   time.Duration
	lastTick time.Time

	ticks     uint64
	lateTicks uint64

	log *zap.Logger
}

func CreateLoopHealth(name string, targetTps float64, logger *zap.Logger) *LoopHealth {
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	if targetTps <= 0 {
		targetTps = 10
	}

	return &LoopHealth{
		period: time.Duration(float64(time.Second) / targetTps),
		log:    logger.With(zap.String("handler", "LoopHealth"), zap.String("loop", name)),
	}
}

// Check records a tick at now and reports whether the loop fell behind since
// the previous one. The first call only sets the baseline.
func (h *LoopHealth) Check(now time.Time) bool {
	if h.lastTick.IsZero() {
		h.lastTick = now
		return true
	}

	elapsed := now.Sub(h.lastTick)
	h.lastTick = now
	h.ticks++

	if elapsed <= time.Duration(float64(h.period)*lateFactor) {
		return true
	}

	h.lateTicks++
	h.log.Warn("Loop failed to keep up with its target rate",
		zap.Duration("period", h.period),
		zap.Duration("behind", elapsed-h.period))
	return false
}

func (h *LoopHealth) Period() time.Duration {
	return h.period
}

func (h *LoopHealth) Ticks() uint64 {
	return h.ticks
}

func (h *LoopHealth) LateTicks() uint64 {
	return h.lateTicks
}
