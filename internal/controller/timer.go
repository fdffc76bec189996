package controller

import (
	"time"

	"github.com/tucoflyer/flyer-controller/internal/config"
)

// fixedTimer polls elapsed wall-clock time against a period; missed ticks
// are never replayed, and Poll reports the dt actually elapsed since the
// last fire. The event loop discards that dt: its tick handlers step by the
// fixed 1/TICK_HZ.
type fixedTimer struct {
	period   time.Duration
	lastFire time.Time
}

func newFixedTimer(period time.Duration) *fixedTimer {
	return &fixedTimer{period: period, lastFire: time.Now()}
}

// Poll reports whether the timer has elapsed, and if so the dt since its
// last fire, then resets the fire instant.
func (t *fixedTimer) Poll() (fired bool, dt time.Duration) {
	now := time.Now()
	elapsed := now.Sub(t.lastFire)
	if elapsed < t.period {
		return false, 0
	}
	t.lastFire = now
	return true, elapsed
}

// loopTimers bundles the three independent fixed-rate timers the event loop
// polls each wake (spec §4.1).
type loopTimers struct {
	tick       *fixedTimer
	videoFrame *fixedTimer
	configPoll *fixedTimer
}

const (
	videoHz      = 30
	configPollHz = 2
)

func newLoopTimers() *loopTimers {
	return &loopTimers{
		tick:       newFixedTimer(time.Second / time.Duration(config.TickHz)),
		videoFrame: newFixedTimer(time.Second / videoHz),
		configPoll: newFixedTimer(time.Second / configPollHz),
	}
}
