package agent

import (
	"time"

	"github.com/chriscow/utero-voice/pkg/clock"
)

type timerKind int

const (
	debounceTimer timerKind = iota
	retryTimer
)

func (k timerKind) String() string {
	if k == debounceTimer {
		return "debounce"
	}
	return "retry"
}

// timerFire is posted to the run loop when a timer elapses.
type timerFire struct {
	kind timerKind
	gen  uint64
}

// timer is a cancelable one-shot owned by the run loop. Every arm and cancel
// bumps the generation, so a fire that raced with cancellation is rejected by
// accept. cancel is safe on fired and cancelled timers.
type timer struct {
	kind  timerKind
	clock clock.Clock
	fires chan<- timerFire
	done  <-chan struct{}

	gen    uint64
	handle clock.Timer
	armed  bool
}

func newTimer(kind timerKind, c clock.Clock, fires chan<- timerFire, done <-chan struct{}) *timer {
	return &timer{kind: kind, clock: c, fires: fires, done: done}
}

func (t *timer) arm(d time.Duration) {
	t.cancel()
	t.gen++
	fire := timerFire{kind: t.kind, gen: t.gen}
	fires, done := t.fires, t.done
	t.armed = true
	t.handle = t.clock.AfterFunc(d, func() {
		select {
		case fires <- fire:
		case <-done:
		}
	})
}

func (t *timer) cancel() {
	if !t.armed {
		return
	}
	t.handle.Stop()
	t.handle = nil
	t.armed = false
	t.gen++
}

func (t *timer) pending() bool {
	return t.armed
}

// accept reports whether f is the live fire of this timer and disarms it.
func (t *timer) accept(f timerFire) bool {
	if !t.armed || f.gen != t.gen {
		return false
	}
	t.handle = nil
	t.armed = false
	return true
}
