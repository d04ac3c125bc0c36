// Package ctxtimer wraps one reactor timer per Task Context. Arm marshals
// a call onto the event thread that sets the timer; Stop marshals
// cancellation. Calls issued from the reactor thread itself run inline,
// which evloop.Loop already guarantees.
package ctxtimer

import (
	"time"

	"github.com/coro-sched/coro/internal/evloop"
)

// Timer is the per-Context wrapper around one evloop.Handle. The zero
// value is an idle timer with nothing armed.
type Timer struct {
	loop   *evloop.Loop
	handle *evloop.Handle
}

// New creates a Timer bound to loop. loop must outlive the Timer.
func New(loop *evloop.Loop) *Timer {
	return &Timer{loop: loop}
}

// Arm arms fire to run at deadline, replacing any previously armed
// deadline on this Timer. A zero deadline disarms without arming a new
// timer.
func (t *Timer) Arm(deadline time.Time, fire func()) {
	t.Stop()
	if deadline.IsZero() {
		return
	}
	t.handle = t.loop.ArmTimer(deadline, fire)
}

// Stop cancels whatever is currently armed, if anything.
func (t *Timer) Stop() {
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
}
