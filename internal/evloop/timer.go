package evloop

import "time"

// Handle references one armed one-shot timer. Stop is safe to call more
// than once and safe to call after the timer has already fired.
type Handle struct {
	loop  *Loop
	entry *timerEntry
}

// ArmTimer schedules fire to run on the reactor goroutine at deadline. If
// called from the reactor goroutine itself, the heap mutation happens
// inline; otherwise it is marshaled through RunInEvLoop.
func (l *Loop) ArmTimer(deadline time.Time, fire func()) *Handle {
	h := &Handle{loop: l}
	l.RunInEvLoop(func() {
		h.entry = l.armTimer(deadline, fire)
	})
	return h
}

// Stop cancels the timer if it has not yet fired. Marshaled the same way
// ArmTimer is.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.loop.RunInEvLoop(func() {
		if h.entry != nil {
			h.loop.cancelTimer(h.entry)
		}
	})
}
