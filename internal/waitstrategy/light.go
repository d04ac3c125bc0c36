package waitstrategy

import (
	"sync/atomic"

	"github.com/coro-sched/coro/internal/sleepstate"
)

// slot is the single occupant of a LightList.
type slot struct {
	waker  Waker
	source sleepstate.Flags
	epoch  sleepstate.Epoch
}

// LightList is a lock-free, at-most-one-waiter wait list used for
// single-producer futures (pkg/scheduler's Future). Races between a registering waiter
// and a concurrent Signal are resolved purely by the CAS on the slot plus
// the sleep-state epoch check inside Wakeup itself — this list never takes
// a mutex.
type LightList struct {
	occupant atomic.Pointer[slot]
}

// NewLightList constructs an empty list.
func NewLightList() *LightList {
	return &LightList{}
}

// Add registers the single waiter. It panics if a waiter is already
// registered, since Light wait lists guarantee at most one waiter by
// contract — callers (futures) enforce this at a higher level by
// construction (one awaiter at a time).
func (l *LightList) Add(waker Waker, source sleepstate.Flags, epoch sleepstate.Epoch) {
	s := &slot{waker: waker, source: source, epoch: epoch}
	if !l.occupant.CompareAndSwap(nil, s) {
		panic("waitstrategy: LightList.Add called with a waiter already registered")
	}
}

// Remove unregisters the current waiter, if any, without waking it. Safe
// to call when nothing is registered.
func (l *LightList) Remove() {
	l.occupant.Store(nil)
}

// Signal wakes the registered waiter, if any, and clears the slot. A
// no-op if nothing is registered (the waiter already woke via a different
// path, e.g. a deadline timer).
func (l *LightList) Signal() {
	s := l.occupant.Swap(nil)
	if s == nil {
		return
	}
	s.waker.Wakeup(s.source, s.epoch)
}

// Occupied reports whether a waiter is currently registered, for
// diagnostics.
func (l *LightList) Occupied() bool {
	return l.occupant.Load() != nil
}
