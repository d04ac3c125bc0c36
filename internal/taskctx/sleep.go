package taskctx

import (
	"time"

	"github.com/coro-sched/coro/internal/sleepstate"
	"github.com/coro-sched/coro/internal/waitstrategy"
)

// Sleep suspends the calling task's coroutine until ws delivers a wakeup,
// the armed deadline elapses, or cancellation is forced through. It must
// only be called from inside the task's own payload. The eight steps below
// are the literal Sleep/Wakeup protocol:
//
//  1. record intent to sleep
//  2. stamp a fresh epoch
//  3. register with the wait strategy (may synchronously self-wake)
//  4. self-wake with CancelRequest if already cancellable-and-cancelled
//  5. arm the deadline timer
//  6. yield to the worker, unless a wakeup already landed in steps 3-5
//  7. on resume, tear down registration and timer
//  8. report the primary wakeup source
func (c *Context) Sleep(ws waitstrategy.Strategy) sleepstate.Flags {
	c.checkMagicAlive()
	c.yieldReason = YieldWaiting
	c.waitStrategy = ws

	epoch := c.sleepState.DoStartSleep() // 1, 2

	ws.SetupWakeups() // 3

	if c.ShouldCancel() { // 4
		c.WakeupNoEpoch(sleepstate.FlagCancelRequest)
	}

	c.armSleepTimer(epoch, ws.Deadline()) // 5

	if flags, _ := c.sleepState.Load(); sleepstate.Primary(flags) == sleepstate.FlagNone {
		c.yieldedToWorker.Store(true)
		c.pipe.Done <- struct{}{}
		<-c.pipe.Resume
		c.yieldedToWorker.Store(false)
	}
	// else: a wakeup already landed before the coroutine physically
	// yielded, so Sleep returns immediately without a context switch.

	ws.DisableWakeups()  // 7
	c.deadlineTimer.Stop()
	c.waitStrategy = nil

	final := c.sleepState.DoFinishSleep() // 8
	source := sleepstate.Primary(final)
	c.wakeupSource.Store(uint32(source))
	return source
}

// armSleepTimer arms the single per-Context deadline timer with whichever
// deadline takes priority for this sleep: if the cancel deadline has
// already passed, it is armed in place of the wait strategy's deadline and
// forces cancellation on fire; otherwise the wait strategy's own deadline
// is armed, delivering a plain DeadlineTimer wakeup.
func (c *Context) armSleepTimer(epoch sleepstate.Epoch, wsDeadline time.Time) {
	if !c.cancelAt.IsZero() && !c.cancelAt.After(time.Now()) {
		c.deadlineTimer.Arm(c.cancelAt, func() {
			c.cancelReason.CompareAndSwap(int32(CancelNone), int32(CancelDeadline))
			c.WakeupNoEpoch(sleepstate.FlagCancelRequest)
		})
		return
	}
	if wsDeadline.IsZero() {
		return
	}
	c.deadlineTimer.Arm(wsDeadline, func() {
		c.Wakeup(sleepstate.FlagDeadlineTimer, epoch)
	})
}

// Wakeup delivers source as a wakeup, dropped silently if epoch no longer
// matches the task's current sleep cycle. Implements waitstrategy.Waker.
func (c *Context) Wakeup(source sleepstate.Flags, epoch sleepstate.Epoch) {
	ok, prior := c.sleepState.FetchOrSleepFlagsAtEpoch(source, epoch)
	if !ok {
		return
	}
	if sleepstate.HasYielded(prior) && c.yieldedToWorker.Load() {
		c.scheduleBack()
	}
}

// WakeupNoEpoch delivers source bypassing the epoch check, used for
// level-triggered cancellation so it cannot be lost in the gap between one
// sleep cycle ending and the next beginning. Implements waitstrategy.Waker.
func (c *Context) WakeupNoEpoch(source sleepstate.Flags) {
	prior, _ := c.sleepState.FetchOrSleepFlags(source)
	if sleepstate.HasYielded(prior) && c.yieldedToWorker.Load() {
		c.scheduleBack()
	}
}

// RequestCancel asks the task to cancel for reason. The first call wins;
// later calls are no-ops, matching the write-once cancel reason. If the
// task is currently cancellable and suspended, delivery happens now;
// otherwise it is deferred until the next Sleep call observes
// ShouldCancel, or until SetCancellable(true) re-enables delivery.
func (c *Context) RequestCancel(reason CancelReason) {
	if !c.cancelReason.CompareAndSwap(int32(CancelNone), int32(reason)) {
		return
	}
	if c.cancellable.Load() && c.GetState() == StateSuspended {
		c.WakeupNoEpoch(sleepstate.FlagCancelRequest)
	}
}

// CancellationReason returns the write-once cancel reason, or CancelNone if
// no cancellation has been requested.
func (c *Context) CancellationReason() CancelReason {
	return CancelReason(c.cancelReason.Load())
}

// ShouldCancel reports whether a cancellation is both requested and
// currently deliverable (the task has not disabled cancellation).
func (c *Context) ShouldCancel() bool {
	return c.cancellable.Load() && c.CancellationReason() != CancelNone
}

// SetCancellable toggles whether this task currently accepts delivery of a
// pending cancellation, returning the previous value. Re-enabling
// cancellation while a cancel is already pending and the task is suspended
// delivers it immediately instead of waiting for the next Sleep.
func (c *Context) SetCancellable(v bool) bool {
	old := c.cancellable.Swap(v)
	if v && !old && c.CancellationReason() != CancelNone && c.GetState() == StateSuspended {
		c.WakeupNoEpoch(sleepstate.FlagCancelRequest)
	}
	return old
}

// CancelDeadline returns the installed cancel deadline, or the zero Time if
// none was set at construction.
func (c *Context) CancelDeadline() time.Time {
	return c.cancelAt
}
