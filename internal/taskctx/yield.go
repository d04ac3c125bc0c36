package taskctx

import (
	"time"

	"github.com/coro-sched/coro/internal/sleepstate"
)

// yieldStrategy is Sleep's zero-deadline no-op Wait Strategy: it registers
// no external wakeup source of its own. Instead it asks the reactor to
// deliver a self-wakeup once the loop next runs, which happens after the
// coroutine has physically handed control back on its pipe in the
// overwhelming common case, round-tripping the task through the ready
// queue exactly once. If the reactor callback somehow runs before the
// coroutine reaches its yield point, Sleep's own abort-before-yield check
// (step 6) observes the pending flag and returns immediately instead of
// deadlocking; that outcome skips the round trip but never blocks.
type yieldStrategy struct {
	c *Context
}

func (y *yieldStrategy) SetupWakeups() {
	epoch := y.c.sleepState.CurrentEpoch()
	y.c.loop.RunInEvLoop(func() {
		y.c.Wakeup(sleepstate.FlagWaitList, epoch)
	})
}

func (y *yieldStrategy) DisableWakeups() {}

func (y *yieldStrategy) Deadline() time.Time { return time.Time{} }

// Yield suspends the calling task just long enough to round-trip it
// through the ready queue, giving other queued tasks a turn. It must only
// be called from inside the task's own payload.
func (c *Context) Yield() sleepstate.Flags {
	return c.Sleep(&yieldStrategy{c: c})
}
