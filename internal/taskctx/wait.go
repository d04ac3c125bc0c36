package taskctx

import (
	"context"
	"fmt"
	"time"

	"github.com/coro-sched/coro/internal/sleepstate"
	"github.com/coro-sched/coro/internal/waitstrategy"
)

// Wait blocks the calling task until target finishes, or forever if no
// deadline is installed. ctx must carry the caller's own Context (set by
// runCoroutine via WithContext); calling Wait from outside any coroutine
// returns ErrNotInCoroutineContext. A task waiting on itself is a deadlock
// and panics rather than hanging the sole coroutine that could ever wake it.
func (target *Context) Wait(ctx context.Context) error {
	return target.WaitUntil(ctx, time.Time{})
}

// WaitUntil is Wait with an explicit deadline. A zero deadline means wait
// indefinitely. Returns ErrWaitInterruptedByCancel if the caller was
// cancelled while waiting, or target's own result error once target
// finishes.
func (target *Context) WaitUntil(ctx context.Context, deadline time.Time) error {
	caller, ok := FromContext(ctx)
	if !ok {
		return ErrNotInCoroutineContext
	}
	if caller == target {
		panic(fmt.Sprintf("taskctx: task %d waited on itself", target.id))
	}
	if target.IsFinished() {
		return target.err
	}

	ws := &finishWaitStrategy{target: target, caller: caller, deadline: deadline}
	source := caller.Sleep(ws)
	switch source {
	case sleepstate.FlagCancelRequest:
		return ErrWaitInterruptedByCancel
	default:
		if target.IsFinished() {
			return target.err
		}
		// Deadline elapsed, or stray wakeup, before target finished.
		return nil
	}
}

// finishWaitStrategy is the Wait Strategy a task installs on itself while
// waiting for another task's finishWaiters list to broadcast.
type finishWaitStrategy struct {
	target   *Context
	caller   *Context
	deadline time.Time
	node     *waitstrategy.Node
}

func (s *finishWaitStrategy) SetupWakeups() {
	epoch := s.caller.sleepState.CurrentEpoch()
	s.node = s.target.finishWaiters.Add(s.caller, sleepstate.FlagWaitList, epoch)
	if s.target.IsFinished() {
		// target finished between HeavyList.Add and the lock it shares
		// with Broadcast; Broadcast already swapped the list out from
		// under us, so self-wake to close the race.
		s.caller.Wakeup(sleepstate.FlagWaitList, epoch)
	}
}

func (s *finishWaitStrategy) DisableWakeups() {
	s.node.Remove()
}

func (s *finishWaitStrategy) Deadline() time.Time {
	return s.deadline
}
