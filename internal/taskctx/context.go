// Package taskctx implements the Task Context: the per-task state machine
// that multiplexes a Go goroutine as a stackful coroutine, the Sleep/Wakeup
// protocol that arbitrates between the sleeping task and any number of
// racing wakers, and structured cancellation.
//
// A Context's payload runs on a dedicated goroutine, parked on a TaskPipe
// between DoStep calls from its owning Task Processor. Sleep hands that
// goroutine's control back to DoStep without tearing it down, the same way
// a stackful coroutine yields without unwinding its stack.
package taskctx

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coro-sched/coro/internal/coro"
	"github.com/coro-sched/coro/internal/ctxtimer"
	"github.com/coro-sched/coro/internal/evloop"
	"github.com/coro-sched/coro/internal/registry"
	"github.com/coro-sched/coro/internal/sleepstate"
	"github.com/coro-sched/coro/internal/waitstrategy"
)

// Payload is the user function a task runs. ctx carries the Context itself
// (retrievable with FromContext) so nested calls can reach CurrentTask-style
// facades without a goroutine-local registry.
type Payload func(ctx context.Context, self *Context) (any, error)

// Owner is the minimal surface a Task Processor exposes back to a Context:
// admission-controlled (re)scheduling. Both Construct and every wakeup
// reschedule go through the same Schedule call, so a resumed task can still
// be rejected under overload unless it is Critical.
type Owner interface {
	Schedule(ctx *Context) error
}

// Context is one task's state machine. Exported fields are deliberately
// absent; everything is accessed through methods so invariants stay in one
// place.
type Context struct {
	id         uint64 // opaque identity, stable for the task's lifetime
	traceID    uuid.UUID
	owner      Owner
	log        zerolog.Logger
	importance Importance
	payload    Payload

	state atomic.Int32 // State

	pipe    *coro.Pipe
	release func()
	started bool
	magic   uint32
	loop    *evloop.Loop

	yieldReason YieldReason
	result      any
	err         error
	panicValue  any

	cancellable  atomic.Bool
	cancelReason atomic.Int32 // CancelReason
	cancelAt     time.Time

	sleepState      sleepstate.State
	yieldedToWorker atomic.Bool
	waitStrategy    waitstrategy.Strategy
	wakeupSource    atomic.Uint32
	deadlineTimer   *ctxtimer.Timer

	finishWaiters *waitstrategy.HeavyList

	detachMu      sync.Mutex
	detachedToken *registry.Token // optional; set by SetDetached

	localMu sync.Mutex
	local   map[any]any
}

// New constructs a Context in state New and immediately schedules it, per
// the task processor's admission-controlled Schedule contract. deadline, if
// non-zero, installs the cancel deadline: the point after which a pending
// or future cancellation is forced through regardless of cancellability.
func New(owner Owner, coroPool *coro.Pool, loop *evloop.Loop, log zerolog.Logger, importance Importance, deadline time.Time, payload Payload) *Context {
	id := idCounter.Add(1)
	traceID := uuid.New()
	c := &Context{
		id:            id,
		traceID:       traceID,
		owner:         owner,
		payload:       payload,
		importance:    importance,
		cancelAt:      deadline,
		loop:          loop,
		deadlineTimer: ctxtimer.New(loop),
		finishWaiters: waitstrategy.NewHeavyList(),
		log:           log.With().Uint64("task_id", id).Str("trace_id", traceID.String()).Logger(),
	}
	c.cancellable.Store(true)
	c.state.Store(int32(StateNew))
	c.sleepState.Store(sleepstate.FlagBootstrap, 0)
	c.wakeupSource.Store(uint32(sleepstate.FlagBootstrap))

	pipe, release := coroPool.Acquire()
	c.pipe = pipe
	c.release = release
	c.armMagic()

	c.setState(StateQueued)
	if err := owner.Schedule(c); err != nil {
		c.forceFinishUnscheduled(err)
	}
	return c
}

// idCounter hands out the opaque 64-bit task identity. A real stackful
// coroutine runtime uses the task's own stack pointer for this; Go gives
// goroutines no such stable address, so a monotonic counter plays the role.
var idCounter atomic.Uint64

// ID returns the task's opaque 64-bit identity.
func (c *Context) ID() uint64 { return c.id }

// TraceID returns the externally-visible uuid stamped on this task for
// logging and admin API display.
func (c *Context) TraceID() uuid.UUID { return c.traceID }

// Importance reports the admission-control class this task was created with.
func (c *Context) Importance() Importance { return c.importance }

// GetState returns the current lifecycle state.
func (c *Context) GetState() State { return State(c.state.Load()) }

func (c *Context) setState(s State) {
	c.state.Store(int32(s))
}

// IsFinished reports whether the task has reached a terminal state.
func (c *Context) IsFinished() bool { return c.GetState().IsFinal() }

// Result returns the payload's return value and error once finished. Before
// the task finishes both are the zero value.
func (c *Context) Result() (any, error) { return c.result, c.err }

// DebugGetWakeupSource reports the wakeup source that produced the task's
// most recent resume, for diagnostics only.
func (c *Context) DebugGetWakeupSource() sleepstate.Flags {
	return sleepstate.Flags(c.wakeupSource.Load())
}

// CurrentEpoch returns the task's current sleep-state epoch, for Wait
// Strategy implementations outside this package (pkg/scheduler's Mutex,
// Cond, Future, Semaphore, Channel) that register on a wait list from
// inside SetupWakeups.
func (c *Context) CurrentEpoch() sleepstate.Epoch {
	return c.sleepState.CurrentEpoch()
}

// SetDetached registers this task in reg, so a shutdown sequence holding
// reg can await it instead of abandoning it mid-flight. Safe to call after
// the task has already reached a terminal state (the registration is
// immediately finished instead of leaking); callers should still only
// detach a task once.
func (c *Context) SetDetached(reg *registry.Registry) {
	tok := reg.Register(c.id)

	c.detachMu.Lock()
	c.detachedToken = tok
	c.detachMu.Unlock()

	if c.IsFinished() {
		c.FinishDetached()
	}
}

// FinishDetached drops the detached-registry reference, if one was set by
// SetDetached. Safe to call from the terminating task itself, safe to call
// more than once, and safe to call on a task that was never detached.
func (c *Context) FinishDetached() {
	c.detachMu.Lock()
	tok := c.detachedToken
	c.detachedToken = nil
	c.detachMu.Unlock()

	tok.Finish()
}

// forceFinishUnscheduled handles Schedule rejecting the task at
// construction time (processor overload with a Normal-importance task):
// the task is marked Cancelled without ever running its payload.
func (c *Context) forceFinishUnscheduled(cause error) {
	c.RejectWithoutRunning(CancelOverload, cause)
}

// RejectWithoutRunning forcibly finishes a task that has never started its
// coroutine, used by a Task Processor's admission control to drop a task
// that has aged out of the ready queue under overload. Must only be called
// on a task for which HasStarted reports false.
func (c *Context) RejectWithoutRunning(reason CancelReason, cause error) {
	c.cancelReason.CompareAndSwap(int32(CancelNone), int32(reason))
	c.err = fmt.Errorf("%w: %v", ErrTaskProcessorOverload, cause)
	c.setState(StateCancelled)
	c.finishWaiters.Broadcast()
	c.doRelease()
	c.FinishDetached()
}

// HasStarted reports whether the task's coroutine goroutine has ever been
// started. Only safe to call from whichever goroutine currently has
// exclusive ownership of the task (the worker that just dequeued it).
func (c *Context) HasStarted() bool { return c.started }

// doRelease kills the coro_debug magic guard before returning the pipe to
// its pool, so any further DoStep on this Context is caught as a bug
// instead of silently resuming a pipe someone else now owns.
func (c *Context) doRelease() {
	c.killMagic()
	c.release()
}

// DoStep is called by a Task Processor worker with the task in state
// Queued. It resumes the task's coroutine goroutine (starting it on the
// very first call) and blocks until the task either yields (Sleep) or
// finishes (payload return or panic).
func (c *Context) DoStep(parent context.Context) {
	c.checkMagicAlive()
	if c.GetState() != StateQueued {
		panic(fmt.Sprintf("taskctx: DoStep called on task %d in state %s, want queued", c.id, c.GetState()))
	}
	c.setState(StateRunning)

	if !c.started {
		c.started = true
		go c.runCoroutine(parent)
	} else {
		c.pipe.Resume <- struct{}{}
	}
	<-c.pipe.Done

	switch c.yieldReason {
	case YieldComplete:
		c.setState(StateCompleted)
		c.finishWaiters.Broadcast()
		c.doRelease()
		c.FinishDetached()
	case YieldCancelled:
		c.setState(StateCancelled)
		c.finishWaiters.Broadcast()
		c.doRelease()
		c.FinishDetached()
	case YieldWaiting:
		c.setState(StateSuspended)
	default:
		panic(fmt.Sprintf("taskctx: task %d yielded with no reason recorded", c.id))
	}
}

// runCoroutine is the body of the task's dedicated goroutine. It runs once
// per Context for the Context's entire lifetime; Sleep is what parks it on
// c.pipe.Resume between yields, not this function.
func (c *Context) runCoroutine(parent context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.panicValue = r
			c.err = fmt.Errorf("taskctx: task panicked: %v", r)
			c.yieldReason = YieldCancelled
			c.log.Error().Interface("panic", r).Msg("task panicked")
		}
		c.pipe.Done <- struct{}{}
	}()

	result, err := c.payload(WithContext(parent, c), c)
	c.result, c.err = result, err
	if c.CancellationReason() != CancelNone {
		c.yieldReason = YieldCancelled
		if c.err == nil {
			c.err = ErrTaskCancelled
		}
	} else {
		c.yieldReason = YieldComplete
	}
}

// scheduleBack transitions a Suspended task back to Queued and asks the
// owner to re-admit it. This is the same admission-controlled Schedule
// path used at construction, so a resumed task can still be rejected.
func (c *Context) scheduleBack() {
	c.setState(StateQueued)
	if err := c.owner.Schedule(c); err != nil {
		c.cancelReason.CompareAndSwap(int32(CancelNone), int32(CancelOverload))
		// Queued but will never be picked up under this rejection;
		// resume the coroutine one last time so it observes
		// ShouldCancel() on its own and exits cleanly.
		c.setState(StateRunning)
		c.pipe.Resume <- struct{}{}
		<-c.pipe.Done
		c.setState(StateCancelled)
		c.finishWaiters.Broadcast()
		c.doRelease()
		c.FinishDetached()
	}
}

type ctxKey struct{}

// WithContext embeds self into parent so FromContext can retrieve it from
// anywhere the task's call graph threads ctx through.
func WithContext(parent context.Context, self *Context) context.Context {
	return context.WithValue(parent, ctxKey{}, self)
}

// FromContext retrieves the Context previously embedded by WithContext.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Context)
	return c, ok
}
