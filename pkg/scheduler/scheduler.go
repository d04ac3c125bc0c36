// Package scheduler is the public facade over internal/taskctx and
// internal/processor: Spawn, CurrentTask, Yield, and the TaskHandle a
// caller uses to observe or cancel a spawned task.
package scheduler

import (
	"context"
	"time"

	"github.com/coro-sched/coro/internal/coro"
	"github.com/coro-sched/coro/internal/events"
	"github.com/coro-sched/coro/internal/evloop"
	"github.com/coro-sched/coro/internal/logger"
	"github.com/coro-sched/coro/internal/processor"
	"github.com/coro-sched/coro/internal/registry"
	"github.com/coro-sched/coro/internal/taskctx"
)

// Importance mirrors taskctx.Importance; re-exported so callers never need
// to import internal/taskctx directly.
type Importance = taskctx.Importance

const (
	ImportanceNormal   = taskctx.ImportanceNormal
	ImportanceCritical = taskctx.ImportanceCritical
)

// CancelReason mirrors taskctx.CancelReason.
type CancelReason = taskctx.CancelReason

const (
	CancelNone        = taskctx.CancelNone
	CancelUserRequest = taskctx.CancelUserRequest
	CancelOverload    = taskctx.CancelOverload
	CancelShutdown    = taskctx.CancelShutdown
	CancelDeadline    = taskctx.CancelDeadline
)

// Payload is the function a spawned task runs. self lets the payload call
// back into its own TaskHandle-equivalent operations (Sleep-based waits,
// SetLocal/GetLocal) without a CurrentTask lookup.
type Payload = taskctx.Payload

// Errors surfaced by this package, re-exported from internal/taskctx so
// callers can errors.Is against them without an internal import.
var (
	ErrNotInCoroutineContext   = taskctx.ErrNotInCoroutineContext
	ErrTaskCancelled           = taskctx.ErrTaskCancelled
	ErrWaitInterruptedByCancel = taskctx.ErrWaitInterruptedByCancel
	ErrTaskProcessorOverload   = taskctx.ErrTaskProcessorOverload
)

// Processor is a running Task Processor: a bounded ready queue serviced by
// a worker pool, the thing Spawn admits tasks into.
type Processor struct {
	p        *processor.Processor
	pool     *coro.Pool
	loop     *evloop.Loop
	detached *registry.Registry
}

// Config configures a Processor.
type Config struct {
	ID              string
	Workers         int
	QueueDepth      int
	MaxQueueAge     time.Duration
	ShutdownTimeout time.Duration
	MaxLivePipes    int // coroutine pool bound; 0 means unbounded
	EventQueueDepth int // reactor callback queue depth; 0 means the default
	EventBus        *events.Bus // optional; feeds the admin API's task lifecycle feed
}

// NewProcessor builds and starts a Processor along with the single-
// threaded reactor loop that backs its deadline timers.
func NewProcessor(cfg Config) *Processor {
	loop := evloop.New(cfg.EventQueueDepth)
	pool := coro.New(cfg.MaxLivePipes)
	p := processor.New(processor.Config{
		ID:              cfg.ID,
		Workers:         cfg.Workers,
		QueueDepth:      cfg.QueueDepth,
		MaxQueueAge:     cfg.MaxQueueAge,
		ShutdownTimeout: cfg.ShutdownTimeout,
		EventBus:        cfg.EventBus,
	}, pool, loop)
	p.Start()
	return &Processor{p: p, pool: pool, loop: loop, detached: registry.New()}
}

// Stop stops the processor's workers (see processor.Processor.Stop: live
// tasks are asked to cancel and the ready queue is not drained) and its
// reactor loop, having first awaited every task detached from this
// Processor via TaskHandle.Detach — ctx's deadline bounds that wait the
// same way it bounds the wait for the workers to exit.
func (s *Processor) Stop(ctx context.Context) {
	if err := s.detached.Wait(ctx); err != nil {
		logger.WithComponent("scheduler").Warn().Err(err).Msg("shutdown proceeding with detached tasks still outstanding")
	}
	s.p.Stop(ctx)
	s.loop.Stop()
}

// DetachedCount reports how many tasks are currently detached and still
// running under this Processor.
func (s *Processor) DetachedCount() int { return s.detached.Count() }

// ID returns the processor's identifier.
func (s *Processor) ID() string { return s.p.ID() }

// ActiveTaskCount reports the number of tasks currently running or
// suspended under this processor.
func (s *Processor) ActiveTaskCount() int { return s.p.ActiveTaskCount() }

// Internal exposes the underlying *processor.Processor for packages that
// need deeper introspection than this facade offers, namely the admin
// API's stats and task-listing routes.
func (s *Processor) Internal() *processor.Processor { return s.p }

// TaskHandle is the caller-facing handle to a spawned task: Wait,
// WaitUntil, RequestCancel, GetState, IsFinished, Detach.
type TaskHandle struct {
	ctx  *taskctx.Context
	proc *Processor // nil for handles obtained via CurrentTask; Detach requires it
}

// Spawn admits a new task to the processor's ready queue and returns a
// handle to it. The coroutine does not start running until a worker
// dequeues it.
func Spawn(p *Processor, importance Importance, deadline time.Time, payload Payload) *TaskHandle {
	log := logger.WithComponent("scheduler")
	c := taskctx.New(p.p, p.pool, p.loop, log, importance, deadline, payload)
	return &TaskHandle{ctx: c, proc: p}
}

// Wait blocks the calling task until h's task finishes. Must be called
// from inside another task's coroutine (see CurrentTask).
func (h *TaskHandle) Wait(ctx context.Context) error {
	return h.ctx.Wait(ctx)
}

// WaitUntil is Wait with an explicit deadline.
func (h *TaskHandle) WaitUntil(ctx context.Context, deadline time.Time) error {
	return h.ctx.WaitUntil(ctx, deadline)
}

// RequestCancel sets h's cancellation reason and best-effort wakes it if
// suspended. Irrevocable; a second call is a no-op.
func (h *TaskHandle) RequestCancel(reason CancelReason) {
	h.ctx.RequestCancel(reason)
}

// GetState reports h's current lifecycle state.
func (h *TaskHandle) GetState() taskctx.State { return h.ctx.GetState() }

// IsFinished reports whether h has reached a terminal state.
func (h *TaskHandle) IsFinished() bool { return h.ctx.IsFinished() }

// Result returns the task's return value and error once finished. Calling
// it before IsFinished reports zero values.
func (h *TaskHandle) Result() (any, error) { return h.ctx.Result() }

// ID returns the task's opaque numeric identity.
func (h *TaskHandle) ID() uint64 { return h.ctx.ID() }

// Detach registers h's task in its Processor's detached-task registry and
// discards the handle's reference without waiting or cancelling; the task
// runs to completion on its own. A shutdown sequence calling Processor.Stop
// blocks until every detached task finishes, instead of abandoning it
// mid-flight. A no-op if h was obtained from CurrentTask rather than Spawn.
func (h *TaskHandle) Detach() {
	if h.proc == nil {
		return
	}
	h.ctx.SetDetached(h.proc.detached)
}

// CurrentTask returns the TaskHandle of the task running on the calling
// goroutine, or ErrNotInCoroutineContext if called outside any task.
func CurrentTask(ctx context.Context) (*TaskHandle, error) {
	c, ok := taskctx.FromContext(ctx)
	if !ok {
		return nil, ErrNotInCoroutineContext
	}
	return &TaskHandle{ctx: c}, nil
}

// Yield round-trips the calling task through the ready queue, giving other
// queued tasks a turn, without waiting on any external wakeup source.
func Yield(ctx context.Context) error {
	c, ok := taskctx.FromContext(ctx)
	if !ok {
		return ErrNotInCoroutineContext
	}
	c.Yield()
	if c.ShouldCancel() {
		return ErrTaskCancelled
	}
	return nil
}
