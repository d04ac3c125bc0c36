// Package processor implements the Task Processor: a bounded ready queue
// serviced by a pool of worker goroutines that each drive one taskctx.Context
// through DoStep at a time, plus admission control that rejects Normal tasks
// under overload while letting Critical tasks through unconditionally.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coro-sched/coro/internal/coro"
	"github.com/coro-sched/coro/internal/events"
	"github.com/coro-sched/coro/internal/evloop"
	"github.com/coro-sched/coro/internal/logger"
	"github.com/coro-sched/coro/internal/metrics"
	"github.com/coro-sched/coro/internal/taskctx"
)

// State is the processor's own operational state.
type State int

const (
	StateIdle State = iota
	StateBusy
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Config configures one Processor.
type Config struct {
	ID              string
	Workers         int
	QueueDepth      int           // max items allowed in the ready queue
	MaxQueueAge     time.Duration // items older than this, never started, are rejected
	ShutdownTimeout time.Duration
	EventBus        *events.Bus // optional; task lifecycle notifications for the admin API
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 1024
	}
	if c.MaxQueueAge <= 0 {
		c.MaxQueueAge = 5 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// queueItem pairs a ready task with the time it was (re)enqueued, for the
// age-threshold admission check.
type queueItem struct {
	ctx        *taskctx.Context
	enqueuedAt time.Time
}

// Processor owns the ready queue, the coroutine pipe pool backing every
// Context it admits, and the reactor loop that arms per-task deadline
// timers.
type Processor struct {
	id     string
	cfg    Config
	log    zerolog.Logger
	Pool   *coro.Pool
	Loop   *evloop.Loop
	bus    *events.Bus

	queue chan queueItem

	stateMu sync.RWMutex
	state   State

	stopCh chan struct{}
	wg     sync.WaitGroup

	activeTasks sync.Map // uint64 task id -> *taskctx.Context
}

// New creates a Processor. It does not start workers until Start is called.
func New(cfg Config, coroPool *coro.Pool, loop *evloop.Loop) *Processor {
	cfg = cfg.withDefaults()
	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("processor-%s", uuid.New().String()[:8])
	}
	return &Processor{
		id:     cfg.ID,
		cfg:    cfg,
		log:    logger.WithComponent("processor").With().Str("processor_id", cfg.ID).Logger(),
		Pool:   coroPool,
		Loop:   loop,
		bus:    cfg.EventBus,
		queue:  make(chan queueItem, cfg.QueueDepth),
		stopCh: make(chan struct{}),
		state:  StateIdle,
	}
}

// publish emits a task lifecycle event if an EventBus was configured.
func (p *Processor) publish(eventType events.EventType, ctx *taskctx.Context, extra map[string]interface{}) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(events.NewEvent(eventType, events.TaskEventData(
		ctx.ID(), ctx.TraceID().String(), ctx.Importance().String(), ctx.GetState().String(), extra,
	)))
}

// Start spawns the worker goroutines.
func (p *Processor) Start() {
	p.stateMu.Lock()
	p.state = StateBusy
	p.stateMu.Unlock()

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	metrics.SetActiveWorkers(float64(p.cfg.Workers))

	p.log.Info().Int("workers", p.cfg.Workers).Int("queue_depth", p.cfg.QueueDepth).Msg("processor started")
}

// Stop requests cancellation (CancelShutdown) of every task the processor
// still tracks, then signals every worker to exit and blocks until they
// do, the shutdown timeout elapses, or ctx is done. The ready queue is not
// drained first: an item still queued when its worker sees the stop signal
// is not run.
func (p *Processor) Stop(ctx context.Context) {
	p.stateMu.Lock()
	p.state = StateShuttingDown
	p.stateMu.Unlock()

	p.activeTasks.Range(func(_, v any) bool {
		v.(*taskctx.Context).RequestCancel(taskctx.CancelShutdown)
		return true
	})

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("processor stopped gracefully")
	case <-time.After(p.cfg.ShutdownTimeout):
		p.log.Warn().Msg("processor shutdown timed out")
	case <-ctx.Done():
		p.log.Warn().Msg("processor shutdown canceled")
	}
}

// State reports the processor's own operational state.
func (p *Processor) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// ID returns the processor's identifier.
func (p *Processor) ID() string { return p.id }

// ActiveTaskCount returns the number of tasks currently tracked as running
// or suspended under this processor.
func (p *Processor) ActiveTaskCount() int {
	n := 0
	p.activeTasks.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Tasks returns a snapshot of every task currently tracked as running or
// suspended under this processor, for admin API introspection.
func (p *Processor) Tasks() []*taskctx.Context {
	tasks := make([]*taskctx.Context, 0, p.ActiveTaskCount())
	p.activeTasks.Range(func(_, v any) bool {
		tasks = append(tasks, v.(*taskctx.Context))
		return true
	})
	return tasks
}

// Task looks up one active task by id.
func (p *Processor) Task(id uint64) (*taskctx.Context, bool) {
	v, ok := p.activeTasks.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*taskctx.Context), true
}

// QueueDepth reports the current number of items sitting in the ready
// queue.
func (p *Processor) QueueDepth() int { return len(p.queue) }

// Schedule implements taskctx.Owner. It is the single admission-control
// choke point: both Construct-time scheduling and every post-Sleep wakeup
// reschedule call through here. Critical tasks bypass the queue-depth
// check entirely; Normal tasks are rejected once the ready queue is full.
func (p *Processor) Schedule(ctx *taskctx.Context) error {
	p.activeTasks.Store(ctx.ID(), ctx)
	item := queueItem{ctx: ctx, enqueuedAt: time.Now()}

	firstSchedule := !ctx.HasStarted()

	if ctx.Importance() == taskctx.ImportanceCritical {
		// Critical bypasses admission control entirely: block until the
		// ready queue has room rather than ever rejecting it.
		p.queue <- item
		metrics.UpdateQueueDepth(p.id, float64(len(p.queue)))
		metrics.RecordTaskScheduled("critical")
		if firstSchedule {
			p.publish(events.EventTaskScheduled, ctx, nil)
		}
		return nil
	}

	select {
	case p.queue <- item:
		metrics.UpdateQueueDepth(p.id, float64(len(p.queue)))
		metrics.RecordTaskScheduled("normal")
		if firstSchedule {
			p.publish(events.EventTaskScheduled, ctx, nil)
		}
		return nil
	default:
		p.activeTasks.Delete(ctx.ID())
		metrics.RecordTaskRejected("queue_full")
		return fmt.Errorf("processor %s: ready queue full (%d/%d)", p.id, len(p.queue), p.cfg.QueueDepth)
	}
}

func (p *Processor) worker(workerNum int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker_num", workerNum).Logger()
	log.Debug().Msg("worker started")

	for {
		select {
		case <-p.stopCh:
			return
		case item := <-p.queue:
			p.runOne(log, item)
		}
	}
}

func (p *Processor) runOne(log zerolog.Logger, item queueItem) {
	ctx := item.ctx

	stale := !ctx.HasStarted() && p.cfg.MaxQueueAge > 0 && time.Since(item.enqueuedAt) > p.cfg.MaxQueueAge
	if stale && ctx.Importance() != taskctx.ImportanceCritical {
		metrics.RecordTaskRejected("stale")
		ctx.RejectWithoutRunning(taskctx.CancelOverload, fmt.Errorf("queued %s, exceeds max age %s", time.Since(item.enqueuedAt), p.cfg.MaxQueueAge))
		p.activeTasks.Delete(ctx.ID())
		p.publish(events.EventTaskCancelled, ctx, map[string]interface{}{"reason": "stale"})
		return
	}

	wasStarted := ctx.HasStarted()

	start := time.Now()
	ctx.DoStep(context.Background())
	metrics.TaskStepDuration.WithLabelValues(p.id).Observe(time.Since(start).Seconds())

	if !wasStarted && ctx.HasStarted() {
		p.publish(events.EventTaskStarted, ctx, nil)
	}

	if ctx.IsFinished() {
		p.activeTasks.Delete(ctx.ID())
		_, err := ctx.Result()
		status := "completed"
		eventType := events.EventTaskCompleted
		if ctx.GetState() == taskctx.StateCancelled {
			status = "cancelled"
			eventType = events.EventTaskCancelled
		}
		metrics.RecordTaskCompletion(status)
		if err != nil {
			log.Debug().Uint64("task_id", ctx.ID()).Err(err).Str("status", status).Msg("task finished")
		}
		p.publish(eventType, ctx, nil)
	} else {
		p.publish(events.EventTaskSuspended, ctx, nil)
	}
}
