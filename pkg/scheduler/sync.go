package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coro-sched/coro/internal/sleepstate"
	"github.com/coro-sched/coro/internal/taskctx"
	"github.com/coro-sched/coro/internal/waitstrategy"
)

// listWaitStrategy is the Wait Strategy every primitive in this file
// installs on the sleeping task: register on a Heavy wait list, wait
// (possibly with a deadline), unregister on resume.
type listWaitStrategy struct {
	list     *waitstrategy.HeavyList
	caller   *taskctx.Context
	deadline time.Time
	node     *waitstrategy.Node
}

func (s *listWaitStrategy) SetupWakeups() {
	s.node = s.list.Add(s.caller, sleepstate.FlagWaitList, s.caller.CurrentEpoch())
}

func (s *listWaitStrategy) DisableWakeups() { s.node.Remove() }

func (s *listWaitStrategy) Deadline() time.Time { return s.deadline }

// waitOnList suspends the calling task on list until signaled, cancelled,
// or deadline elapses. It returns ErrNotInCoroutineContext if ctx carries
// no task, ErrWaitInterruptedByCancel if cancellation won the race.
func waitOnList(ctx context.Context, list *waitstrategy.HeavyList, deadline time.Time) error {
	caller, ok := taskctx.FromContext(ctx)
	if !ok {
		return ErrNotInCoroutineContext
	}
	ws := &listWaitStrategy{list: list, caller: caller, deadline: deadline}
	if caller.Sleep(ws) == sleepstate.FlagCancelRequest {
		return ErrWaitInterruptedByCancel
	}
	return nil
}

// Mutex is a cooperative mutual-exclusion lock for tasks running under this
// package's scheduler. Unlike sync.Mutex, Lock suspends the calling task
// (via Sleep) instead of blocking its OS thread, so a worker is free to run
// other queued tasks while one waits. Contended unlock wakes every waiter;
// losers of the resulting CAS race simply re-queue.
type Mutex struct {
	state   atomic.Bool
	waiters *waitstrategy.HeavyList
}

// NewMutex constructs an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{waiters: waitstrategy.NewHeavyList()}
}

// Lock suspends the calling task until the mutex is acquired.
func (m *Mutex) Lock(ctx context.Context) error {
	for {
		if m.state.CompareAndSwap(false, true) {
			return nil
		}
		if err := waitOnList(ctx, m.waiters, time.Time{}); err != nil {
			return err
		}
	}
}

// TryLock attempts to acquire the mutex without suspending, reporting
// whether it succeeded.
func (m *Mutex) TryLock() bool {
	return m.state.CompareAndSwap(false, true)
}

// Unlock releases the mutex and wakes every waiter.
func (m *Mutex) Unlock() {
	m.state.Store(false)
	m.waiters.Broadcast()
}

// Cond is a condition variable paired with an externally-held Mutex,
// mirroring sync.Cond's contract but suspending via Sleep instead of
// blocking an OS thread.
type Cond struct {
	L       *Mutex
	waiters *waitstrategy.HeavyList
}

// NewCond constructs a Cond guarded by l.
func NewCond(l *Mutex) *Cond {
	return &Cond{L: l, waiters: waitstrategy.NewHeavyList()}
}

// Wait releases L, suspends the calling task until Signal or Broadcast,
// then reacquires L before returning.
func (c *Cond) Wait(ctx context.Context) error {
	c.L.Unlock()
	err := waitOnList(ctx, c.waiters, time.Time{})
	if lockErr := c.L.Lock(ctx); lockErr != nil && err == nil {
		err = lockErr
	}
	return err
}

// Signal wakes one waiting task, if any.
func (c *Cond) Signal() { c.waiters.Signal() }

// Broadcast wakes every waiting task.
func (c *Cond) Broadcast() { c.waiters.Broadcast() }

// Future is a single-producer, single-consumer result cell. At most one
// task may Await it at a time, matching the Light wait list's at-most-one-
// waiter contract.
type Future[T any] struct {
	mu      sync.Mutex
	done    bool
	value   T
	err     error
	waiters *waitstrategy.LightList
}

// NewFuture constructs an unresolved Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{waiters: waitstrategy.NewLightList()}
}

// Resolve completes the future with value and wakes its waiter, if any.
// A second call is a no-op.
func (f *Future[T]) Resolve(value T, err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done, f.value, f.err = true, value, err
	f.mu.Unlock()
	f.waiters.Signal()
}

type lightWaitStrategy struct {
	list     *waitstrategy.LightList
	caller   *taskctx.Context
	deadline time.Time
}

func (s *lightWaitStrategy) SetupWakeups() {
	s.list.Add(s.caller, sleepstate.FlagWaitList, s.caller.CurrentEpoch())
}
func (s *lightWaitStrategy) DisableWakeups()     { s.list.Remove() }
func (s *lightWaitStrategy) Deadline() time.Time { return s.deadline }

// Await suspends the calling task until the future is resolved, returning
// its value and error.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	caller, ok := taskctx.FromContext(ctx)
	if !ok {
		var zero T
		return zero, ErrNotInCoroutineContext
	}
	for {
		f.mu.Lock()
		if f.done {
			value, err := f.value, f.err
			f.mu.Unlock()
			return value, err
		}
		f.mu.Unlock()

		ws := &lightWaitStrategy{list: f.waiters, caller: caller}
		if caller.Sleep(ws) == sleepstate.FlagCancelRequest {
			var zero T
			return zero, ErrWaitInterruptedByCancel
		}
	}
}

// Semaphore is a counting semaphore for tasks: Acquire suspends until a
// permit is available, Release returns one and wakes a waiter.
type Semaphore struct {
	mu      sync.Mutex
	permits int
	waiters *waitstrategy.HeavyList
}

// NewSemaphore constructs a Semaphore initialized with n permits.
func NewSemaphore(n int) *Semaphore {
	return &Semaphore{permits: n, waiters: waitstrategy.NewHeavyList()}
}

// Acquire takes one permit, suspending the calling task while none is
// available.
func (s *Semaphore) Acquire(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.permits > 0 {
			s.permits--
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		if err := waitOnList(ctx, s.waiters, time.Time{}); err != nil {
			return err
		}
	}
}

// Release returns one permit and wakes every waiter (losers of the
// resulting race simply re-queue).
func (s *Semaphore) Release() {
	s.mu.Lock()
	s.permits++
	s.mu.Unlock()
	s.waiters.Broadcast()
}

// Channel is a bounded FIFO queue between tasks: Send suspends while full,
// Receive suspends while empty.
type Channel[T any] struct {
	mu        sync.Mutex
	buf       []T
	capacity  int
	closed    bool
	senders   *waitstrategy.HeavyList
	receivers *waitstrategy.HeavyList
}

// NewChannel constructs a Channel with the given buffer capacity. A
// capacity of 0 holds one pending value: Send does not wait for a
// Receive to be waiting.
func NewChannel[T any](capacity int) *Channel[T] {
	return &Channel[T]{
		capacity:  capacity,
		senders:   waitstrategy.NewHeavyList(),
		receivers: waitstrategy.NewHeavyList(),
	}
}

// ErrChannelClosed is returned by Send on a closed channel.
var ErrChannelClosed = errors.New("scheduler: send on closed channel")

// Send suspends the calling task until the channel has room, then enqueues
// value.
func (c *Channel[T]) Send(ctx context.Context, value T) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrChannelClosed
		}
		// capacity 0 admits one pending value rather than a true
		// synchronous rendezvous with a waiting Receive.
		if len(c.buf) < c.capacity || (c.capacity == 0 && len(c.buf) == 0) {
			c.buf = append(c.buf, value)
			c.mu.Unlock()
			c.receivers.Signal()
			return nil
		}
		c.mu.Unlock()
		if err := waitOnList(ctx, c.senders, time.Time{}); err != nil {
			return err
		}
	}
}

// Receive suspends the calling task until a value is available, returning
// it, or reports closed=true once the channel is closed and drained.
func (c *Channel[T]) Receive(ctx context.Context) (value T, closed bool, err error) {
	for {
		c.mu.Lock()
		if len(c.buf) > 0 {
			value = c.buf[0]
			c.buf = c.buf[1:]
			c.mu.Unlock()
			c.senders.Signal()
			return value, false, nil
		}
		if c.closed {
			c.mu.Unlock()
			var zero T
			return zero, true, nil
		}
		c.mu.Unlock()
		if err := waitOnList(ctx, c.receivers, time.Time{}); err != nil {
			var zero T
			return zero, false, err
		}
	}
}

// Close marks the channel closed and wakes every blocked sender and
// receiver so they observe it.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.senders.Broadcast()
	c.receivers.Broadcast()
}
