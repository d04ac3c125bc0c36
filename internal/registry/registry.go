// Package registry implements the detached-task registry: a process-wide
// sync.WaitGroup-backed ledger that a shutdown sequence can block on to
// await every task that was deliberately detached from its TaskHandle,
// the same graceful-drain shape the task processor itself uses for its
// worker pool.
package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Token is a detached task's back-reference into a Registry. It is handed
// out by Register and consumed exactly once by Finish.
type Token struct {
	id  uint64
	reg *Registry

	finished atomic.Bool
}

// Finish drops the token's reference. Safe to call from the terminating
// task itself, and safe to call more than once — only the first call has
// any effect.
func (t *Token) Finish() {
	if t == nil || !t.finished.CompareAndSwap(false, true) {
		return
	}
	t.reg.mu.Lock()
	delete(t.reg.tasks, t.id)
	t.reg.mu.Unlock()
	t.reg.wg.Done()
}

// Registry tracks every currently-detached task so a shutdown sequence can
// await them instead of abandoning them mid-flight.
type Registry struct {
	wg sync.WaitGroup

	mu    sync.Mutex
	tasks map[uint64]time.Time

	nextID atomic.Uint64
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{tasks: make(map[uint64]time.Time)}
}

// Register admits a detached task and returns the Token it must Finish
// with once it terminates.
func (r *Registry) Register(taskID uint64) *Token {
	r.wg.Add(1)

	r.mu.Lock()
	r.tasks[taskID] = time.Now()
	r.mu.Unlock()

	return &Token{id: taskID, reg: r}
}

// Count reports how many detached tasks are currently outstanding.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Wait blocks until every registered task has called Finish, or until ctx
// is done, whichever comes first.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("registry: timed out awaiting %d detached task(s): %w", r.Count(), ctx.Err())
	}
}
