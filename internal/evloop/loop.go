// Package evloop implements the Event Thread: a single-threaded reactor
// that services deadline timers and runs callbacks marshaled onto it from
// worker threads. One or a small pool of Loops may run in a process; each
// task is pinned to one Loop for the lifetime of its armed timer.
package evloop

import (
	"container/heap"
	"sync/atomic"
	"time"
)

// Loop is a single-goroutine reactor. The zero value is not usable; use
// New.
type Loop struct {
	callbacks chan func()
	heap      timerHeap
	nextSeq   uint64
	onLoop    atomic.Bool // true only while dispatching on the loop goroutine
	stop      chan struct{}
	stopped   chan struct{}
}

// New creates a Loop with the given callback queue depth and starts its
// goroutine running.
func New(queueDepth int) *Loop {
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	l := &Loop{
		callbacks: make(chan func(), queueDepth),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Stop terminates the loop's goroutine and waits for it to exit. Callbacks
// still queued and timers still armed at that point never run.
func (l *Loop) Stop() {
	close(l.stop)
	<-l.stopped
}

// OnLoopGoroutine reports whether the calling code is currently executing
// as part of this loop's own dispatch (i.e. inside a callback or timer
// fire that the loop itself invoked). RunInEvLoop and ArmTimer/Stop use
// this to execute inline instead of marshaling through the channel,
// matching the "calls issued from the reactor thread itself are executed
// inline" rule.
func (l *Loop) OnLoopGoroutine() bool {
	return l.onLoop.Load()
}

// RunInEvLoop enqueues fn to run on the reactor goroutine. If the caller
// is already running on the reactor goroutine (re-entrant call from
// within a callback), fn runs inline, synchronously, instead of being
// queued — queuing would deadlock a loop with a full callback channel
// calling back into itself.
func (l *Loop) RunInEvLoop(fn func()) {
	if l.OnLoopGoroutine() {
		fn()
		return
	}
	select {
	case l.callbacks <- fn:
	case <-l.stop:
	}
}

func (l *Loop) run() {
	defer close(l.stopped)

	var timerC <-chan time.Time
	var timer *time.Timer

	rearm := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
		if l.heap.Len() == 0 {
			return
		}
		d := time.Until(l.heap[0].deadline)
		if d < 0 {
			d = 0
		}
		timer = time.NewTimer(d)
		timerC = timer.C
	}

	fireDue := func() {
		now := time.Now()
		for l.heap.Len() > 0 && !l.heap[0].deadline.After(now) {
			entry := heap.Pop(&l.heap).(*timerEntry)
			if entry.canceled {
				continue
			}
			l.onLoop.Store(true)
			entry.fire()
			l.onLoop.Store(false)
		}
	}

	rearm()
	for {
		select {
		case <-l.stop:
			return
		case fn := <-l.callbacks:
			l.onLoop.Store(true)
			fn()
			l.onLoop.Store(false)
			rearm()
		case <-timerC:
			fireDue()
			rearm()
		}
	}
}

// armTimer schedules fire to run at deadline and returns the heap entry
// so Stop can mark it canceled. Must only be called from the loop
// goroutine.
func (l *Loop) armTimer(deadline time.Time, fire func()) *timerEntry {
	l.nextSeq++
	entry := &timerEntry{deadline: deadline, seq: l.nextSeq, fire: fire}
	heap.Push(&l.heap, entry)
	return entry
}

// cancelTimer marks entry canceled; it is lazily dropped from the heap
// when its turn comes up, avoiding an O(n) heap-fix on every cancel on the
// common "armed then disarmed before firing" path. Must only be called
// from the loop goroutine.
func (l *Loop) cancelTimer(entry *timerEntry) {
	entry.canceled = true
}

type timerEntry struct {
	deadline time.Time
	seq      uint64
	canceled bool
	fire     func()
	index    int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
