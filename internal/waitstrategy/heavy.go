package waitstrategy

import (
	"sync"

	"github.com/coro-sched/coro/internal/sleepstate"
)

// Node is the list hook HeavyList.Add allocates for one registered waiter
// and hands back to the caller. It auto-unlinks on
// Remove, so a leaked reference (a task that forgot to DisableWakeups)
// cannot corrupt the list: Remove is idempotent and safe to call twice,
// including after the list itself has moved on.
type Node struct {
	mu     sync.Mutex
	list   *HeavyList
	waker  Waker
	epoch  sleepstate.Epoch
	source sleepstate.Flags
	prev   *Node
	next   *Node
}

// HeavyList is a mutex-protected wait list supporting many waiters and
// broadcast, used for finish waiters and condition variables.
type HeavyList struct {
	mu   sync.Mutex
	head *Node
	tail *Node
}

// NewHeavyList constructs an empty list.
func NewHeavyList() *HeavyList {
	return &HeavyList{}
}

// Add registers waker to be woken with source (subject to the epoch check)
// the next time Broadcast or Signal runs, and returns the node so the
// caller can Remove it from DisableWakeups.
func (l *HeavyList) Add(waker Waker, source sleepstate.Flags, epoch sleepstate.Epoch) *Node {
	n := &Node{list: l, waker: waker, source: source, epoch: epoch}

	l.mu.Lock()
	defer l.mu.Unlock()
	n.prev = l.tail
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	return n
}

// Remove unlinks n from the list. Safe to call multiple times and safe to
// call concurrently with Broadcast.
func (n *Node) Remove() {
	if n == nil {
		return
	}
	n.mu.Lock()
	list := n.list
	n.mu.Unlock()
	if list == nil {
		return
	}

	list.mu.Lock()
	defer list.mu.Unlock()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.list == nil {
		return // already removed
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		list.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		list.tail = n.prev
	}
	n.prev, n.next, n.list = nil, nil, nil
}

// Broadcast wakes every currently-registered waiter and empties the list.
// Waiters that have already been removed (DisableWakeups already ran on
// another path) are simply skipped.
func (l *HeavyList) Broadcast() {
	l.mu.Lock()
	head := l.head
	l.head, l.tail = nil, nil
	l.mu.Unlock()

	for n := head; n != nil; {
		next := n.next
		n.mu.Lock()
		n.prev, n.next, n.list = nil, nil, nil
		waker, source, epoch := n.waker, n.source, n.epoch
		n.mu.Unlock()
		waker.Wakeup(source, epoch)
		n = next
	}
}

// Signal wakes the single longest-waiting registered waiter, if any,
// leaving the rest of the list untouched. Used by condition variables'
// Signal (as opposed to Broadcast, which wakes everyone).
func (l *HeavyList) Signal() {
	l.mu.Lock()
	n := l.head
	if n == nil {
		l.mu.Unlock()
		return
	}
	n.mu.Lock()
	l.head = n.next
	if l.head != nil {
		l.head.prev = nil
	} else {
		l.tail = nil
	}
	n.prev, n.next, n.list = nil, nil, nil
	waker, source, epoch := n.waker, n.source, n.epoch
	n.mu.Unlock()
	l.mu.Unlock()

	waker.Wakeup(source, epoch)
}

// Len returns the current number of registered waiters, for diagnostics.
func (l *HeavyList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for cur := l.head; cur != nil; cur = cur.next {
		n++
	}
	return n
}
