// Package waitstrategy defines the Wait Strategy contract and the two
// flavors of wait list (Heavy and Light) that concrete strategies register
// sleeping tasks on. A Wait Strategy is a short-lived policy object that
// lives on the sleeping task's stack for the duration of one Sleep call; it
// may not block in either of its two methods.
package waitstrategy

import (
	"time"

	"github.com/coro-sched/coro/internal/sleepstate"
)

// Strategy is the pluggable suspension policy passed to Context.Sleep.
// Implementations: mutexes, condition variables, futures, semaphores,
// channels (see pkg/scheduler).
type Strategy interface {
	// SetupWakeups registers the sleeping task with whichever wakeup
	// sources are relevant. It may not block. It may synchronously call
	// Wakeup on the very task that is sleeping — that race is safe
	// because sleep-state is already in the Sleeping flag with the new
	// epoch by the time SetupWakeups runs.
	SetupWakeups()

	// DisableWakeups unregisters the task from every source it was
	// registered with. Guaranteed to run exactly once per Sleep, on
	// resume, even if the task was cancelled. It may not block.
	DisableWakeups()

	// Deadline returns the point at which this sleep should time out.
	// A zero Deadline means "no timeout".
	Deadline() time.Time
}

// Waker is the minimal surface a wait list needs from a sleeping task: the
// ability to deliver a wakeup, with or without an epoch check. taskctx.Context
// implements this; wait lists depend only on this interface so that this
// package never imports taskctx (which imports waitstrategy for Strategy).
type Waker interface {
	// Wakeup delivers source as a wakeup, dropped if epoch no longer
	// matches the task's current sleep-state epoch.
	Wakeup(source sleepstate.Flags, epoch sleepstate.Epoch)

	// WakeupNoEpoch delivers source bypassing the epoch check entirely
	// (used for level-triggered cancellation).
	WakeupNoEpoch(source sleepstate.Flags)
}
