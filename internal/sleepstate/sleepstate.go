// Package sleepstate implements the atomic (flags, epoch) word that
// arbitrates between a sleeping task and any number of racing wakers.
//
// The word is split as: low 32 bits hold a flags bitmask (the wakeup-source
// priority ladder), high 32 bits hold a monotonically increasing epoch.
// Every sleep/resume cycle bumps the epoch by one; a wakeup carrying a
// stale epoch is dropped, which is the single mechanism reconciling the
// sleeping task, any waker, and the reactor without a mutex.
package sleepstate

import "sync/atomic"

// Flags is the wakeup-source bitmask, highest priority first.
type Flags uint32

const (
	// FlagNone means no wakeup source is pending.
	FlagNone Flags = 0

	// FlagSleeping marks that the task has declared intent to sleep but
	// has not yet yielded. It is not itself a wakeup source.
	FlagSleeping Flags = 1 << iota

	// FlagWaitList is the lowest-priority real wakeup source: another
	// task signaled a wait list this task had joined.
	FlagWaitList

	// FlagDeadlineTimer fires when the armed deadline elapses.
	FlagDeadlineTimer

	// FlagCancelRequest fires on RequestCancel.
	FlagCancelRequest

	// FlagBootstrap is the highest-priority source: the initial resume
	// of a never-yet-run task.
	FlagBootstrap
)

// wakeupFlags excludes FlagSleeping, which never competes for priority.
const wakeupFlags = FlagWaitList | FlagDeadlineTimer | FlagCancelRequest | FlagBootstrap

// Primary returns the highest-priority wakeup source present in flags, or
// FlagNone if none of the real wakeup bits are set.
func Primary(flags Flags) Flags {
	for _, f := range []Flags{FlagBootstrap, FlagCancelRequest, FlagDeadlineTimer, FlagWaitList} {
		if flags&f != 0 {
			return f
		}
	}
	return FlagNone
}

const epochShift = 32

// Epoch identifies one sleep/resume cycle. It increases by exactly one on
// every DoStartSleep.
type Epoch uint32

// NoEpoch bypasses the epoch check: used for level-triggered cancellation,
// which must be observed regardless of which sleep cycle is in flight.
const NoEpoch Epoch = 0xFFFFFFFF

func pack(flags Flags, epoch Epoch) uint64 {
	return uint64(epoch)<<epochShift | uint64(flags)
}

func unpack(word uint64) (Flags, Epoch) {
	return Flags(uint32(word)), Epoch(uint32(word >> epochShift))
}

// State is the atomic (flags, epoch) word owned by one Task Context.
type State struct {
	word atomic.Uint64
}

// Load returns the current flags and epoch without modification.
func (s *State) Load() (Flags, Epoch) {
	return unpack(s.word.Load())
}

// Store performs a plain atomic store, used when transitioning to Running.
func (s *State) Store(flags Flags, epoch Epoch) {
	s.word.Store(pack(flags, epoch))
}

// FetchOrSleepFlags ORs flag into the flags field, leaving the epoch
// intact, and returns the flags and epoch as they were prior to the
// update. Wakers call this.
func (s *State) FetchOrSleepFlags(flag Flags) (priorFlags Flags, epoch Epoch) {
	for {
		old := s.word.Load()
		oldFlags, oldEpoch := unpack(old)
		newWord := pack(oldFlags|flag, oldEpoch)
		if s.word.CompareAndSwap(old, newWord) {
			return oldFlags, oldEpoch
		}
	}
}

// FetchOrSleepFlagsAtEpoch behaves like FetchOrSleepFlags but only applies
// the OR if the current epoch equals wantEpoch. ok is false, and nothing is
// mutated, when the epoch has already moved on — this is how a stale
// epoch'd wakeup is dropped without corrupting a later sleep cycle's state.
func (s *State) FetchOrSleepFlagsAtEpoch(flag Flags, wantEpoch Epoch) (ok bool, priorFlags Flags) {
	for {
		old := s.word.Load()
		oldFlags, oldEpoch := unpack(old)
		if oldEpoch != wantEpoch {
			return false, oldFlags
		}
		newWord := pack(oldFlags|flag, oldEpoch)
		if s.word.CompareAndSwap(old, newWord) {
			return true, oldFlags
		}
	}
}

// DoStartSleep sets FlagSleeping, clears every other flag, and writes a
// freshly incremented epoch. It returns the new epoch, which callers use
// to arm timers and register on wait lists so that stale wakers are
// rejected.
func (s *State) DoStartSleep() Epoch {
	for {
		old := s.word.Load()
		_, oldEpoch := unpack(old)
		newEpoch := oldEpoch + 1
		newWord := pack(FlagSleeping, newEpoch)
		if s.word.CompareAndSwap(old, newWord) {
			return newEpoch
		}
	}
}

// DoFinishSleep clears FlagSleeping and returns the final flag set
// (including any wakeup-source bits a racing waker OR'd in), from which
// the caller computes the primary wakeup source.
func (s *State) DoFinishSleep() Flags {
	for {
		old := s.word.Load()
		oldFlags, oldEpoch := unpack(old)
		newWord := pack(oldFlags&^FlagSleeping, oldEpoch)
		if s.word.CompareAndSwap(old, newWord) {
			return oldFlags &^ FlagSleeping
		}
	}
}

// CurrentEpoch returns the epoch component only, for comparison against a
// wakeup's carried epoch.
func (s *State) CurrentEpoch() Epoch {
	_, epoch := s.Load()
	return epoch
}

// HasYielded reports whether the task had already recorded FlagSleeping at
// the moment this snapshot was taken, i.e. whether a concurrent wakeup is
// the first to observe the sleep and must take responsibility for
// rescheduling the task.
func HasYielded(priorFlags Flags) bool {
	return priorFlags&FlagSleeping != 0 && priorFlags&wakeupFlags == 0
}
