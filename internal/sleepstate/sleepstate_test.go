package sleepstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimary(t *testing.T) {
	tests := []struct {
		name     string
		flags    Flags
		expected Flags
	}{
		{"none", FlagNone, FlagNone},
		{"wait list only", FlagWaitList, FlagWaitList},
		{"deadline beats wait list", FlagWaitList | FlagDeadlineTimer, FlagDeadlineTimer},
		{"cancel beats deadline", FlagDeadlineTimer | FlagCancelRequest, FlagCancelRequest},
		{"bootstrap beats everything", FlagBootstrap | FlagCancelRequest | FlagDeadlineTimer | FlagWaitList, FlagBootstrap},
		{"sleeping alone is not a source", FlagSleeping, FlagNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Primary(tt.flags))
		})
	}
}

func TestDoStartSleep_IncrementsEpoch(t *testing.T) {
	var s State
	e1 := s.DoStartSleep()
	flags, epoch := s.Load()
	require.Equal(t, FlagSleeping, flags)
	require.Equal(t, e1, epoch)

	final := s.DoFinishSleep()
	assert.Equal(t, FlagNone, final)

	e2 := s.DoStartSleep()
	assert.Equal(t, e1+1, e2)
}

func TestFetchOrSleepFlags_PreservesEpoch(t *testing.T) {
	var s State
	epoch := s.DoStartSleep()

	prior, priorEpoch := s.FetchOrSleepFlags(FlagDeadlineTimer)
	assert.Equal(t, FlagSleeping, prior)
	assert.Equal(t, epoch, priorEpoch)

	flags, gotEpoch := s.Load()
	assert.Equal(t, FlagSleeping|FlagDeadlineTimer, flags)
	assert.Equal(t, epoch, gotEpoch)
}

func TestDoFinishSleep_ReportsWakeupBits(t *testing.T) {
	var s State
	s.DoStartSleep()
	s.FetchOrSleepFlags(FlagWaitList)
	s.FetchOrSleepFlags(FlagCancelRequest)

	final := s.DoFinishSleep()
	assert.Equal(t, FlagWaitList|FlagCancelRequest, final)
	assert.Equal(t, FlagCancelRequest, Primary(final))
}

func TestHasYielded(t *testing.T) {
	assert.False(t, HasYielded(FlagNone))
	assert.True(t, HasYielded(FlagSleeping))
	assert.False(t, HasYielded(FlagSleeping|FlagWaitList), "a waker beat the task to the punch, task hasn't truly yielded yet from the waker's perspective")
}

func TestStore_PlainOverwrite(t *testing.T) {
	var s State
	s.Store(FlagCancelRequest, 7)
	flags, epoch := s.Load()
	assert.Equal(t, FlagCancelRequest, flags)
	assert.Equal(t, Epoch(7), epoch)
}
