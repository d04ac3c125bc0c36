package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coro-sched/coro/internal/events"
	"github.com/coro-sched/coro/internal/logger"
)

func init() {
	logger.Init("error", false)
}

func TestClient_IsSubscribed_DefaultsToEverythingWhenUnset(t *testing.T) {
	c := &Client{subscriptions: make(map[events.EventType]bool)}
	assert.True(t, c.IsSubscribed(events.EventTaskCompleted))
	assert.True(t, c.IsSubscribed(events.EventProcessorStat))
}

func TestClient_SubscribeAll_SubscribesKnownTypes(t *testing.T) {
	c := &Client{subscriptions: make(map[events.EventType]bool)}
	c.SubscribeAll()

	for _, et := range []events.EventType{
		events.EventTaskScheduled,
		events.EventTaskStarted,
		events.EventTaskSuspended,
		events.EventTaskCompleted,
		events.EventTaskCancelled,
		events.EventProcessorStat,
	} {
		assert.True(t, c.IsSubscribed(et), "expected subscription to %s", et)
	}
}

func TestClient_IsSubscribed_OnlyMatchesExplicitSubscriptions(t *testing.T) {
	c := &Client{subscriptions: map[events.EventType]bool{
		events.EventTaskCompleted: true,
	}}
	assert.True(t, c.IsSubscribed(events.EventTaskCompleted))
	assert.False(t, c.IsSubscribed(events.EventTaskCancelled))
}
