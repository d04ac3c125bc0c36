package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coro-sched/coro/internal/events"
)

func newTestClient() *Client {
	return &Client{
		ID:            "test-client",
		send:          make(chan []byte, 16),
		subscriptions: make(map[events.EventType]bool),
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	bus := events.NewBus()
	hub := NewHub(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Run(ctx)
	defer hub.Stop()

	client := newTestClient()
	client.SubscribeAll()

	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastsSubscribedEventsOnly(t *testing.T) {
	bus := events.NewBus()
	hub := NewHub(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Run(ctx)
	defer hub.Stop()

	subscribed := newTestClient()
	subscribed.subscriptions[events.EventTaskCompleted] = true

	other := newTestClient()
	other.subscriptions[events.EventTaskCancelled] = true

	hub.Register(subscribed)
	hub.Register(other)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	bus.Publish(events.NewEvent(events.EventTaskCompleted, events.TaskEventData(1, "trace", "normal", "completed", nil)))

	select {
	case msg := <-subscribed.send:
		assert.Contains(t, string(msg), "task.completed")
	case <-time.After(time.Second):
		t.Fatal("expected subscribed client to receive the event")
	}

	select {
	case <-other.send:
		t.Fatal("client not subscribed to task.completed should not receive it")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_StopClosesClientSendChannels(t *testing.T) {
	bus := events.NewBus()
	hub := NewHub(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Run(ctx)

	client := newTestClient()
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Stop()

	_, ok := <-client.send
	assert.False(t, ok, "send channel should be closed after Stop")
}
