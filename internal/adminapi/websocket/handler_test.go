package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/coro-sched/coro/internal/events"
)

func TestHandler_ServeWS_RegistersClientAndDeliversEvents(t *testing.T) {
	bus := events.NewBus()
	hub := NewHub(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Run(ctx)
	defer hub.Stop()

	handler := NewHandler(hub)
	ts := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	bus.Publish(events.NewEvent(events.EventTaskCompleted, events.TaskEventData(1, "trace", "normal", "completed", nil)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), "task.completed")
}
