package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_StampsTimestamp(t *testing.T) {
	e := NewEvent(EventTaskCompleted, map[string]interface{}{"task_id": uint64(1)})
	assert.Equal(t, EventTaskCompleted, e.Type)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, uint64(1), e.Data["task_id"])
}

func TestEvent_ToJSONFromJSONRoundTrip(t *testing.T) {
	original := NewEvent(EventTaskStarted, TaskEventData(42, "trace-id", "normal", "running", nil))

	data, err := original.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, original.Type, decoded.Type)
	assert.Equal(t, original.Timestamp.Unix(), decoded.Timestamp.Unix())
	assert.Equal(t, float64(42), decoded.Data["task_id"])
	assert.Equal(t, "trace-id", decoded.Data["trace_id"])
}

func TestFromJSON_InvalidPayload(t *testing.T) {
	_, err := FromJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestTaskEventData_MergesExtra(t *testing.T) {
	data := TaskEventData(7, "trace", "critical", "suspended", map[string]interface{}{"reason": "stale"})
	assert.Equal(t, uint64(7), data["task_id"])
	assert.Equal(t, "trace", data["trace_id"])
	assert.Equal(t, "critical", data["importance"])
	assert.Equal(t, "suspended", data["state"])
	assert.Equal(t, "stale", data["reason"])
}

func TestTaskEventData_NilExtraOmitsNothing(t *testing.T) {
	data := TaskEventData(1, "t", "normal", "completed", nil)
	assert.Len(t, data, 4)
}

func TestProcessorStatData(t *testing.T) {
	data := ProcessorStatData("proc-1", 3, 10)
	assert.Equal(t, "proc-1", data["processor_id"])
	assert.Equal(t, 3, data["active_tasks"])
	assert.Equal(t, 10, data["queue_depth"])
}
