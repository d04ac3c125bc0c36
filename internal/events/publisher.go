// Package events carries task lifecycle notifications from the Task
// Processor to in-process subscribers, primarily the admin API's
// WebSocket hub.
package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of task lifecycle event.
type EventType string

const (
	EventTaskScheduled EventType = "task.scheduled"
	EventTaskStarted   EventType = "task.started"
	EventTaskSuspended EventType = "task.suspended"
	EventTaskCompleted EventType = "task.completed"
	EventTaskCancelled EventType = "task.cancelled"
	EventProcessorStat EventType = "processor.stat"
)

// Event is one task lifecycle notification.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent creates an Event stamped with the current time.
func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ToJSON serializes the event for the WebSocket wire format.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON deserializes an event, used by tests asserting on the wire
// format a client would receive.
func FromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// TaskEventData builds the common task-event payload.
func TaskEventData(taskID uint64, traceID, importance, state string, extra map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"task_id":    taskID,
		"trace_id":   traceID,
		"importance": importance,
		"state":      state,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// ProcessorStatData builds the payload for a processor.stat event.
func ProcessorStatData(processorID string, activeTasks int, queueDepth int) map[string]interface{} {
	return map[string]interface{}{
		"processor_id": processorID,
		"active_tasks": activeTasks,
		"queue_depth":  queueDepth,
	}
}
