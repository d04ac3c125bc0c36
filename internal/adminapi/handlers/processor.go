// Package handlers implements the admin API's HTTP handlers: processor
// introspection and task control.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coro-sched/coro/internal/logger"
	"github.com/coro-sched/coro/internal/processor"
	"github.com/coro-sched/coro/internal/taskctx"
)

// ProcessorHandler serves processor-scoped introspection routes.
type ProcessorHandler struct {
	proc *processor.Processor
}

// NewProcessorHandler creates a handler bound to one Processor.
func NewProcessorHandler(p *processor.Processor) *ProcessorHandler {
	return &ProcessorHandler{proc: p}
}

// taskSummary is the JSON shape returned for one task.
type taskSummary struct {
	ID         uint64 `json:"id"`
	TraceID    string `json:"trace_id"`
	State      string `json:"state"`
	Importance string `json:"importance"`
}

func toSummary(t *taskctx.Context) taskSummary {
	return taskSummary{
		ID:         t.ID(),
		TraceID:    t.TraceID().String(),
		State:      t.GetState().String(),
		Importance: t.Importance().String(),
	}
}

// Stats handles GET /processors/{id}/stats.
func (h *ProcessorHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != "" && id != h.proc.ID() {
		h.respondError(w, http.StatusNotFound, "processor not found")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":           h.proc.ID(),
		"state":        h.proc.State().String(),
		"active_tasks": h.proc.ActiveTaskCount(),
		"queue_depth":  h.proc.QueueDepth(),
	})
}

// Tasks handles GET /processors/{id}/tasks.
func (h *ProcessorHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != "" && id != h.proc.ID() {
		h.respondError(w, http.StatusNotFound, "processor not found")
		return
	}

	tasks := h.proc.Tasks()
	summaries := make([]taskSummary, 0, len(tasks))
	for _, t := range tasks {
		summaries = append(summaries, toSummary(t))
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": summaries,
		"count": len(summaries),
	})
}

func (h *ProcessorHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode admin API response")
	}
}

func (h *ProcessorHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}
