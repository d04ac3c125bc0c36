package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coro-sched/coro/internal/logger"
	"github.com/coro-sched/coro/internal/processor"
	"github.com/coro-sched/coro/internal/taskctx"
)

// TaskHandler serves task-scoped control routes.
type TaskHandler struct {
	proc *processor.Processor
}

// NewTaskHandler creates a handler bound to one Processor.
func NewTaskHandler(p *processor.Processor) *TaskHandler {
	return &TaskHandler{proc: p}
}

// Get handles GET /tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, toSummary(t))
}

// Cancel handles POST /tasks/{id}/cancel.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}

	t.RequestCancel(taskctx.CancelUserRequest)

	logger.Info().Uint64("task_id", t.ID()).Msg("task cancel requested via admin API")
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "cancellation requested",
		"task":    toSummary(t),
	})
}

func (h *TaskHandler) lookup(w http.ResponseWriter, r *http.Request) (*taskctx.Context, bool) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid task id")
		return nil, false
	}

	t, found := h.proc.Task(id)
	if !found {
		h.respondError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return t, true
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode admin API response")
	}
}

func (h *TaskHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}
