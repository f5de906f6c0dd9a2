package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/riskibarqy/oddsline/internal/usecase"
)

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.ListTasks")
	defer span.End()

	items, err := h.tasks.List(ctx)
	if err != nil {
		h.logFailure(ctx, "list tasks failed", err)
		writeError(ctx, w, err)
		return
	}

	out := make([]taskDTO, 0, len(items))
	for _, item := range items {
		out = append(out, taskToDTO(item))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) EnqueueTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.EnqueueTask")
	defer span.End()

	var req enqueueTaskRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	task, err := h.tasks.Enqueue(ctx, usecase.TaskRequest{
		Kind:    usecase.TaskKind(strings.TrimSpace(req.Kind)),
		MatchID: req.MatchID,
		Delay:   time.Duration(req.DelaySeconds) * time.Second,
	})
	if err != nil {
		h.logFailure(ctx, "enqueue task failed", err, "kind", req.Kind, "match_id", req.MatchID)
		writeError(ctx, w, err)
		return
	}

	status := http.StatusAccepted
	if task.Deduplicated {
		status = http.StatusOK
	}
	writeSuccess(ctx, w, status, taskToDTO(task))
}

func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.CancelTask")
	defer span.End()

	taskID := strings.TrimSpace(r.PathValue("taskID"))
	if err := h.tasks.Cancel(ctx, taskID); err != nil {
		h.logFailure(ctx, "cancel task failed", err, "task_id", taskID)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"id": taskID, "status": string(usecase.TaskCanceled)})
}
