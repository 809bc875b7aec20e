package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/api/shared"
	"github.com/phrazzld/chatrelay-api/internal/platform/logger"
	"github.com/phrazzld/chatrelay-api/internal/redact"
	"github.com/phrazzld/chatrelay-api/internal/service"
	"github.com/phrazzld/chatrelay-api/internal/stream"
)

// StreamOpener attaches the single observer of a task.
type StreamOpener interface {
	Open(ctx context.Context, id uuid.UUID) (*stream.Session, error)
}

// TaskHandler serves the /api/tasks routes.
type TaskHandler struct {
	tasks     service.TaskService
	streams   StreamOpener
	validator *validator.Validate
	logger    *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks service.TaskService, streams StreamOpener, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:     tasks,
		streams:   streams,
		validator: validator.New(),
		logger:    logger.With("component", "task_handler"),
	}
}

// CreateTask handles POST /api/tasks. The task is admitted synchronously
// and generated in the background, so the response is 202 Accepted.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		HandleValidationError(w, r, err)
		return
	}
	chatID := uuid.MustParse(req.ChatID)

	info, err := h.tasks.CreateTask(r.Context(), userID, chatID, req.Type)
	if err != nil {
		log.Debug("task admission refused",
			"user_id", userID,
			"chat_id", chatID,
			"error", redact.Error(err))
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(info))
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDFromPath(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	info, err := h.tasks.GetTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(info))
}

// DeleteTask handles DELETE /api/tasks/{id}. Only finished or failed tasks
// can be deleted.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDFromPath(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	info, err := h.tasks.DeleteTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(info))
}

// StreamTask handles GET /api/tasks/{id}/stream as server-sent events.
// Errors are reported as JSON until the stream is open; afterwards the
// relay only ends.
func (h *TaskHandler) StreamTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := taskIDFromPath(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	session, err := h.streams.Open(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to open task stream")
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := session.Relay(r.Context(), w); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("stream observer left before the task ended", "task_id", id)
			return
		}
		log.Error("task stream ended with error", "task_id", id, "error", redact.Error(err))
	}
}
