package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/events"
)

// TaskCreator builds a runnable task for an admitted request.
type TaskCreator interface {
	CreateTask(id uuid.UUID, taskType string, chatID uuid.UUID) (Task, error)
}

// TaskSubmitter queues a task for background execution.
type TaskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// RequestPayload is the payload of a task request event.
type RequestPayload struct {
	TaskID uuid.UUID `json:"task_id"`
	ChatID uuid.UUID `json:"chat_id"`
}

// TaskFactoryEventHandler turns task request events into tasks and submits
// them to the runner.
type TaskFactoryEventHandler struct {
	factory TaskCreator
	runner  TaskSubmitter
	logger  *slog.Logger
}

// NewTaskFactoryEventHandler creates a new event handler that uses the given task factory
// to create tasks, and submits them to the provided task runner.
func NewTaskFactoryEventHandler(
	factory TaskCreator,
	runner TaskSubmitter,
	logger *slog.Logger,
) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		factory: factory,
		runner:  runner,
		logger:  logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent creates and submits a task for chat and title generation
// events. Other event types are ignored.
func (h *TaskFactoryEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if !ValidTaskType(event.Type) {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload RequestPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	task, err := h.factory.CreateTask(payload.TaskID, event.Type, payload.ChatID)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"chat_id", payload.ChatID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.runner.Submit(ctx, task); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", task.ID(),
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("task created and submitted",
		"task_id", task.ID(),
		"task_type", task.Type(),
		"chat_id", payload.ChatID)
	return nil
}

var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)
