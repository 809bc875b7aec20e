package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/phrazzld/chatrelay-api/internal/events"
	"github.com/phrazzld/chatrelay-api/internal/platform/logger"
	"github.com/phrazzld/chatrelay-api/internal/store"
	"github.com/phrazzld/chatrelay-api/internal/task"
)

// TaskInfo is the externally visible state of a task.
type TaskInfo struct {
	ID     uuid.UUID   `json:"task_id"`
	Status task.Status `json:"status"`
}

// TaskService admits, inspects and removes generation tasks.
type TaskService interface {
	// CreateTask admits a task of taskType for chatID on behalf of userID.
	// An empty taskType means chat generation. The returned task is pending;
	// the generation itself runs in the background.
	CreateTask(ctx context.Context, userID, chatID uuid.UUID, taskType string) (*TaskInfo, error)

	// GetTask returns task.ErrTaskNotFound for unknown or expired tasks.
	GetTask(ctx context.Context, id uuid.UUID) (*TaskInfo, error)

	// DeleteTask removes a finished or failed task and returns its last status.
	// Pending and running tasks fail with task.ErrTaskNotTerminal.
	DeleteTask(ctx context.Context, id uuid.UUID) (*TaskInfo, error)
}

type taskServiceImpl struct {
	conversations store.ConversationStore
	users         store.UserStore
	registry      task.Registry
	emitter       events.EventEmitter
	logger        *slog.Logger
}

// NewTaskService creates a TaskService. All dependencies are required.
func NewTaskService(
	conversations store.ConversationStore,
	users store.UserStore,
	registry task.Registry,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (TaskService, error) {
	if conversations == nil {
		return nil, domain.NewValidationError("conversations", "cannot be nil", domain.ErrValidation)
	}
	if users == nil {
		return nil, domain.NewValidationError("users", "cannot be nil", domain.ErrValidation)
	}
	if registry == nil {
		return nil, domain.NewValidationError("registry", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, domain.NewValidationError("emitter", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		conversations: conversations,
		users:         users,
		registry:      registry,
		emitter:       emitter,
		logger:        logger.With(slog.String("component", "task_service")),
	}, nil
}

func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	userID, chatID uuid.UUID,
	taskType string,
) (*TaskInfo, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if taskType == "" {
		taskType = task.TaskTypeChat
	}
	if !task.ValidTaskType(taskType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskType, taskType)
	}

	conv, err := s.conversations.GetConversation(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != userID {
		log.Warn("task requested for a conversation owned by another user",
			"chat_id", chatID,
			"user_id", userID)
		return nil, ErrNotConversationOwner
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.CanAffordTask() {
		log.Info("task rejected: no credits left",
			"user_id", userID,
			"credits_left", user.CreditsLeft)
		return nil, ErrInsufficientCredits
	}

	id := uuid.New()
	if err := s.registry.Set(ctx, id, task.StatusPending); err != nil {
		return nil, NewServiceError("create_task", "failed to record task", err)
	}

	event, err := events.NewTaskRequestEvent(taskType, userID, task.RequestPayload{TaskID: id, ChatID: chatID})
	if err == nil {
		err = s.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		if derr := s.registry.Delete(context.WithoutCancel(ctx), id); derr != nil {
			log.Error("failed to remove rejected task", "task_id", id, "error", derr)
		}
		if errors.Is(err, task.ErrQueueFull) {
			log.Warn("task rejected: queue full", "task_id", id, "chat_id", chatID)
			return nil, err
		}
		return nil, NewServiceError("create_task", "failed to schedule task", err)
	}

	log.Info("task admitted",
		"task_id", id,
		"task_type", taskType,
		"chat_id", chatID,
		"user_id", userID)
	return &TaskInfo{ID: id, Status: task.StatusPending}, nil
}

func (s *taskServiceImpl) GetTask(ctx context.Context, id uuid.UUID) (*TaskInfo, error) {
	status, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TaskInfo{ID: id, Status: status}, nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, id uuid.UUID) (*TaskInfo, error) {
	status, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !status.IsTerminal() {
		return nil, fmt.Errorf("%w: status is %s", task.ErrTaskNotTerminal, status)
	}
	if err := s.registry.Delete(ctx, id); err != nil {
		return nil, NewServiceError("delete_task", "failed to delete task", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("task deleted", "task_id", id, "status", status)
	return &TaskInfo{ID: id, Status: status}, nil
}
