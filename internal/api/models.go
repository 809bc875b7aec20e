package api

import (
	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/service"
)

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	ChatID string `json:"chat_id" validate:"required,uuid"`
	Type   string `json:"type"    validate:"omitempty,oneof=chat_generation title_generation"`
}

// TaskResponse describes a task's current status.
type TaskResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Status string    `json:"status"`
}

func taskToResponse(info *service.TaskInfo) TaskResponse {
	return TaskResponse{TaskID: info.ID, Status: string(info.Status)}
}
