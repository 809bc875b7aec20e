package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyEventType is returned when a request event has no task type.
var ErrEmptyEventType = errors.New("event type cannot be empty")

// TaskRequestEvent asks for a background task of the given Type. The
// payload is task-specific JSON decoded by the handler that accepts it.
type TaskRequestEvent struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	RequestedBy uuid.UUID       `json:"requested_by"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskRequestEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskRequestEvent builds an event for taskType on behalf of userID.
func NewTaskRequestEvent(taskType string, userID uuid.UUID, payload any) (*TaskRequestEvent, error) {
	if taskType == "" {
		return nil, ErrEmptyEventType
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &TaskRequestEvent{
		ID:          uuid.New(),
		Type:        taskType,
		RequestedBy: userID,
		Payload:     data,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// EventHandler processes task request events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// EventEmitter delivers task request events to handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}
