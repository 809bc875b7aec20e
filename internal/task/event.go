package task

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventType tags an Event on a task topic.
type EventType string

const (
	EventStatus EventType = "status"
	EventStream EventType = "stream"
	EventFinish EventType = "finish"
)

// Event is the message published on a task's topic and relayed to observers.
type Event struct {
	Type      EventType `json:"type"`
	TaskID    uuid.UUID `json:"task_id"`
	Status    Status    `json:"status"`
	Content   string    `json:"content,omitempty"`
	TokenCost int       `json:"token_cost,omitempty"`
}

// StatusEvent reports a status transition.
func StatusEvent(id uuid.UUID, status Status) Event {
	return Event{Type: EventStatus, TaskID: id, Status: status}
}

// StreamEvent carries the content generated so far.
func StreamEvent(id uuid.UUID, content string) Event {
	return Event{Type: EventStream, TaskID: id, Status: StatusRunning, Content: content}
}

// FinishEvent carries the final content and its token cost.
func FinishEvent(id uuid.UUID, content string, tokenCost int) Event {
	return Event{Type: EventFinish, TaskID: id, Status: StatusFinished, Content: content, TokenCost: tokenCost}
}

// IsTerminal reports whether e ends the task's event sequence.
func (e Event) IsTerminal() bool {
	return e.Type == EventFinish || (e.Type == EventStatus && e.Status == StatusFailed)
}

// Encode returns the JSON wire form of e.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses the JSON wire form of an event.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	switch e.Type {
	case EventStatus, EventStream, EventFinish:
	default:
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if !e.Status.Valid() {
		return Event{}, fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, e.Status)
	}
	return e, nil
}
