package task

import (
	"context"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Task types accepted by the admission service.
const (
	TaskTypeChat  = "chat_generation"
	TaskTypeTitle = "title_generation"
)

// ValidTaskType reports whether t names a supported task type.
func ValidTaskType(t string) bool {
	return t == TaskTypeChat || t == TaskTypeTitle
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusRunning:
		return 2
	case StatusFinished, StatusFailed:
		return 3
	}
	return 0
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.rank() > 0
}

// IsTerminal reports whether no further transitions can occur from s.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next keeps the status
// monotonic. Rewriting the current status is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Task is a unit of background work executed by the Runner.
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// Registry stores task status with expiry and the per-task stream lock.
type Registry interface {
	// Set overwrites the status of id and refreshes its expiry.
	Set(ctx context.Context, id uuid.UUID, status Status) error

	// Get returns ErrTaskNotFound when id is absent or expired.
	Get(ctx context.Context, id uuid.UUID) (Status, error)

	// Delete removes id. Deleting an absent task is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// AcquireStreamLock returns ErrStreamLocked when another observer holds the lock.
	AcquireStreamLock(ctx context.Context, id uuid.UUID) error

	// ReleaseStreamLock drops the lock for id.
	ReleaseStreamLock(ctx context.Context, id uuid.UUID) error
}
