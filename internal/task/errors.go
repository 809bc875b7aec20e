package task

import (
	"errors"
	"fmt"

	"github.com/phrazzld/chatrelay-api/internal/store"
)

var (
	// ErrTaskNotFound is returned when a task is absent from the registry or has expired.
	ErrTaskNotFound = fmt.Errorf("%w: task", store.ErrNotFound)

	// ErrTaskNotTerminal is returned when deleting a task that is still pending or running.
	ErrTaskNotTerminal = errors.New("task is not finished or failed")

	// ErrTaskFailed is returned when opening a stream for a failed task.
	ErrTaskFailed = errors.New("task has failed")

	// ErrTaskFinished is returned when opening a stream for a task that has already finished.
	ErrTaskFinished = errors.New("task has already finished")

	// ErrStreamLocked is returned when another observer is attached to the task.
	ErrStreamLocked = errors.New("task is already being streamed")

	// ErrStatusRegression is returned when a status update would move backward.
	ErrStatusRegression = errors.New("task status cannot move backward")

	// ErrInvalidEvent is returned when a topic message cannot be decoded.
	ErrInvalidEvent = errors.New("invalid task event")

	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")

	ErrUnsupportedTaskType = errors.New("unsupported task type")
	ErrEmptyChatID         = errors.New("chat ID cannot be empty")
	ErrNilDependency       = errors.New("executor dependency cannot be nil")
)
