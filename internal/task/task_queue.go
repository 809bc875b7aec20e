package task

import (
	"fmt"
	"log/slog"
	"sync"
)

// TaskQueue is the bounded buffer between Submit and the runner's workers.
// Enqueue never blocks.
type TaskQueue struct {
	mu     sync.RWMutex
	closed bool
	tasks  chan Task
	logger *slog.Logger
}

// NewTaskQueue creates a TaskQueue holding at most capacity tasks.
func NewTaskQueue(capacity int, logger *slog.Logger) *TaskQueue {
	return &TaskQueue{tasks: make(chan Task, capacity), logger: logger}
}

// Enqueue buffers t. It fails with ErrQueueFull at capacity and with
// ErrQueueClosed once Close has been called.
func (q *TaskQueue) Enqueue(t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- t:
	default:
		return fmt.Errorf("%w: %d tasks waiting", ErrQueueFull, cap(q.tasks))
	}
	q.logger.Debug("task enqueued", "task_id", t.ID(), "task_type", t.Type(), "waiting", len(q.tasks))
	return nil
}

// Close rejects further tasks. Buffered tasks can still be drained from
// Tasks, which is closed once they are consumed.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
	q.logger.Info("task queue closed", "waiting", len(q.tasks))
}

// Tasks is the channel workers range over.
func (q *TaskQueue) Tasks() <-chan Task {
	return q.tasks
}

// Len reports how many tasks are waiting for a worker.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}
