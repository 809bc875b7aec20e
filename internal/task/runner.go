package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/phrazzld/chatrelay-api/internal/platform/logger"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// ShutdownGrace bounds how long Stop waits for in-flight tasks before
	// cancelling their context.
	ShutdownGrace time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:   4,
		QueueSize:     100,
		ShutdownGrace: 30 * time.Second,
	}
}

// TaskRunner executes submitted tasks on a fixed pool of workers. Tasks run
// detached from the request that submitted them.
type TaskRunner struct {
	queue      *TaskQueue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
	stopOnce   sync.Once
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("component", "task_runner")

	return &TaskRunner{
		queue:      NewTaskQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit queues task for execution. It never blocks on task execution.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	return r.queue.Enqueue(task)
}

// Start launches the workers.
func (r *TaskRunner) Start() error {
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.logger.Info("task runner started", "worker_count", r.config.WorkerCount)
	return nil
}

// Stop closes the queue and waits for the workers to drain it. Tasks still
// running after the shutdown grace period have their context cancelled.
func (r *TaskRunner) Stop() {
	r.stopOnce.Do(func() {
		r.queue.Close()

		done := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(r.config.ShutdownGrace):
			r.logger.Warn("shutdown grace period elapsed, cancelling running tasks")
			r.cancelFunc()
			<-done
		}
		r.cancelFunc()
	})
}

func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)
	for task := range r.queue.Tasks() {
		r.processTask(task, id)
	}
	r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
}

func (r *TaskRunner) processTask(task Task, workerID int) {
	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)
	ctx := logger.WithLogger(r.ctx, log)

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				log.Error("task panicked", "panic", p, "stack", string(debug.Stack()))
				err = fmt.Errorf("task panicked: %v", p)
			}
		}()
		return task.Execute(ctx)
	}()

	if err != nil {
		r.errHandler(task, err)
		return
	}
	log.Info("task completed")
}
