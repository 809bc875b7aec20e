package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

// Registry stores task statuses and stream locks as expiring Redis keys.
type Registry struct {
	client goredis.Cmdable
	ttl    time.Duration
}

// NewRegistry creates a Registry whose keys expire after ttl.
func NewRegistry(client goredis.Cmdable, ttl time.Duration) *Registry {
	return &Registry{client: client, ttl: ttl}
}

// Set writes status for id and restarts the key TTL.
func (r *Registry) Set(ctx context.Context, id uuid.UUID, status task.Status) error {
	if err := r.client.Set(ctx, taskKey(id), string(status), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set status of task %s: %w", id, err)
	}
	return nil
}

// Get returns the status of id. A missing or expired key is
// task.ErrTaskNotFound.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (task.Status, error) {
	val, err := r.client.Get(ctx, taskKey(id)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", task.ErrTaskNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get status of task %s: %w", id, err)
	}
	status := task.Status(val)
	if !status.Valid() {
		return "", fmt.Errorf("task %s has unknown status %q", id, val)
	}
	return status, nil
}

// Delete removes the status key of id. Deleting a missing task is not an error.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, taskKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// AcquireStreamLock takes the observer lock of id with SETNX. It returns
// task.ErrStreamLocked when another observer holds it.
func (r *Registry) AcquireStreamLock(ctx context.Context, id uuid.UUID) error {
	ok, err := r.client.SetNX(ctx, lockKey(id), 1, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire stream lock of task %s: %w", id, err)
	}
	if !ok {
		return task.ErrStreamLocked
	}
	return nil
}

// ReleaseStreamLock drops the observer lock of id.
func (r *Registry) ReleaseStreamLock(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, lockKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to release stream lock of task %s: %w", id, err)
	}
	return nil
}

var _ task.Registry = (*Registry)(nil)
