package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type registryEntry struct {
	status    Status
	expiresAt time.Time
}

// MemoryRegistry is an in-process Registry for single-instance deployments
// and tests. Entries and locks expire after the configured TTL.
type MemoryRegistry struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	tasks map[uuid.UUID]registryEntry
	locks map[uuid.UUID]time.Time

	nextSweep time.Time
}

// NewMemoryRegistry creates a MemoryRegistry whose entries expire after ttl.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		ttl:   ttl,
		now:   time.Now,
		tasks: make(map[uuid.UUID]registryEntry),
		locks: make(map[uuid.UUID]time.Time),
	}
}

// sweep drops expired entries and locks, at most once per ttl. Callers
// hold r.mu.
func (r *MemoryRegistry) sweep(now time.Time) {
	if now.Before(r.nextSweep) {
		return
	}
	r.nextSweep = now.Add(r.ttl)
	for id, entry := range r.tasks {
		if !now.Before(entry.expiresAt) {
			delete(r.tasks, id)
		}
	}
	for id, expiresAt := range r.locks {
		if !now.Before(expiresAt) {
			delete(r.locks, id)
		}
	}
}

// Set records status for id and restarts its TTL.
func (r *MemoryRegistry) Set(ctx context.Context, id uuid.UUID, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweep(now)
	r.tasks[id] = registryEntry{status: status, expiresAt: now.Add(r.ttl)}
	return nil
}

// Get returns the status of id, or ErrTaskNotFound once it expired.
func (r *MemoryRegistry) Get(ctx context.Context, id uuid.UUID) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.tasks[id]
	if !ok {
		return "", ErrTaskNotFound
	}
	if !r.now().Before(entry.expiresAt) {
		delete(r.tasks, id)
		return "", ErrTaskNotFound
	}
	return entry.status, nil
}

// Delete forgets id.
func (r *MemoryRegistry) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	return nil
}

// AcquireStreamLock takes the observer lock of id or returns ErrStreamLocked.
func (r *MemoryRegistry) AcquireStreamLock(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweep(now)
	if expiresAt, held := r.locks[id]; held && now.Before(expiresAt) {
		return ErrStreamLocked
	}
	r.locks[id] = now.Add(r.ttl)
	return nil
}

// ReleaseStreamLock drops the observer lock of id.
func (r *MemoryRegistry) ReleaseStreamLock(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, id)
	return nil
}

var _ Registry = (*MemoryRegistry)(nil)
