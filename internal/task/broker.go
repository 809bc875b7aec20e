package task

import (
	"context"

	"github.com/google/uuid"
)

// Publisher sends events to one task's topic. Close releases the channel
// and, when no subscriber ever attached, discards the topic.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Subscription receives events from one task's topic in publish order.
// Close discards the topic.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Broker creates per-task topics on first use by either side.
type Broker interface {
	Publisher(ctx context.Context, id uuid.UUID) (Publisher, error)
	Subscribe(ctx context.Context, id uuid.UUID) (Subscription, error)
}
