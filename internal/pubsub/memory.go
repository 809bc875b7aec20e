package pubsub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/task"
)

// DefaultBufferSize is the number of events a topic holds for a slow subscriber.
const DefaultBufferSize = 64

type memoryTopic struct {
	events     chan task.Event
	left       chan struct{}
	subscribed bool
}

// MemoryBroker keeps task topics in process memory. Events published while
// no subscriber is attached are dropped.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[uuid.UUID]*memoryTopic
	buffer int
	logger *slog.Logger
}

// NewMemoryBroker creates a broker whose topics buffer up to buffer events.
func NewMemoryBroker(buffer int, logger *slog.Logger) *MemoryBroker {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &MemoryBroker{
		topics: make(map[uuid.UUID]*memoryTopic),
		buffer: buffer,
		logger: logger.With("component", "memory_broker"),
	}
}

// topic returns the topic for id, creating it on first touch. Callers hold b.mu.
func (b *MemoryBroker) topic(id uuid.UUID) *memoryTopic {
	t, ok := b.topics[id]
	if !ok {
		t = &memoryTopic{
			events: make(chan task.Event, b.buffer),
			left:   make(chan struct{}),
		}
		b.topics[id] = t
	}
	return t
}

// Publisher opens the publishing side of the topic for id.
func (b *MemoryBroker) Publisher(ctx context.Context, id uuid.UUID) (task.Publisher, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &memoryPublisher{broker: b, id: id, topic: b.topic(id)}, nil
}

// Subscribe attaches the single subscriber of the topic for id.
func (b *MemoryBroker) Subscribe(ctx context.Context, id uuid.UUID) (task.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topic(id)
	if t.subscribed {
		return nil, task.ErrStreamLocked
	}
	t.subscribed = true
	return &memorySubscription{broker: b, id: id, topic: t}, nil
}

// Topics returns the number of live topics.
func (b *MemoryBroker) Topics() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}

func (b *MemoryBroker) discard(id uuid.UUID, t *memoryTopic) {
	if b.topics[id] == t {
		delete(b.topics, id)
	}
}

type memoryPublisher struct {
	broker *MemoryBroker
	id     uuid.UUID
	topic  *memoryTopic
	once   sync.Once
}

// Publish blocks while the subscriber's buffer is full.
func (p *memoryPublisher) Publish(ctx context.Context, e task.Event) error {
	p.broker.mu.Lock()
	subscribed := p.topic.subscribed
	p.broker.mu.Unlock()

	if !subscribed {
		p.broker.logger.Debug("dropping event without subscriber",
			"task_id", p.id, "event_type", e.Type)
		return nil
	}

	select {
	case p.topic.events <- e:
		return nil
	case <-p.topic.left:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the topic's event sequence. A topic that never had a
// subscriber is discarded.
func (p *memoryPublisher) Close() error {
	p.once.Do(func() {
		p.broker.mu.Lock()
		defer p.broker.mu.Unlock()
		if !p.topic.subscribed {
			p.broker.discard(p.id, p.topic)
			return
		}
		close(p.topic.events)
	})
	return nil
}

type memorySubscription struct {
	broker *MemoryBroker
	id     uuid.UUID
	topic  *memoryTopic
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan task.Event {
	return s.topic.events
}

// Close detaches the subscriber and discards the topic.
func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		defer s.broker.mu.Unlock()
		close(s.topic.left)
		s.broker.discard(s.id, s.topic)
	})
	return nil
}

var _ task.Broker = (*MemoryBroker)(nil)
