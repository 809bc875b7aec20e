package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultChannelSize is the number of messages buffered for a subscriber.
const DefaultChannelSize = 64

// Broker carries task events over Redis pub/sub. Redis drops messages
// published while nobody is subscribed, so no topic state is kept.
type Broker struct {
	client *goredis.Client
	size   int
	logger *slog.Logger
}

// NewBroker creates a Broker.
func NewBroker(client *goredis.Client, size int, logger *slog.Logger) *Broker {
	if size <= 0 {
		size = DefaultChannelSize
	}
	return &Broker{
		client: client,
		size:   size,
		logger: logger.With("component", "redis_broker"),
	}
}

// Publisher returns a publisher for the task's channel.
func (b *Broker) Publisher(ctx context.Context, id uuid.UUID) (task.Publisher, error) {
	return &publisher{client: b.client, channel: channelName(id)}, nil
}

// Subscribe subscribes to the task's channel and waits for Redis to
// confirm the subscription.
func (b *Broker) Subscribe(ctx context.Context, id uuid.UUID) (task.Subscription, error) {
	ps := b.client.Subscribe(ctx, channelName(id))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to task %s: %w", id, err)
	}

	s := &subscription{
		pubsub: ps,
		events: make(chan task.Event),
		done:   make(chan struct{}),
		logger: b.logger.With("task_id", id),
	}
	go s.forward(ps.Channel(goredis.WithChannelSize(b.size)))
	return s, nil
}

type publisher struct {
	client  *goredis.Client
	channel string
}

func (p *publisher) Publish(ctx context.Context, e task.Event) error {
	data, err := e.Encode()
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}
	return nil
}

// Close is a no-op: pub/sub channels exist only while subscribed.
func (p *publisher) Close() error { return nil }

type subscription struct {
	pubsub *goredis.PubSub
	events chan task.Event
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// forward decodes messages until a terminal event, then closes events.
func (s *subscription) forward(ch <-chan *goredis.Message) {
	defer close(s.events)
	for msg := range ch {
		e, err := task.DecodeEvent([]byte(msg.Payload))
		if err != nil {
			s.logger.Warn("dropping malformed event", "error", err)
			continue
		}
		select {
		case s.events <- e:
		case <-s.done:
			return
		}
		if e.IsTerminal() {
			return
		}
	}
}

func (s *subscription) Events() <-chan task.Event { return s.events }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

var _ task.Broker = (*Broker)(nil)
