package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/task"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName is the direct exchange carrying task events.
	ExchangeName = "streaming"

	// DefaultQueueExpiry removes task queues that stay unused this long.
	DefaultQueueExpiry = 10 * time.Minute
)

// QueueName returns the queue and routing key for a task.
func QueueName(id uuid.UUID) string {
	return "streaming_" + id.String()
}

// channel is the subset of *amqp.Channel the broker uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	QueueDelete(name string, ifUnused, ifEmpty, noWait bool) (int, error)
	Close() error
}

// Broker opens one AMQP channel per publisher and per subscription.
type Broker struct {
	open   func() (channel, error)
	expiry time.Duration
	logger *slog.Logger
}

// NewBroker creates a Broker on an open connection.
func NewBroker(conn *amqp.Connection, expiry time.Duration, logger *slog.Logger) *Broker {
	return newBroker(func() (channel, error) { return conn.Channel() }, expiry, logger)
}

func newBroker(open func() (channel, error), expiry time.Duration, logger *slog.Logger) *Broker {
	if expiry <= 0 {
		expiry = DefaultQueueExpiry
	}
	return &Broker{
		open:   open,
		expiry: expiry,
		logger: logger.With("component", "rabbitmq_broker"),
	}
}

// Dial connects to the server at url.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	return conn, nil
}

// declare opens a channel and declares the exchange, the task queue and
// its binding. All declarations are idempotent.
func (b *Broker) declare(id uuid.UUID) (channel, string, error) {
	ch, err := b.open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open channel: %w", err)
	}
	name := QueueName(id)

	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err)
	}
	args := amqp.Table{"x-expires": int32(b.expiry / time.Millisecond)}
	if _, err := ch.QueueDeclare(name, false, false, false, false, args); err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	if err := ch.QueueBind(name, name, ExchangeName, false, nil); err != nil {
		_ = ch.Close()
		return nil, "", fmt.Errorf("failed to bind queue %s: %w", name, err)
	}
	return ch, name, nil
}

// Publisher declares the task's queue and returns a publisher bound to it.
func (b *Broker) Publisher(ctx context.Context, id uuid.UUID) (task.Publisher, error) {
	ch, name, err := b.declare(id)
	if err != nil {
		return nil, err
	}
	return &publisher{ch: ch, key: name}, nil
}

// Subscribe starts an exclusive consumer on the task's queue. A second
// consumer is refused by the server and reported as task.ErrStreamLocked.
func (b *Broker) Subscribe(ctx context.Context, id uuid.UUID) (task.Subscription, error) {
	ch, name, err := b.declare(id)
	if err != nil {
		return nil, err
	}

	tag := "stream-" + uuid.NewString()
	deliveries, err := ch.Consume(name, tag, true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		var amqpErr *amqp.Error
		if errors.As(err, &amqpErr) && amqpErr.Code == amqp.AccessRefused {
			return nil, task.ErrStreamLocked
		}
		return nil, fmt.Errorf("failed to consume %s: %w", name, err)
	}

	s := &subscription{
		ch:     ch,
		queue:  name,
		tag:    tag,
		events: make(chan task.Event),
		done:   make(chan struct{}),
		logger: b.logger.With("task_id", id),
	}
	go s.forward(deliveries)
	return s, nil
}

type publisher struct {
	ch   channel
	key  string
	once sync.Once
}

func (p *publisher) Publish(ctx context.Context, e task.Event) error {
	body, err := e.Encode()
	if err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, ExchangeName, p.key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.key, err)
	}
	return nil
}

// Close closes the AMQP channel. The queue is left to x-expires.
func (p *publisher) Close() error {
	var err error
	p.once.Do(func() { err = p.ch.Close() })
	return err
}

type subscription struct {
	ch     channel
	queue  string
	tag    string
	events chan task.Event
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// forward decodes deliveries until a terminal event, then closes events.
func (s *subscription) forward(deliveries <-chan amqp.Delivery) {
	defer close(s.events)
	for d := range deliveries {
		e, err := task.DecodeEvent(d.Body)
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

// Close cancels the consumer, deletes the queue and closes the channel.
func (s *subscription) Close() error {
	var errs []error
	s.once.Do(func() {
		close(s.done)
		if err := s.ch.Cancel(s.tag, false); err != nil {
			errs = append(errs, fmt.Errorf("failed to cancel consumer: %w", err))
		}
		if _, err := s.ch.QueueDelete(s.queue, false, false, false); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete queue %s: %w", s.queue, err))
		}
		if err := s.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

var _ task.Broker = (*Broker)(nil)
