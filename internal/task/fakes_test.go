package task

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/phrazzld/chatrelay-api/internal/generation"
	"github.com/phrazzld/chatrelay-api/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeConversations struct {
	conv      *domain.Conversation
	getErr    error
	updateErr error
	titles    []string
}

func (f *fakeConversations) GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.conv == nil || f.conv.ID != id {
		return nil, store.ErrConversationNotFound
	}
	c := *f.conv
	return &c, nil
}

func (f *fakeConversations) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.titles = append(f.titles, title)
	return nil
}

type fakeMessages struct {
	history   map[uuid.UUID][]domain.Message
	appended  []domain.Message
	getErr    error
	appendErr error
}

func (f *fakeMessages) GetMessages(ctx context.Context, id uuid.UUID) ([]domain.Message, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.history[id], nil
}

func (f *fakeMessages) AppendMessage(ctx context.Context, id uuid.UUID, msg domain.Message) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, msg)
	return nil
}

type consumeCall struct {
	userID      uuid.UUID
	amount      float64
	description string
}

type fakeLedger struct {
	consumed []consumeCall
	err      error
}

func (f *fakeLedger) Check(ctx context.Context, userID uuid.UUID, amount float64) error {
	return nil
}

func (f *fakeLedger) Consume(ctx context.Context, userID uuid.UUID, amount float64, description string) error {
	if f.err != nil {
		return f.err
	}
	f.consumed = append(f.consumed, consumeCall{userID: userID, amount: amount, description: description})
	return nil
}

func (f *fakeLedger) Add(ctx context.Context, userID uuid.UUID, amount float64, description string) error {
	return nil
}

// recordingBroker captures published events in order.
type recordingBroker struct {
	mu         sync.Mutex
	events     []Event
	openErr    error
	publishErr error
	closed     int
}

func (b *recordingBroker) Publisher(ctx context.Context, id uuid.UUID) (Publisher, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &recordingPublisher{broker: b}, nil
}

func (b *recordingBroker) Subscribe(ctx context.Context, id uuid.UUID) (Subscription, error) {
	panic("not used")
}

func (b *recordingBroker) recorded() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

type recordingPublisher struct {
	broker *recordingBroker
}

func (p *recordingPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.broker.mu.Lock()
	defer p.broker.mu.Unlock()
	if p.broker.publishErr != nil {
		return p.broker.publishErr
	}
	p.broker.events = append(p.broker.events, e)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.broker.mu.Lock()
	defer p.broker.mu.Unlock()
	p.broker.closed++
	return nil
}

// scriptedAdapter replays a fixed event sequence and then returns err.
// With hang set it waits for cancellation instead.
type scriptedAdapter struct {
	events []generation.Event
	err    error
	hang   bool
	req    generation.Request
}

func (a *scriptedAdapter) Generate(ctx context.Context, req generation.Request, events chan<- generation.Event) error {
	a.req = req
	for _, ev := range a.events {
		if err := generation.Send(ctx, events, ev); err != nil {
			return err
		}
	}
	if a.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return a.err
}

type fixedMultipliers float64

func (m fixedMultipliers) Multiplier(provider, model string) float64 {
	return float64(m)
}

// statusRecorder wraps a MemoryRegistry and records every Set. Like a
// network-backed registry it refuses writes once ctx is done.
type statusRecorder struct {
	*MemoryRegistry
	mu  sync.Mutex
	set []Status
	err error
}

func (r *statusRecorder) Set(ctx context.Context, id uuid.UUID, status Status) error {
	r.mu.Lock()
	r.set = append(r.set, status)
	r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryRegistry.Set(ctx, id, status)
}

// stubTask is a Task whose Execute runs run.
type stubTask struct {
	id       uuid.UUID
	taskType string
	run      func(ctx context.Context) error
}

func newStubTask(taskType string) *stubTask {
	return &stubTask{
		id:       uuid.New(),
		taskType: taskType,
		run:      func(ctx context.Context) error { return nil },
	}
}

func (t *stubTask) ID() uuid.UUID                     { return t.id }
func (t *stubTask) Type() string                      { return t.taskType }
func (t *stubTask) Execute(ctx context.Context) error { return t.run(ctx) }
