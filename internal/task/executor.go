package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/phrazzld/chatrelay-api/internal/generation"
	"github.com/phrazzld/chatrelay-api/internal/store"
)

const (
	// titleMaxTokens caps the output of title generation runs.
	titleMaxTokens = 100

	// adapterEventBuffer bounds how far an adapter may run ahead of the executor.
	adapterEventBuffer = 16
)

// AdapterResolver selects a generation adapter by provider key.
type AdapterResolver interface {
	Resolve(provider string) (generation.Adapter, error)
}

// MultiplierSource returns the token cost multiplier of a provider's model.
type MultiplierSource interface {
	Multiplier(provider, model string) float64
}

// ExecutorDeps are the collaborators shared by every Executor.
type ExecutorDeps struct {
	Conversations store.ConversationStore
	Messages      store.MessageStore
	Ledger        store.CreditLedger
	Registry      Registry
	Broker        Broker
	Adapters      AdapterResolver
	Multipliers   MultiplierSource
	TitlePrompt   string
	Logger        *slog.Logger
}

func (d ExecutorDeps) validate() error {
	switch {
	case d.Conversations == nil:
		return fmt.Errorf("%w: conversation store", ErrNilDependency)
	case d.Messages == nil:
		return fmt.Errorf("%w: message store", ErrNilDependency)
	case d.Ledger == nil:
		return fmt.Errorf("%w: credit ledger", ErrNilDependency)
	case d.Registry == nil:
		return fmt.Errorf("%w: registry", ErrNilDependency)
	case d.Broker == nil:
		return fmt.Errorf("%w: broker", ErrNilDependency)
	case d.Adapters == nil:
		return fmt.Errorf("%w: adapter resolver", ErrNilDependency)
	case d.Multipliers == nil:
		return fmt.Errorf("%w: multiplier source", ErrNilDependency)
	case d.Logger == nil:
		return fmt.Errorf("%w: logger", ErrNilDependency)
	}
	return nil
}

// Executor runs one chat or title generation task from pending to a
// terminal status. It is the only writer of the task's status and events.
type Executor struct {
	id       uuid.UUID
	taskType string
	chatID   uuid.UUID
	deps     ExecutorDeps
	logger   *slog.Logger
	status   Status
}

// ID returns the task's unique identifier
func (e *Executor) ID() uuid.UUID {
	return e.id
}

// Type returns the task type identifier
func (e *Executor) Type() string {
	return e.taskType
}

// ChatID returns the conversation the task generates for.
func (e *Executor) ChatID() uuid.UUID {
	return e.chatID
}

// Execute runs the task. Errors before the finish event leave the task
// failed; errors from billing or persistence after it leave it finished.
// Both are returned to the caller.
func (e *Executor) Execute(ctx context.Context) error {
	pub, err := e.deps.Broker.Publisher(ctx, e.id)
	if err != nil {
		return e.fail(ctx, nil, fmt.Errorf("failed to open task topic: %w", err))
	}
	defer func() {
		if cerr := pub.Close(); cerr != nil {
			e.logger.Warn("failed to close task topic", "error", cerr)
		}
	}()

	conv, err := e.deps.Conversations.GetConversation(ctx, e.chatID)
	if err != nil {
		return e.fail(ctx, pub, fmt.Errorf("failed to load conversation: %w", err))
	}

	req, err := e.buildRequest(ctx, conv)
	if err != nil {
		return e.fail(ctx, pub, err)
	}

	adapter, err := e.deps.Adapters.Resolve(req.Params.Provider)
	if err != nil {
		e.logger.Error("generation provider is not configured",
			"provider", req.Params.Provider, "error", err)
		return e.fail(ctx, pub, err)
	}

	if err := e.setStatus(ctx, StatusPending); err != nil {
		return e.fail(ctx, pub, err)
	}

	finish, err := e.drive(ctx, pub, adapter, req)
	if err != nil {
		return e.fail(ctx, pub, err)
	}

	return e.complete(ctx, pub, conv, req.Params, finish)
}

func (e *Executor) buildRequest(ctx context.Context, conv *domain.Conversation) (generation.Request, error) {
	presetMessages, err := e.deps.Messages.GetMessages(ctx, conv.PresetID)
	if err != nil {
		return generation.Request{}, fmt.Errorf("failed to load preset messages: %w", err)
	}
	chatMessages, err := e.deps.Messages.GetMessages(ctx, conv.ID)
	if err != nil {
		return generation.Request{}, fmt.Errorf("failed to load chat messages: %w", err)
	}

	messages := make([]domain.Message, 0, len(presetMessages)+len(chatMessages)+1)
	messages = append(messages, presetMessages...)
	messages = append(messages, chatMessages...)

	params := conv.Params.WithDefaults()
	if e.taskType == TaskTypeTitle {
		messages = append(messages, domain.NewTextMessage(domain.RoleUser, e.deps.TitlePrompt))
		params.MaxTokens = titleMaxTokens
	}
	if err := params.Validate(); err != nil {
		return generation.Request{}, fmt.Errorf("invalid preset parameters: %w", err)
	}

	return generation.Request{Messages: messages, Params: params}, nil
}

// drive runs the adapter and relays its events until it returns. It
// returns the single finish event of a successful run.
func (e *Executor) drive(
	ctx context.Context,
	pub Publisher,
	adapter generation.Adapter,
	req generation.Request,
) (generation.Event, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan generation.Event, adapterEventBuffer)
	result := make(chan error, 1)
	go func() {
		defer close(events)
		result <- adapter.Generate(runCtx, req, events)
	}()

	var (
		finish    generation.Event
		finished  bool
		handleErr error
	)
	for ev := range events {
		if handleErr != nil {
			continue
		}
		switch ev.Kind {
		case generation.EventRunning:
			if err := e.setStatus(ctx, StatusRunning); err != nil {
				handleErr = err
				break
			}
			handleErr = pub.Publish(ctx, StatusEvent(e.id, StatusRunning))
		case generation.EventDelta:
			if e.status != StatusRunning {
				handleErr = fmt.Errorf("%w: content before running", generation.ErrProtocolViolation)
				break
			}
			handleErr = pub.Publish(ctx, StreamEvent(e.id, ev.Content))
		case generation.EventFinish:
			switch {
			case finished:
				handleErr = fmt.Errorf("%w: duplicate finish", generation.ErrProtocolViolation)
			case e.status != StatusRunning:
				handleErr = fmt.Errorf("%w: finish before running", generation.ErrProtocolViolation)
			default:
				finish, finished = ev, true
			}
		default:
			handleErr = fmt.Errorf("%w: unknown event kind %s", generation.ErrProtocolViolation, ev.Kind)
		}
		if handleErr != nil {
			cancel()
		}
	}

	genErr := <-result
	switch {
	case handleErr != nil:
		return generation.Event{}, handleErr
	case genErr != nil:
		return generation.Event{}, genErr
	case !finished:
		return generation.Event{}, generation.ErrNoFinish
	}
	return finish, nil
}

// complete publishes the finish event, marks the task finished and applies
// the billing and persistence side effects exactly once.
func (e *Executor) complete(
	ctx context.Context,
	pub Publisher,
	conv *domain.Conversation,
	params domain.GenerationParams,
	finish generation.Event,
) error {
	if err := pub.Publish(ctx, FinishEvent(e.id, finish.Content, finish.TokenCost)); err != nil {
		return e.fail(ctx, pub, fmt.Errorf("failed to publish finish event: %w", err))
	}
	if err := e.setStatus(ctx, StatusFinished); err != nil {
		return e.fail(ctx, pub, err)
	}

	log := e.logger.With("token_cost", finish.TokenCost)
	var errs []error

	switch e.taskType {
	case TaskTypeTitle:
		title := strings.TrimSpace(finish.Content)
		if err := e.deps.Conversations.UpdateTitle(ctx, conv.ID, title); err != nil {
			errs = append(errs, fmt.Errorf("failed to update chat title: %w", err))
		}
		desc := fmt.Sprintf("Title generation, chat_id: %s, task_id: %s", conv.ID, e.id)
		if err := e.deps.Ledger.Consume(ctx, conv.OwnerID, float64(finish.TokenCost), desc); err != nil {
			errs = append(errs, fmt.Errorf("failed to consume credits: %w", err))
		}
	default:
		msg := domain.NewTextMessage(domain.RoleAssistant, finish.Content)
		if err := e.deps.Messages.AppendMessage(ctx, conv.ID, msg); err != nil {
			errs = append(errs, fmt.Errorf("failed to append assistant message: %w", err))
		}
		multiplier := e.deps.Multipliers.Multiplier(params.Provider, params.Model)
		amount := float64(finish.TokenCost) * multiplier
		desc := fmt.Sprintf("Chat generation, chat_id: %s, task_id: %s", conv.ID, e.id)
		if err := e.deps.Ledger.Consume(ctx, conv.OwnerID, amount, desc); err != nil {
			errs = append(errs, fmt.Errorf("failed to consume credits: %w", err))
		}
		log = log.With("multiplier", multiplier, "amount", amount)
	}

	if err := errors.Join(errs...); err != nil {
		log.Error("task finished but side effects failed", "error", err)
		return err
	}
	log.Info("task finished")
	return nil
}

// fail marks the task failed and publishes the terminal failure signal.
// Both run detached from ctx cancellation, since a cancelled run must
// still reach a terminal status. It returns cause so callers can
// propagate it.
func (e *Executor) fail(ctx context.Context, pub Publisher, cause error) error {
	e.logger.Error("task failed", "error", cause)
	if e.status.IsTerminal() {
		return cause
	}
	ctx = context.WithoutCancel(ctx)
	if err := e.setStatus(ctx, StatusFailed); err != nil {
		e.logger.Error("failed to record failed status", "error", err)
	}
	if pub != nil {
		if err := pub.Publish(ctx, StatusEvent(e.id, StatusFailed)); err != nil {
			e.logger.Error("failed to publish failure event", "error", err)
		}
	}
	return cause
}

func (e *Executor) setStatus(ctx context.Context, next Status) error {
	if e.status != "" && !e.status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s to %s", ErrStatusRegression, e.status, next)
	}
	if err := e.deps.Registry.Set(ctx, e.id, next); err != nil {
		return fmt.Errorf("failed to set task status %s: %w", next, err)
	}
	e.status = next
	return nil
}

// ExecutorFactory builds Executors that share one set of collaborators.
type ExecutorFactory struct {
	deps ExecutorDeps
}

// NewExecutorFactory validates deps and returns a factory.
func NewExecutorFactory(deps ExecutorDeps) (*ExecutorFactory, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	deps.Logger = deps.Logger.With("component", "task_executor")
	return &ExecutorFactory{deps: deps}, nil
}

// CreateTask returns an Executor for the given task id, type and chat.
func (f *ExecutorFactory) CreateTask(id uuid.UUID, taskType string, chatID uuid.UUID) (Task, error) {
	if !ValidTaskType(taskType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTaskType, taskType)
	}
	if chatID == uuid.Nil {
		return nil, ErrEmptyChatID
	}
	return &Executor{
		id:       id,
		taskType: taskType,
		chatID:   chatID,
		deps:     f.deps,
		logger:   f.deps.Logger.With("task_id", id, "task_type", taskType, "chat_id", chatID),
	}, nil
}
