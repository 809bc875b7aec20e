package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/phrazzld/chatrelay-api/internal/events"
	"github.com/phrazzld/chatrelay-api/internal/store"
)

type mockConversationStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*domain.Conversation
	titles        map[uuid.UUID]string
}

func newMockConversationStore(convs ...*domain.Conversation) *mockConversationStore {
	m := &mockConversationStore{
		conversations: make(map[uuid.UUID]*domain.Conversation),
		titles:        make(map[uuid.UUID]string),
	}
	for _, c := range convs {
		m.conversations[c.ID] = c
	}
	return m
}

func (m *mockConversationStore) GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, store.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockConversationStore) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[id]; !ok {
		return store.ErrConversationNotFound
	}
	m.titles[id] = title
	return nil
}

type mockUserStore struct {
	users map[uuid.UUID]*domain.User
}

func newMockUserStore(users ...*domain.User) *mockUserStore {
	m := &mockUserStore{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// mockEmitter records events and answers with EmitFn when set.
type mockEmitter struct {
	mu     sync.Mutex
	EmitFn func(ctx context.Context, event *events.TaskRequestEvent) error
	events []*events.TaskRequestEvent
}

func (m *mockEmitter) EmitEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	fn := m.EmitFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, event)
	}
	return nil
}

func (m *mockEmitter) emitted() []*events.TaskRequestEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*events.TaskRequestEvent(nil), m.events...)
}
