package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/domain"
)

// ConversationStore reads chats together with their preset parameters.
type ConversationStore interface {
	// GetConversation returns the chat and its resolved preset parameters.
	// Returns ErrConversationNotFound when the chat does not exist.
	GetConversation(ctx context.Context, chatID uuid.UUID) (*domain.Conversation, error)

	// UpdateTitle replaces the chat title.
	// Returns ErrConversationNotFound when the chat does not exist.
	UpdateTitle(ctx context.Context, chatID uuid.UUID, title string) error
}
