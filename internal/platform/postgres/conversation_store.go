package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/phrazzld/chatrelay-api/internal/platform/logger"
	"github.com/phrazzld/chatrelay-api/internal/store"
)

// ConversationStore reads chats together with their preset parameters.
type ConversationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewConversationStore creates a ConversationStore.
func NewConversationStore(db store.DBTX, logger *slog.Logger) *ConversationStore {
	return &ConversationStore{db: db, logger: logger}
}

// GetConversation returns store.ErrConversationNotFound for unknown chats.
func (s *ConversationStore) GetConversation(ctx context.Context, chatID uuid.UUID) (*domain.Conversation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT c.id, c.owner_id, c.preset_id, COALESCE(c.title, ''), p.parameters
		FROM chats c
		JOIN presets p ON p.id = c.preset_id
		WHERE c.id = $1
	`

	var (
		conv   domain.Conversation
		params []byte
	)
	err := s.db.QueryRowContext(ctx, query, chatID).Scan(
		&conv.ID,
		&conv.OwnerID,
		&conv.PresetID,
		&conv.Title,
		&params,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("conversation not found", slog.String("chat_id", chatID.String()))
			return nil, store.ErrConversationNotFound
		}
		log.Error("failed to get conversation",
			slog.String("error", err.Error()),
			slog.String("chat_id", chatID.String()))
		return nil, MapError(err)
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &conv.Params); err != nil {
			return nil, store.NewStoreError("preset", "get", "malformed parameters",
				fmt.Errorf("%w: %v", store.ErrInvalidEntity, err))
		}
	}
	return &conv, nil
}

// UpdateTitle returns store.ErrConversationNotFound for unknown chats.
func (s *ConversationStore) UpdateTitle(ctx context.Context, chatID uuid.UUID, title string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = $1, updated_at = NOW() WHERE id = $2`,
		title, chatID)
	if err != nil {
		log.Error("failed to update conversation title",
			slog.String("error", err.Error()),
			slog.String("chat_id", chatID.String()))
		return MapError(err)
	}
	return expectRows(result, store.ErrConversationNotFound)
}

var _ store.ConversationStore = (*ConversationStore)(nil)
