package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/phrazzld/chatrelay-api/internal/store"
	goredis "github.com/redis/go-redis/v9"
)

// MessageStore keeps message histories as Redis lists of JSON documents.
type MessageStore struct {
	client goredis.Cmdable
}

// NewMessageStore creates a MessageStore.
func NewMessageStore(client goredis.Cmdable) *MessageStore {
	return &MessageStore{client: client}
}

func (s *MessageStore) GetMessages(ctx context.Context, id uuid.UUID) ([]domain.Message, error) {
	raw, err := s.client.LRange(ctx, messageKey(id), 0, -1).Result()
	if err != nil {
		return nil, store.NewStoreError("message", "list", "failed to read history", err)
	}

	msgs := make([]domain.Message, 0, len(raw))
	for i, item := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, store.NewStoreError("message", "list",
				fmt.Sprintf("malformed entry %d", i), fmt.Errorf("%w: %v", store.ErrInvalidEntity, err))
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *MessageStore) AppendMessage(ctx context.Context, id uuid.UUID, msg domain.Message) error {
	if err := msg.Validate(); err != nil {
		return store.NewStoreError("message", "append", "invalid message", fmt.Errorf("%w: %w", store.ErrInvalidEntity, err))
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return store.NewStoreError("message", "append", "failed to encode message", err)
	}
	if err := s.client.RPush(ctx, messageKey(id), data).Err(); err != nil {
		return store.NewStoreError("message", "append", "failed to write history", err)
	}
	return nil
}

var _ store.MessageStore = (*MessageStore)(nil)
