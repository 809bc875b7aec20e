//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores_Integration(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, url)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, Migrate(ctx, db, "up", discard()))

	userID, presetID, chatID := uuid.New(), uuid.New(), uuid.New()
	_, err = db.ExecContext(ctx, `INSERT INTO users (id, username, credits_left) VALUES ($1, $2, 100)`,
		userID, "it-"+userID.String()[:8])
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO presets (id, owner_id, title, parameters) VALUES ($1, $2, 'p', '{"provider":"dashscope","model":"qwen-plus"}')`,
		presetID, userID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO chats (id, owner_id, preset_id) VALUES ($1, $2, $3)`,
		chatID, userID, presetID)
	require.NoError(t, err)

	conv, err := NewConversationStore(db, discard()).GetConversation(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, "qwen-plus", conv.Params.Model)
	assert.Empty(t, conv.Title)

	ledger := NewCreditLedger(db, discard())
	require.NoError(t, ledger.Check(ctx, userID, 100))
	require.NoError(t, ledger.Consume(ctx, userID, 400, "Chat generation"))
	assert.ErrorIs(t, ledger.Check(ctx, userID, 1), store.ErrCreditNotEnough)

	user, err := NewUserStore(db, discard()).GetByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, -300.0, user.CreditsLeft)

	var desc string
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT description FROM credit_records WHERE user_id = $1`, userID).Scan(&desc))
	assert.Equal(t, "Consume: Chat generation", desc)
}
