package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/chatrelay-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConversationStore_GetConversation(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	chatID, ownerID, presetID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("FROM chats c").
		WithArgs(chatID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "preset_id", "title", "parameters"}).
			AddRow(chatID.String(), ownerID.String(), presetID.String(), "Trip plans",
				[]byte(`{"provider":"openai","model":"gpt-4o-mini","max_tokens":800,"temperature":0.3}`)))

	conv, err := NewConversationStore(db, discard()).GetConversation(context.Background(), chatID)
	require.NoError(t, err)

	assert.Equal(t, chatID, conv.ID)
	assert.Equal(t, ownerID, conv.OwnerID)
	assert.Equal(t, presetID, conv.PresetID)
	assert.Equal(t, "Trip plans", conv.Title)
	assert.Equal(t, "openai", conv.Params.Provider)
	assert.Equal(t, 800, conv.Params.MaxTokens)
	if assert.NotNil(t, conv.Params.Temperature) {
		assert.Equal(t, 0.3, *conv.Params.Temperature)
	}
}

func TestConversationStore_GetConversation_Errors(t *testing.T) {
	t.Parallel()

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		mock.ExpectQuery("FROM chats c").WillReturnError(sql.ErrNoRows)

		_, err := NewConversationStore(db, discard()).GetConversation(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrConversationNotFound)
		assert.True(t, store.IsNotFoundError(err))
	})

	t.Run("malformed_parameters", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)
		id := uuid.New()
		mock.ExpectQuery("FROM chats c").
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "preset_id", "title", "parameters"}).
				AddRow(id.String(), uuid.NewString(), uuid.NewString(), "", []byte(`{"max_tokens":"lots"}`)))

		_, err := NewConversationStore(db, discard()).GetConversation(context.Background(), id)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})
}

func TestConversationStore_UpdateTitle(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	s := NewConversationStore(db, discard())
	id := uuid.New()

	mock.ExpectExec("UPDATE chats SET title").
		WithArgs("Weekend hike", id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateTitle(context.Background(), id, "Weekend hike"))

	mock.ExpectExec("UPDATE chats SET title").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.UpdateTitle(context.Background(), id, "x"), store.ErrConversationNotFound)
}

func TestUserStore_GetByID(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	s := NewUserStore(db, discard())
	id := uuid.New()

	mock.ExpectQuery("FROM users WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "credits_left", "permission"}).
			AddRow(id.String(), "ada", 12.5, int64(2)))

	u, err := s.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Username)
	assert.Equal(t, 12.5, u.CreditsLeft)
	assert.True(t, u.HasElevatedPermission())

	mock.ExpectQuery("FROM users WHERE id").WillReturnError(sql.ErrNoRows)
	_, err = s.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestCreditLedger_Consume(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET credits_left").
		WithArgs(-400.0, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO credit_records").
		WithArgs(id, -400.0, "Consume: Chat generation, chat_id: c, task_id: t").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := NewCreditLedger(db, discard()).Consume(context.Background(), id, 400, "Chat generation, chat_id: c, task_id: t")
	assert.NoError(t, err)
}

func TestCreditLedger_Add(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET credits_left").
		WithArgs(50.0, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO credit_records").
		WithArgs(id, 50.0, "Add: top-up").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assert.NoError(t, NewCreditLedger(db, discard()).Add(context.Background(), id, 50, "top-up"))
}

func TestCreditLedger_ConsumeRollsBack(t *testing.T) {
	t.Parallel()

	t.Run("unknown_user", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE users SET credits_left").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := NewCreditLedger(db, discard()).Consume(context.Background(), uuid.New(), 1, "x")
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("insert_fails", func(t *testing.T) {
		t.Parallel()
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE users SET credits_left").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO credit_records").
			WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "credit_records_user_id_fkey"})
		mock.ExpectRollback()

		err := NewCreditLedger(db, discard()).Consume(context.Background(), uuid.New(), 1, "x")
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})
}

func TestCreditLedger_NegativeAmount(t *testing.T) {
	t.Parallel()

	db, _ := newMock(t)
	l := NewCreditLedger(db, discard())

	assert.ErrorIs(t, l.Consume(context.Background(), uuid.New(), -1, "x"), store.ErrInvalidEntity)
	assert.ErrorIs(t, l.Add(context.Background(), uuid.New(), -1, "x"), store.ErrInvalidEntity)
}

func TestCreditLedger_Check(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	l := NewCreditLedger(db, discard())
	id := uuid.New()

	mock.ExpectQuery("SELECT credits_left FROM users").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"credits_left"}).AddRow(10.0))
	assert.NoError(t, l.Check(context.Background(), id, 10))

	mock.ExpectQuery("SELECT credits_left FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"credits_left"}).AddRow(3.0))
	assert.ErrorIs(t, l.Check(context.Background(), id, 10), store.ErrCreditNotEnough)

	mock.ExpectQuery("SELECT credits_left FROM users").WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, l.Check(context.Background(), id, 1), store.ErrUserNotFound)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, MapError(nil))
	assert.ErrorIs(t, MapError(sql.ErrNoRows), store.ErrNotFound)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: uniqueViolationCode}), store.ErrDuplicate)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: checkViolationCode}), store.ErrInvalidEntity)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: notNullViolationCode, ColumnName: "title"}), store.ErrInvalidEntity)

	other := errors.New("connection reset")
	assert.Equal(t, other, MapError(other))

	var pgErr *pgconn.PgError
	mapped := MapError(&pgconn.PgError{Code: serializationFailureCode})
	assert.ErrorIs(t, mapped, store.ErrTransactionFailed)
	assert.True(t, errors.As(mapped, &pgErr))
}

func TestMigrate_UnknownCommand(t *testing.T) {
	t.Parallel()

	db, _ := newMock(t)
	err := Migrate(context.Background(), db, "reset", discard())
	assert.ErrorContains(t, err, "unknown migration command")
}
