package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "generic", err: errors.New("boom"), expected: false},
		{name: "not_found", err: ErrNotFound, expected: true},
		{name: "user", err: ErrUserNotFound, expected: true},
		{name: "wrapped_conversation", err: fmt.Errorf("load chat: %w", ErrConversationNotFound), expected: true},
		{name: "preset", err: ErrPresetNotFound, expected: true},
		{name: "store_error", err: NewStoreError("chat", "get", "no rows", ErrConversationNotFound), expected: true},
		{name: "credit", err: ErrCreditNotEnough, expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, IsNotFoundError(tc.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDuplicateError(fmt.Errorf("insert: %w", ErrDuplicate)))
	assert.False(t, IsDuplicateError(ErrNotFound))
	assert.False(t, IsDuplicateError(nil))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewStoreError("credit_record", "consume", "insert failed", cause)

	assert.Equal(t, "credit_record consume: insert failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("user", "get", "missing id", nil)
	assert.Equal(t, "user get: missing id", bare.Error())
	assert.Nil(t, bare.Unwrap())
}
