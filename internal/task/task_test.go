package task

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPending, true},
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusFailed, true},
		{StatusRunning, StatusFinished, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusPending, false},
		{StatusFinished, StatusRunning, false},
		{StatusFinished, StatusFailed, false},
		{StatusFailed, StatusFinished, false},
		{StatusFailed, StatusFailed, true},
		{Status("paused"), StatusRunning, false},
		{StatusRunning, Status("paused"), false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusFinished.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestEvent_Wire(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("6f1c2a8e-0000-4000-8000-000000000001")

	data, err := FinishEvent(id, "hello", 42).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"finish","task_id":"6f1c2a8e-0000-4000-8000-000000000001","status":"finished","content":"hello","token_cost":42}`, string(data))

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.True(t, decoded.IsTerminal())

	assert.True(t, StatusEvent(id, StatusFailed).IsTerminal())
	assert.False(t, StatusEvent(id, StatusRunning).IsTerminal())
	assert.False(t, StreamEvent(id, "partial").IsTerminal())

	_, err = DecodeEvent([]byte(`{"type":"bogus","status":"running"}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
	_, err = DecodeEvent([]byte(`{"type":"status","status":"paused"}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
	_, err = DecodeEvent([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestMemoryRegistry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("set_get_delete", func(t *testing.T) {
		t.Parallel()
		r := NewMemoryRegistry(time.Hour)
		id := uuid.New()

		_, err := r.Get(ctx, id)
		assert.ErrorIs(t, err, ErrTaskNotFound)

		require.NoError(t, r.Set(ctx, id, StatusPending))
		require.NoError(t, r.Set(ctx, id, StatusRunning))
		status, err := r.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, status)

		require.NoError(t, r.Delete(ctx, id))
		_, err = r.Get(ctx, id)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("expiry", func(t *testing.T) {
		t.Parallel()
		r := NewMemoryRegistry(time.Hour)
		now := time.Now()
		r.now = func() time.Time { return now }
		id := uuid.New()

		require.NoError(t, r.Set(ctx, id, StatusFinished))
		now = now.Add(59 * time.Minute)
		_, err := r.Get(ctx, id)
		require.NoError(t, err)

		now = now.Add(time.Minute)
		_, err = r.Get(ctx, id)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("stream_lock", func(t *testing.T) {
		t.Parallel()
		r := NewMemoryRegistry(time.Hour)
		id := uuid.New()

		require.NoError(t, r.AcquireStreamLock(ctx, id))
		assert.ErrorIs(t, r.AcquireStreamLock(ctx, id), ErrStreamLocked)
		require.NoError(t, r.AcquireStreamLock(ctx, uuid.New()))

		require.NoError(t, r.ReleaseStreamLock(ctx, id))
		assert.NoError(t, r.AcquireStreamLock(ctx, id))
	})

	t.Run("expired_entries_are_swept", func(t *testing.T) {
		t.Parallel()
		r := NewMemoryRegistry(time.Hour)
		now := time.Now()
		r.now = func() time.Time { return now }

		for i := 0; i < 3; i++ {
			id := uuid.New()
			require.NoError(t, r.Set(ctx, id, StatusFinished))
			require.NoError(t, r.AcquireStreamLock(ctx, id))
		}
		assert.Len(t, r.tasks, 3)
		assert.Len(t, r.locks, 3)

		now = now.Add(2 * time.Hour)
		fresh := uuid.New()
		require.NoError(t, r.Set(ctx, fresh, StatusPending))

		assert.Len(t, r.tasks, 1, "only the fresh entry survives")
		assert.Empty(t, r.locks)
		status, err := r.Get(ctx, fresh)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, status)
	})
}
