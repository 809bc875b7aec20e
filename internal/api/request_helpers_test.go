package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/chatrelay-api/internal/api/shared"
	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireUserID(t *testing.T) {
	t.Parallel()
	userID := uuid.New()

	tests := []struct {
		name   string
		ctx    context.Context
		wantOK bool
	}{
		{name: "authenticated", ctx: shared.WithUserID(context.Background(), userID), wantOK: true},
		{name: "no user", ctx: context.Background()},
		{name: "nil user", ctx: shared.WithUserID(context.Background(), uuid.Nil)},
		{name: "wrong type", ctx: context.WithValue(context.Background(), shared.UserIDContextKey, "bob")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/tasks", nil).WithContext(tt.ctx)

			id, ok := requireUserID(rr, req)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, userID, id)
				assert.Equal(t, http.StatusOK, rr.Code, "nothing written on success")
				return
			}
			assert.Equal(t, uuid.Nil, id)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestTaskIDFromPath(t *testing.T) {
	t.Parallel()
	taskID := uuid.New()

	route := func(path string) (uuid.UUID, error) {
		var (
			id  uuid.UUID
			err error
		)
		router := chi.NewRouter()
		router.Get("/api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err = taskIDFromPath(r)
		})
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		return id, err
	}

	id, err := route("/api/tasks/" + taskID.String())
	require.NoError(t, err)
	assert.Equal(t, taskID, id)

	id, err = route("/api/tasks/42")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	assert.Equal(t, uuid.Nil, id)
	assert.Equal(t, "Invalid task_id: must be a UUID", GetSafeErrorMessage(err))

	_, err = taskIDFromPath(httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRequireUserID_ResponseBody(t *testing.T) {
	t.Parallel()
	rr := httptest.NewRecorder()

	_, ok := requireUserID(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, ok)

	var body shared.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.NotEmpty(t, body.Error)
}
