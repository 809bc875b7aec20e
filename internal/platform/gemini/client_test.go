package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/phrazzld/chatrelay-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func chunk(text, finish string, total int) string {
	finishField := ""
	if finish != "" {
		finishField = fmt.Sprintf(`,"finishReason":%q`, finish)
	}
	usage := ""
	if total > 0 {
		usage = fmt.Sprintf(`,"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":%d,"totalTokenCount":%d}`, total-4, total)
	}
	return fmt.Sprintf(`data: {"candidates":[{"content":{"parts":[{"text":%q}],"role":"model"}%s}]%s,"responseId":"resp-1"}`+"\n\n",
		text, finishField, usage)
}

const unavailable = `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func run(t *testing.T, c *Client, msgs ...domain.Message) ([]generation.Event, error) {
	t.Helper()
	params := domain.DefaultGenerationParams()
	params.Provider = "gemini"
	params.Model = "gemini-2.0-flash"
	if len(msgs) == 0 {
		msgs = []domain.Message{
			domain.NewTextMessage(domain.RoleSystem, "Be concise."),
			domain.NewTextMessage(domain.RoleUser, "Hi"),
			domain.NewTextMessage(domain.RoleAssistant, "Hello."),
			domain.NewTextMessage(domain.RoleUser, "Again"),
		}
	}

	events := make(chan generation.Event, 32)
	err := c.Generate(context.Background(), generation.Request{Messages: msgs, Params: params}, events)
	close(events)
	var got []generation.Event
	for e := range events {
		got = append(got, e)
	}
	return got, err
}

func TestGenerate_Stream(t *testing.T) {
	t.Parallel()

	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.0-flash:streamGenerateContent"), r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, chunk("Hel", "", 0))
		_, _ = io.WriteString(w, chunk("lo", "", 0))
		_, _ = io.WriteString(w, chunk("!", "STOP", 21))
	})

	got, err := run(t, c)
	require.NoError(t, err)

	assert.Equal(t, []generation.Event{
		{Kind: generation.EventRunning},
		{Kind: generation.EventDelta, Content: "Hel"},
		{Kind: generation.EventDelta, Content: "Hello"},
		{Kind: generation.EventDelta, Content: "Hello!"},
		{Kind: generation.EventFinish, Content: "Hello!", TokenCost: 21},
	}, got)

	contents := body["contents"].([]any)
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	assert.Contains(t, body, "systemInstruction")
}

func TestGenerate_SingleDocument(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		_, _ = io.WriteString(w, `[
  {"candidates":[{"content":{"parts":[{"text":"Hel"}],"role":"model"}}],"responseId":"resp-2"},
  {"candidates":[{"content":{"parts":[{"text":"lo"}],"role":"model"},"finishReason":"STOP"}],
   "usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":2,"totalTokenCount":6},"responseId":"resp-2"}
]`)
	})

	got, err := run(t, c)
	require.NoError(t, err)
	assert.Equal(t, []generation.Event{
		{Kind: generation.EventRunning},
		{Kind: generation.EventDelta, Content: "Hel"},
		{Kind: generation.EventDelta, Content: "Hello"},
		{Kind: generation.EventFinish, Content: "Hello", TokenCost: 6},
	}, got)
}

func TestGenerate_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, unavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, chunk("ok", "STOP", 9))
	})

	got, err := run(t, c)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, got, 3)
	assert.Equal(t, generation.EventRunning, got[0].Kind)
	assert.Equal(t, generation.Event{Kind: generation.EventFinish, Content: "ok", TokenCost: 9}, got[2])
}

func TestGenerate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantErr   error
		wantCalls int32
	}{
		{
			name: "bad_request_not_retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`)
			},
			wantErr:   generation.ErrUpstream,
			wantCalls: 1,
		},
		{
			name: "retries_exhausted",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, unavailable)
			},
			wantErr:   generation.ErrUpstream,
			wantCalls: 3,
		},
		{
			name: "unknown_finish_reason",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, chunk("x", "MALFORMED_FUNCTION_CALL", 5))
			},
			wantErr:   generation.ErrProtocolViolation,
			wantCalls: 1,
		},
		{
			name: "stream_without_finish",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, chunk("partial", "", 0))
			},
			wantErr:   generation.ErrNoFinish,
			wantCalls: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tc.handler(w, r)
			})

			got, err := run(t, c)

			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.wantCalls, calls.Load())
			for _, e := range got {
				assert.NotEqual(t, generation.EventFinish, e.Kind)
			}
		})
	}
}

func TestGenerate_SystemOnly(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := run(t, c, domain.NewTextMessage(domain.RoleSystem, "only a preset"))
	assert.ErrorIs(t, err, ErrNoContents)
}

func TestNormalizeFinishReason(t *testing.T) {
	t.Parallel()

	tests := map[genai.FinishReason]string{
		"":                                  "",
		genai.FinishReasonUnspecified:       "",
		genai.FinishReasonStop:              generation.FinishReasonStop,
		genai.FinishReasonMaxTokens:         generation.FinishReasonLength,
		genai.FinishReasonSafety:            generation.FinishReasonContentFilter,
		genai.FinishReasonProhibitedContent: generation.FinishReasonContentFilter,
		genai.FinishReasonOther:             "OTHER",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeFinishReason(in), string(in))
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = New(context.Background(), Config{APIKey: "k"}, nil)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}
