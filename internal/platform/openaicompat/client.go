package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/phrazzld/chatrelay-api/internal/generation"
)

// Well-known base URLs.
const (
	OpenAIBaseURL   = "https://api.openai.com/v1"
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
)

// Config configures a Client.
type Config struct {
	// Provider names the upstream in logs and errors, e.g. "openai".
	Provider   string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries int
}

// Client streams chat completions from an OpenAI-compatible API.
type Client struct {
	provider string
	client   openai.Client
	logger   *slog.Logger
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("%w: provider name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key cannot be empty", generation.ErrInvalidConfig, cfg.Provider)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", generation.ErrInvalidConfig)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		provider: cfg.Provider,
		client:   openai.NewClient(opts...),
		logger:   logger.With("provider", cfg.Provider),
	}, nil
}

func toMessages(msgs []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func buildParams(req generation.Request) openai.ChatCompletionNewParams {
	p := req.Params
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.Model),
		Messages:    toMessages(req.Messages),
		MaxTokens:   openai.Int(int64(p.MaxTokens)),
		Temperature: openai.Float(p.TemperatureValue()),
		TopP:        openai.Float(p.TopP),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if p.Seed != nil {
		params.Seed = openai.Int(*p.Seed)
	}
	return params
}

// Generate streams one completion. The finish event is sent after the
// stream ends so the trailing usage chunk is included in the cost. An
// upstream that ignores stream=true and answers with one chat.completion
// document is accepted too.
func (c *Client) Generate(ctx context.Context, req generation.Request, events chan<- generation.Event) error {
	if err := generation.Send(ctx, events, generation.Event{Kind: generation.EventRunning}); err != nil {
		return err
	}

	var capture generation.DocumentCapture
	stream := c.client.Chat.Completions.NewStreaming(ctx, buildParams(req), option.WithMiddleware(capture.Intercept))
	defer func() { _ = stream.Close() }()

	var (
		content strings.Builder
		reason  string
		cost    int
	)
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			cost = int(chunk.Usage.TotalTokens)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" && reason == "" {
			content.WriteString(choice.Delta.Content)
			if err := generation.Send(ctx, events, generation.Event{Kind: generation.EventDelta, Content: content.String()}); err != nil {
				return err
			}
		}

		if choice.FinishReason != "" {
			done, err := generation.CheckFinishReason(choice.FinishReason)
			if err != nil {
				c.logger.Warn("unexpected finish reason", "finish_reason", choice.FinishReason, "chunk_id", chunk.ID)
				return err
			}
			if done {
				reason = choice.FinishReason
			}
		}
	}

	if err := stream.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%w: %s status %d: %s", generation.ErrUpstream, c.provider, apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("%w: %s stream: %v", generation.ErrUpstream, c.provider, err)
	}
	if doc := capture.Body(); doc != nil {
		return c.finishDocument(ctx, doc, events)
	}
	if reason == "" {
		return generation.ErrNoFinish
	}

	c.logger.Debug("completion finished", "finish_reason", reason, "total_tokens", cost)
	return generation.Send(ctx, events, generation.Event{
		Kind:      generation.EventFinish,
		Content:   content.String(),
		TokenCost: cost,
	})
}

// finishDocument handles a non-streamed chat.completion reply.
func (c *Client) finishDocument(ctx context.Context, doc []byte, events chan<- generation.Event) error {
	var completion openai.ChatCompletion
	if err := json.Unmarshal(doc, &completion); err != nil {
		return fmt.Errorf("%w: %s: %v", generation.ErrInvalidResponse, c.provider, err)
	}
	if len(completion.Choices) == 0 {
		return fmt.Errorf("%w: %s response has no choices", generation.ErrInvalidResponse, c.provider)
	}
	choice := completion.Choices[0]

	done, err := generation.CheckFinishReason(choice.FinishReason)
	if err != nil {
		c.logger.Warn("unexpected finish reason", "finish_reason", choice.FinishReason, "completion_id", completion.ID)
		return err
	}
	if !done {
		return generation.ErrNoFinish
	}
	return generation.Send(ctx, events, generation.Event{
		Kind:      generation.EventFinish,
		Content:   choice.Message.Content,
		TokenCost: int(completion.Usage.TotalTokens),
	})
}

var _ generation.Adapter = (*Client)(nil)
