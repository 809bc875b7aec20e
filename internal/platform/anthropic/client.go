package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/phrazzld/chatrelay-api/internal/generation"
)

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries int
}

// Client streams messages from the Anthropic API.
type Client struct {
	client sdk.Client
	logger *slog.Logger
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key cannot be empty", generation.ErrInvalidConfig)
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
		client: sdk.NewClient(opts...),
		logger: logger.With("provider", "anthropic"),
	}, nil
}

// buildParams moves system messages into the dedicated system field.
func buildParams(req generation.Request) sdk.MessageNewParams {
	p := req.Params
	params := sdk.MessageNewParams{
		Model:       sdk.Model(p.Model),
		MaxTokens:   int64(p.MaxTokens),
		Temperature: sdk.Float(p.TemperatureValue()),
		TopP:        sdk.Float(p.TopP),
	}
	if p.TopK != nil {
		params.TopK = sdk.Int(int64(*p.TopK))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			params.System = append(params.System, sdk.TextBlockParam{Text: m.Content})
		case domain.RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	return params
}

// normalizeStopReason maps Anthropic stop reasons onto the shared finish
// reason vocabulary. Unknown reasons are returned unchanged.
func normalizeStopReason(reason sdk.StopReason) string {
	switch reason {
	case "":
		return ""
	case sdk.StopReasonEndTurn, sdk.StopReasonStopSequence:
		return generation.FinishReasonStop
	case sdk.StopReasonMaxTokens:
		return generation.FinishReasonLength
	case sdk.StopReasonRefusal:
		return generation.FinishReasonContentFilter
	}
	return string(reason)
}

// Generate streams one message and reports input plus output tokens as cost.
// A reply sent as one message document instead of a stream is accepted.
func (c *Client) Generate(ctx context.Context, req generation.Request, events chan<- generation.Event) error {
	if err := generation.Send(ctx, events, generation.Event{Kind: generation.EventRunning}); err != nil {
		return err
	}

	var capture generation.DocumentCapture
	stream := c.client.Messages.NewStreaming(ctx, buildParams(req), option.WithMiddleware(capture.Intercept))
	defer func() { _ = stream.Close() }()

	var (
		message sdk.Message
		content strings.Builder
	)
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return fmt.Errorf("%w: anthropic: %v", generation.ErrInvalidResponse, err)
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type != "text_delta" || event.Delta.Text == "" {
				continue
			}
			content.WriteString(event.Delta.Text)
			if err := generation.Send(ctx, events, generation.Event{Kind: generation.EventDelta, Content: content.String()}); err != nil {
				return err
			}
		case "message_delta":
			if _, err := generation.CheckFinishReason(normalizeStopReason(event.Delta.StopReason)); err != nil {
				c.logger.Warn("unexpected stop reason", "stop_reason", event.Delta.StopReason, "message_id", message.ID)
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: anthropic stream: %v", generation.ErrUpstream, err)
	}
	if doc := capture.Body(); doc != nil {
		if err := json.Unmarshal(doc, &message); err != nil {
			return fmt.Errorf("%w: anthropic: %v", generation.ErrInvalidResponse, err)
		}
		for _, block := range message.Content {
			if block.Type == "text" {
				content.WriteString(block.Text)
			}
		}
	}

	done, err := generation.CheckFinishReason(normalizeStopReason(message.StopReason))
	if err != nil {
		return err
	}
	if !done {
		return generation.ErrNoFinish
	}

	return generation.Send(ctx, events, generation.Event{
		Kind:      generation.EventFinish,
		Content:   content.String(),
		TokenCost: int(message.Usage.InputTokens + message.Usage.OutputTokens),
	})
}

var _ generation.Adapter = (*Client)(nil)
