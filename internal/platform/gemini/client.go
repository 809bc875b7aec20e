package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/chatrelay-api/internal/generation"
	"google.golang.org/genai"
)

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client

	// MaxRetries bounds retries of requests that fail before any content
	// was emitted. Negative values fall back to 3.
	MaxRetries int
	// RetryDelay is the base delay of the exponential backoff. Values
	// below one millisecond fall back to one second.
	RetryDelay time.Duration
}

// Client streams content from the Gemini API.
type Client struct {
	client     *genai.Client
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
}

// New creates a Client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.MaxRetries < 0 {
		logger.WarnContext(ctx, "Invalid MaxRetries value", "value", cfg.MaxRetries, "action", "using default value")
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay < time.Millisecond {
		cfg.RetryDelay = time.Second
	}

	// A reply sent as one JSON document instead of SSE frames is reframed
	// so the SDK stream iterator still sees it.
	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		*httpClient = *cfg.HTTPClient
	}
	httpClient.Transport = generation.DocumentAsStream(httpClient.Transport)

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &Client{
		client:     client,
		logger:     logger.With("provider", "gemini"),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// attemptError carries whether a failed attempt may be retried.
type attemptError struct {
	err       error
	retryable bool
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

// Generate streams one completion, retrying transient failures that occur
// before the first delta.
func (c *Client) Generate(ctx context.Context, req generation.Request, events chan<- generation.Event) error {
	if err := generation.Send(ctx, events, generation.Event{Kind: generation.EventRunning}); err != nil {
		return err
	}

	system, contents := buildContents(req.Messages)
	if len(contents) == 0 {
		return fmt.Errorf("%w: %w", generation.ErrInvalidResponse, ErrNoContents)
	}
	config := buildConfig(req.Params, system)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for attempt := 0; ; attempt++ {
		err := c.stream(ctx, req.Params.Model, contents, config, events)
		if err == nil {
			return nil
		}

		var aerr *attemptError
		if !errors.As(err, &aerr) || !aerr.retryable || attempt >= c.maxRetries {
			return err
		}

		// delay = base * 2^attempt * (0.5 + rand(0, 0.5))
		backoff := float64(c.retryDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))
		c.logger.WarnContext(ctx, "Retrying Gemini request after delay",
			"attempt", attempt+1,
			"delay", delay,
			"error", aerr.err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// stream runs one attempt. Errors raised before any delta was sent are
// marked retryable when they come from the transport or a 5xx/429 status.
func (c *Client) stream(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	events chan<- generation.Event,
) error {
	var (
		content strings.Builder
		reason  string
		cost    int
		emitted bool
	)

	for resp, err := range c.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &attemptError{
				err:       fmt.Errorf("%w: gemini: %v", generation.ErrUpstream, err),
				retryable: !emitted && isTransient(err),
			}
		}

		if resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
			cost = int(resp.UsageMetadata.TotalTokenCount)
		}
		if len(resp.Candidates) == 0 {
			continue
		}

		if text := resp.Text(); text != "" && reason == "" {
			content.WriteString(text)
			emitted = true
			if err := generation.Send(ctx, events, generation.Event{Kind: generation.EventDelta, Content: content.String()}); err != nil {
				return err
			}
		}

		raw := resp.Candidates[0].FinishReason
		done, err := generation.CheckFinishReason(normalizeFinishReason(raw))
		if err != nil {
			c.logger.WarnContext(ctx, "unexpected finish reason", "finish_reason", raw, "response_id", resp.ResponseID)
			return err
		}
		if done {
			reason = normalizeFinishReason(raw)
		}
	}

	if reason == "" {
		return generation.ErrNoFinish
	}

	c.logger.DebugContext(ctx, "Gemini stream finished", "finish_reason", reason, "total_tokens", cost)
	return generation.Send(ctx, events, generation.Event{
		Kind:      generation.EventFinish,
		Content:   content.String(),
		TokenCost: cost,
	})
}

func isTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

var _ generation.Adapter = (*Client)(nil)
