package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/packages/ssestream"
	"github.com/phrazzld/chatrelay-api/internal/generation"
)

const (
	// DefaultBaseURL is the public DashScope API root.
	DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"

	generationPath = "/services/aigc/text-generation/generation"
	errorBodyLimit = 4 << 10
)

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Client calls the DashScope text-generation endpoint.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// New creates a Client. BaseURL defaults to DefaultBaseURL.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: dashscope API key cannot be empty", generation.ErrInvalidConfig)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", generation.ErrInvalidConfig)
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(base, "/") + generationPath,
		http:     hc,
		logger:   logger.With("provider", "dashscope"),
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type parameters struct {
	ResultFormat      string   `json:"result_format"`
	Seed              *int64   `json:"seed,omitempty"`
	MaxTokens         int      `json:"max_tokens,omitempty"`
	TopP              float64  `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	RepetitionPenalty float64  `json:"repetition_penalty,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	IncrementalOutput bool     `json:"incremental_output"`
}

type requestBody struct {
	Model string `json:"model"`
	Input struct {
		Messages []message `json:"messages"`
	} `json:"input"`
	Parameters parameters `json:"parameters"`
}

type choice struct {
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type response struct {
	Output struct {
		Choices []choice `json:"choices"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func buildRequest(req generation.Request) requestBody {
	p := req.Params
	temperature := p.TemperatureValue()
	body := requestBody{
		Model: p.Model,
		Parameters: parameters{
			ResultFormat:      "message",
			Seed:              p.Seed,
			MaxTokens:         p.MaxTokens,
			TopP:              p.TopP,
			TopK:              p.TopK,
			RepetitionPenalty: p.RepetitionPenalty,
			Temperature:       &temperature,
			IncrementalOutput: false,
		},
	}
	body.Input.Messages = make([]message, 0, len(req.Messages))
	for _, m := range req.Messages {
		body.Input.Messages = append(body.Input.Messages, message{Role: string(m.Role), Content: m.Content})
	}
	return body
}

// Generate runs one generation. Responses are accepted as an SSE stream
// or as a single JSON document.
func (c *Client) Generate(ctx context.Context, req generation.Request, events chan<- generation.Event) error {
	if err := generation.Send(ctx, events, generation.Event{Kind: generation.EventRunning}); err != nil {
		return err
	}

	payload, err := json.Marshal(buildRequest(req))
	if err != nil {
		return fmt.Errorf("failed to encode dashscope request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build dashscope request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-DashScope-SSE", "enable")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: dashscope request: %v", generation.ErrUpstream, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return c.upstreamError(res)
	}

	mediaType, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		return c.consumeStream(ctx, res, events)
	}

	var doc response
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return fmt.Errorf("%w: dashscope: %v", generation.ErrInvalidResponse, err)
	}
	done, err := c.handle(ctx, doc, events)
	if err != nil {
		return err
	}
	if !done {
		return generation.ErrNoFinish
	}
	return nil
}

func (c *Client) consumeStream(ctx context.Context, res *http.Response, events chan<- generation.Event) error {
	stream := ssestream.NewStream[response](ssestream.NewDecoder(res), nil)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		done, err := c.handle(ctx, stream.Current(), events)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("%w: dashscope stream: %v", generation.ErrInvalidResponse, err)
	}
	return generation.ErrNoFinish
}

// handle converts one response frame into an event. It reports done once
// the finish event has been sent.
func (c *Client) handle(ctx context.Context, r response, events chan<- generation.Event) (bool, error) {
	if r.Code != "" {
		return false, fmt.Errorf("%w: dashscope %s: %s", generation.ErrUpstream, r.Code, r.Message)
	}
	if len(r.Output.Choices) == 0 {
		return false, fmt.Errorf("%w: dashscope response has no choices", generation.ErrInvalidResponse)
	}
	ch := r.Output.Choices[0]

	done, err := generation.CheckFinishReason(ch.FinishReason)
	if err != nil {
		c.logger.Warn("unexpected finish reason",
			"finish_reason", ch.FinishReason, "request_id", r.RequestID)
		return false, err
	}
	if !done {
		return false, generation.Send(ctx, events, generation.Event{Kind: generation.EventDelta, Content: ch.Message.Content})
	}
	return true, generation.Send(ctx, events, generation.Event{
		Kind:      generation.EventFinish,
		Content:   ch.Message.Content,
		TokenCost: r.Usage.TotalTokens,
	})
}

func (c *Client) upstreamError(res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
	var r response
	if json.Unmarshal(body, &r) == nil && r.Code != "" {
		return fmt.Errorf("%w: dashscope status %d: %s: %s", generation.ErrUpstream, res.StatusCode, r.Code, r.Message)
	}
	return fmt.Errorf("%w: dashscope status %d", generation.ErrUpstream, res.StatusCode)
}

var _ generation.Adapter = (*Client)(nil)
