package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Default preset parameters applied when a preset leaves a field unset.
const (
	DefaultProvider          = "dashscope"
	DefaultModel             = "qwen-turbo"
	DefaultMaxTokens         = 1500
	DefaultTopP              = 0.5
	DefaultRepetitionPenalty = 1.1
	DefaultTemperature       = 0.85

	// MaxTokensLimit is the largest max_tokens a preset may request.
	MaxTokensLimit = 2000
)

// GenerationParams is the provider-specific parameter set stored on a preset.
type GenerationParams struct {
	Provider          string  `json:"provider"`
	Model             string  `json:"model"`
	Seed              *int64  `json:"seed,omitempty"`
	MaxTokens         int     `json:"max_tokens,omitempty"`
	TopP              float64 `json:"top_p,omitempty"`
	TopK              *int    `json:"top_k,omitempty"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`
	// Temperature is a pointer so an explicit 0 survives WithDefaults.
	Temperature *float64 `json:"temperature,omitempty"`
}

// DefaultGenerationParams returns the parameter set used for presets without overrides.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Provider:          DefaultProvider,
		Model:             DefaultModel,
		MaxTokens:         DefaultMaxTokens,
		TopP:              DefaultTopP,
		RepetitionPenalty: DefaultRepetitionPenalty,
		Temperature:       Float(DefaultTemperature),
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// WithDefaults fills zero-valued fields from DefaultGenerationParams. A
// nil Temperature is unset; a zero one is kept.
func (p GenerationParams) WithDefaults() GenerationParams {
	d := DefaultGenerationParams()
	if p.Provider == "" {
		p.Provider = d.Provider
	}
	if p.Model == "" {
		p.Model = d.Model
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = d.MaxTokens
	}
	if p.TopP == 0 {
		p.TopP = d.TopP
	}
	if p.RepetitionPenalty == 0 {
		p.RepetitionPenalty = d.RepetitionPenalty
	}
	if p.Temperature == nil {
		p.Temperature = d.Temperature
	}
	return p
}

// Validate checks every parameter against its accepted range.
func (p GenerationParams) Validate() error {
	switch {
	case p.Provider == "":
		return NewValidationError("provider", "is required", ErrInvalidParameters)
	case p.Model == "":
		return NewValidationError("model", "is required", ErrInvalidParameters)
	case p.MaxTokens <= 0 || p.MaxTokens > MaxTokensLimit:
		return NewValidationError("max_tokens", fmt.Sprintf("must be in (0, %d]", MaxTokensLimit), ErrInvalidParameters)
	case p.TopP <= 0 || p.TopP >= 1:
		return NewValidationError("top_p", "must be in (0, 1)", ErrInvalidParameters)
	case p.TopK != nil && (*p.TopK <= 0 || *p.TopK > 100):
		return NewValidationError("top_k", "must be in (0, 100]", ErrInvalidParameters)
	case p.RepetitionPenalty < 0:
		return NewValidationError("repetition_penalty", "must not be negative", ErrInvalidParameters)
	case p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature >= 2):
		return NewValidationError("temperature", "must be in [0, 2)", ErrInvalidParameters)
	case p.Seed != nil && *p.Seed < 0:
		return NewValidationError("seed", "must not be negative", ErrInvalidParameters)
	}
	return nil
}

// TemperatureValue returns Temperature, or DefaultTemperature when unset.
func (p GenerationParams) TemperatureValue() float64 {
	if p.Temperature == nil {
		return DefaultTemperature
	}
	return *p.Temperature
}

// Conversation is the read-only view of a chat used to run generation tasks.
type Conversation struct {
	ID       uuid.UUID
	OwnerID  uuid.UUID
	PresetID uuid.UUID
	Title    string
	Params   GenerationParams
}
