package gemini

import (
	"github.com/phrazzld/chatrelay-api/internal/domain"
	"github.com/phrazzld/chatrelay-api/internal/generation"
	"google.golang.org/genai"
)

// buildContents splits the message history into the system instruction and
// the conversation turns.
func buildContents(msgs []domain.Message) (*genai.Content, []*genai.Content) {
	var (
		system   *genai.Content
		contents = make([]*genai.Content, 0, len(msgs))
	)
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, genai.NewPartFromText(m.Content))
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return system, contents
}

func buildConfig(params domain.GenerationParams, system *genai.Content) *genai.GenerateContentConfig {
	temperature := float32(params.TemperatureValue())
	topP := float32(params.TopP)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       &temperature,
		TopP:              &topP,
		MaxOutputTokens:   int32(params.MaxTokens),
	}
	if params.TopK != nil {
		topK := float32(*params.TopK)
		cfg.TopK = &topK
	}
	if params.Seed != nil {
		seed := int32(*params.Seed)
		cfg.Seed = &seed
	}
	return cfg
}

// normalizeFinishReason maps Gemini finish reasons onto the shared finish
// reason vocabulary. Unknown reasons are returned unchanged.
func normalizeFinishReason(reason genai.FinishReason) string {
	switch reason {
	case "", genai.FinishReasonUnspecified:
		return ""
	case genai.FinishReasonStop:
		return generation.FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return generation.FinishReasonLength
	case genai.FinishReasonSafety,
		genai.FinishReasonRecitation,
		genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII:
		return generation.FinishReasonContentFilter
	}
	return string(reason)
}
