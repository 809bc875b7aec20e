package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/phrazzld/chatrelay-api/internal/config"
	"github.com/phrazzld/chatrelay-api/internal/generation"
	"github.com/phrazzld/chatrelay-api/internal/platform/anthropic"
	"github.com/phrazzld/chatrelay-api/internal/platform/dashscope"
	"github.com/phrazzld/chatrelay-api/internal/platform/gemini"
	"github.com/phrazzld/chatrelay-api/internal/platform/openaicompat"
)

const providerMaxRetries = 2

// buildAdapters registers an adapter for every configured provider that
// has an API key. Unknown provider names are logged and skipped.
func buildAdapters(
	ctx context.Context,
	providers map[string]config.ProviderConfig,
	logger *slog.Logger,
) (*generation.Registry, error) {
	registry := generation.NewRegistry()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pc := providers[name]
		if pc.APIKey == "" {
			continue
		}

		adapter, err := newAdapter(ctx, name, pc, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s adapter: %w", name, err)
		}
		if adapter == nil {
			logger.Warn("ignoring unknown provider", "provider", name)
			continue
		}
		registry.Register(name, adapter)
	}

	if len(registry.Providers()) == 0 {
		logger.Warn("no generation providers configured, every task will fail")
	} else {
		logger.Info("generation providers registered", "providers", registry.Providers())
	}
	return registry, nil
}

func newAdapter(ctx context.Context, name string, pc config.ProviderConfig, logger *slog.Logger) (generation.Adapter, error) {
	switch name {
	case "openai", "deepseek":
		base := pc.BaseURL
		if base == "" {
			base = openaicompat.OpenAIBaseURL
			if name == "deepseek" {
				base = openaicompat.DeepSeekBaseURL
			}
		}
		return openaicompat.New(openaicompat.Config{
			Provider:   name,
			APIKey:     pc.APIKey,
			BaseURL:    base,
			MaxRetries: providerMaxRetries,
		}, logger)
	case "dashscope":
		return dashscope.New(dashscope.Config{APIKey: pc.APIKey, BaseURL: pc.BaseURL}, logger)
	case "gemini":
		return gemini.New(ctx, gemini.Config{
			APIKey:     pc.APIKey,
			BaseURL:    pc.BaseURL,
			MaxRetries: providerMaxRetries,
		}, logger)
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:     pc.APIKey,
			BaseURL:    pc.BaseURL,
			MaxRetries: providerMaxRetries,
		}, logger)
	}
	return nil, nil
}
