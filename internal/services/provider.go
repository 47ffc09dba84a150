package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/lingua-quest/internal/config"
)

// NewLLMService builds the generation service the configuration selects.
// The model is not initialised; callers run InitModel at startup.
func NewLLMService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (LLMService, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return NewGeminiService(ctx, cfg.GoogleAPIKey, cfg.ModelName, logger, GeminiOptions{})
	case config.ProviderAnthropic:
		return NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, logger), nil
	case config.ProviderOllama:
		return NewOllamaService(cfg.OllamaURL, cfg.ModelName, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}
