package engine

import (
	"context"
	"net/http"

	"github.com/TitusNeyland/Pathread/internal/config"
	"github.com/TitusNeyland/Pathread/internal/interfaces"
)

// NewModelClient creates the client for the configured provider. Request
// deadlines come from the caller's context, so the HTTP client has no timeout.
func NewModelClient(ctx context.Context, cfg config.AIConfig) (interfaces.ModelClient, error) {
	httpClient := &http.Client{}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, httpClient), nil
	case config.ProviderOllama:
		client, err := NewOllamaClient(cfg, httpClient)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg, httpClient)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, &ConfigurationError{Provider: cfg.Provider, Reason: "unknown provider"}
	}
}
