package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/TitusNeyland/Pathread/internal/config"
	"github.com/TitusNeyland/Pathread/internal/interfaces"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaClient talks to a local or self-hosted Ollama server through its native API.
type OllamaClient struct {
	client      *api.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOllamaClient creates an Ollama chat client.
func NewOllamaClient(cfg config.AIConfig, httpClient *http.Client) (*OllamaClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	// api.NewClient expects the server root, not the OpenAI-compatible /v1 path
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")

	parsedURL, err := url.Parse(baseURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &ConfigurationError{Provider: config.ProviderOllama, Reason: fmt.Sprintf("invalid base URL %q", cfg.BaseURL)}
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OllamaClient{
		client:      api.NewClient(parsedURL, httpClient),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (c *OllamaClient) Name() string {
	return config.ProviderOllama
}

// Configured reports whether a model is selected. Ollama needs no credentials.
func (c *OllamaClient) Configured() bool {
	return c.model != ""
}

// Complete sends a non-streaming chat request
func (c *OllamaClient) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	messages := make([]api.Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"num_predict": c.maxTokens,
		},
	}
	if req.JSON {
		chatReq.Format = []byte(`"json"`)
	}

	var content strings.Builder
	err := c.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		content.WriteString(r.Message.Content)
		return nil
	})
	if err != nil {
		return "", &TransportError{Op: "ollama chat", StatusCode: ollamaStatusCode(err), Err: err}
	}

	if content.Len() == 0 {
		return "", &TransportError{Op: "ollama chat", Err: errors.New("empty response from model")}
	}

	return content.String(), nil
}

func ollamaStatusCode(err error) int {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	var statusErrPtr *api.StatusError
	if errors.As(err, &statusErrPtr) {
		return statusErrPtr.StatusCode
	}
	return 0
}
