package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/TitusNeyland/Pathread/internal/config"
	"github.com/TitusNeyland/Pathread/internal/interfaces"
)

// GeminiClient talks to the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

// NewGeminiClient creates a Gemini client. Without an API key the client is
// returned unconfigured instead of failing.
func NewGeminiClient(ctx context.Context, cfg config.AIConfig, httpClient *http.Client) (*GeminiClient, error) {
	c := &GeminiClient{
		model:       cfg.Model,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: float32(cfg.Temperature),
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return c, nil
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, &ConfigurationError{Provider: config.ProviderGemini, Reason: err.Error()}
	}
	c.client = client
	return c, nil
}

func (c *GeminiClient) Name() string {
	return config.ProviderGemini
}

// Configured reports whether the client was built with an API key.
func (c *GeminiClient) Configured() bool {
	return c.client != nil && c.model != ""
}

// Complete generates content for a single user turn
func (c *GeminiClient) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	if c.client == nil {
		return "", &ConfigurationError{Provider: config.ProviderGemini, Reason: "missing API key"}
	}

	temperature := c.temperature
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: c.maxTokens,
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.JSON {
		genConfig.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		genConfig)
	if err != nil {
		return "", &TransportError{Op: "gemini generate content", StatusCode: geminiStatusCode(err), Err: err}
	}

	text := resp.Text()
	if text == "" {
		return "", &TransportError{Op: "gemini generate content", Err: fmt.Errorf("empty response from model %s", c.model)}
	}
	return text, nil
}

func geminiStatusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
