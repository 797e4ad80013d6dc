package engine

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/TitusNeyland/Pathread/internal/config"
	"github.com/TitusNeyland/Pathread/internal/interfaces"
)

// placeholderAPIKey ships in sample configs and never authenticates.
const placeholderAPIKey = "your-openai-api-key-here"

// OpenAIClient talks to OpenAI or any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client      *openai.Client
	apiKey      string
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIClient creates a chat completion client. BaseURL defaults to the public API.
func NewOpenAIClient(cfg config.AIConfig, httpClient *http.Client) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
}

func (c *OpenAIClient) Name() string {
	return config.ProviderOpenAI
}

// Configured reports whether a real API key is present.
func (c *OpenAIClient) Configured() bool {
	return c.apiKey != "" && c.apiKey != placeholderAPIKey
}

// Complete sends a chat completion request
func (c *OpenAIClient) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if req.JSON {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", &TransportError{Op: "openai chat completion", StatusCode: openAIStatusCode(err), Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &TransportError{Op: "openai chat completion", Err: errors.New("no choices returned from model")}
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &TransportError{Op: "openai chat completion", Err: errors.New("empty response from model")}
	}

	return content, nil
}

func openAIStatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
