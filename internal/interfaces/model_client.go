package interfaces

import "context"

// CompletionRequest is one prompt sent to a language model
type CompletionRequest struct {
	SystemPrompt string
	Prompt       string
	// JSON asks providers that support it for a JSON-only reply
	JSON bool
}

// ModelClient is a remote language model provider
type ModelClient interface {
	// Complete returns the model's raw text reply
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Configured reports whether credentials and endpoint are present
	Configured() bool

	// Name identifies the provider in logs and metrics
	Name() string
}
