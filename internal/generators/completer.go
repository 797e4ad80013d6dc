package generators

import "context"

// Completer sends a prompt to the configured model and returns its raw reply.
type Completer interface {
	Complete(ctx context.Context, operation, prompt string) (string, error)
}

// Operation labels reported to the completer.
const (
	opBio   = "bio"
	opHooks = "hooks"
)
