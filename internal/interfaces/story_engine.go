package interfaces

import (
	"context"

	"github.com/TitusNeyland/Pathread/internal/models"
)

// StoryEngine defines the story operations exposed over HTTP
type StoryEngine interface {
	// StartStory creates a session and generates its opening turn
	StartStory(ctx context.Context, req models.FirstTurnRequest) (*models.StorySession, models.StoryTurn, error)

	// ContinueStory records the chosen action and generates the next turn
	ContinueStory(ctx context.Context, sessionID, action string) (*models.StorySession, models.StoryTurn, error)

	// GenerateTurn runs one stateless generation and returns the turn with the raw model text
	GenerateTurn(ctx context.Context, req models.GenerationRequest) (models.StoryTurn, string, error)

	// GetSession returns a snapshot of a session
	GetSession(sessionID string) (*models.StorySession, error)

	// ListSessions returns all sessions, most recently updated first
	ListSessions() []*models.StorySession

	// RemoveSession deletes a session
	RemoveSession(sessionID string) bool

	// ExportSession serializes a session
	ExportSession(sessionID string) (string, error)

	// ImportSession restores a serialized session
	ImportSession(data string) (*models.StorySession, error)
}

// BioGenerator writes a reader persona from onboarding answers
type BioGenerator interface {
	Generate(ctx context.Context, req models.BioRequest) models.CharacterBio
}

// HookGenerator proposes opening premises for a genre
type HookGenerator interface {
	Generate(ctx context.Context, genre string) []models.StoryHook
}
