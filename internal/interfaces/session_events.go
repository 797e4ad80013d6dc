package interfaces

import (
	"time"

	"github.com/TitusNeyland/Pathread/internal/models"
)

// SessionEventType names a change to a story session
type SessionEventType string

const (
	SessionCreated SessionEventType = "created"
	SessionAction  SessionEventType = "action"
	SessionTurn    SessionEventType = "turn"
	SessionRemoved SessionEventType = "removed"
)

// SessionEvent is broadcast to live subscribers of a session
type SessionEvent struct {
	Type      SessionEventType     `json:"type"`
	SessionID string               `json:"sessionId"`
	Session   *models.StorySession `json:"session,omitempty"`
	Turn      *models.StoryTurn    `json:"turn,omitempty"`
	Action    string               `json:"action,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// SessionPublisher receives session events. Publish must not block.
type SessionPublisher interface {
	Publish(event SessionEvent)
}
