package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TitusNeyland/Pathread/internal/models"
)

// DefaultContextEntries is how many trailing transcript entries feed a continuation.
const DefaultContextEntries = 5

var (
	// ErrSessionNotFound is returned for ids the store does not hold.
	ErrSessionNotFound = errors.New("story session not found")
	// ErrInvalidImport is returned when serialized session data cannot be restored.
	ErrInvalidImport = errors.New("invalid story session data")
)

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithContextEntries sets the transcript window used for continuation context.
func WithContextEntries(n int) Option {
	return func(s *SessionStore) {
		if n > 0 {
			s.contextEntries = n
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// SessionStore is the process-local registry of story sessions. Every read
// returns a deep copy; the stored records are only changed by the methods below.
// Sessions are not persisted and are lost on restart.
type SessionStore struct {
	sessions       map[string]*models.StorySession
	mu             sync.RWMutex
	contextEntries int
	now            func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore(opts ...Option) *SessionStore {
	s := &SessionStore{
		sessions:       make(map[string]*models.StorySession),
		contextEntries: DefaultContextEntries,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) timestamp() time.Time {
	return s.now().UTC()
}

// Create registers a new session echoing params. It always succeeds.
func (s *SessionStore) Create(params models.StoryParams) *models.StorySession {
	now := s.timestamp()

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	for s.sessions[id] != nil {
		id = uuid.NewString()
	}

	session := &models.StorySession{
		ID:              id,
		Transcript:      []models.TranscriptEntry{},
		CurrentChoices:  []string{},
		Chapter:         1,
		Genre:           params.Genre,
		Tone:            params.Tone,
		LengthHint:      params.Length,
		Perspective:     params.Perspective,
		Difficulty:      params.Difficulty,
		UserPreferences: params.UserPreferences.Clone(),
		CreatedAt:       now,
		LastUpdated:     now,
	}
	s.sessions[id] = session

	return session.Clone()
}

// ApplyTurn merges a generated turn into the session. Scalar fields are only
// overwritten by non-empty values and choices are replaced. The chapter never
// decreases. Every turn appends exactly one narrative entry, even when its
// content is empty.
func (s *SessionStore) ApplyTurn(id string, turn models.StoryTurn) (*models.StorySession, error) {
	now := s.timestamp()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	if turn.Title != "" {
		session.Title = turn.Title
	}
	session.CurrentChoices = models.CleanChoices(turn.Choices)
	session.Transcript = append(session.Transcript, models.TranscriptEntry{
		Kind: models.EntryNarrative,
		Text: turn.Content,
	})
	setIfPresent(&session.ActionPrompt, turn.ActionPrompt)
	setIfPresent(&session.StoryState, turn.StoryState)
	setIfPresent(&session.CharacterInfo, turn.CharacterInfo)
	setIfPresent(&session.WorldInfo, turn.WorldInfo)
	if turn.Chapter > session.Chapter {
		session.Chapter = turn.Chapter
	}
	session.LastUpdated = now

	return session.Clone(), nil
}

// RecordUserAction appends a user action entry. Choices and chapter are untouched.
func (s *SessionStore) RecordUserAction(id, action string) (*models.StorySession, error) {
	now := s.timestamp()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	session.Transcript = append(session.Transcript, models.TranscriptEntry{
		Kind: models.EntryAction,
		Text: action,
	})
	session.LastUpdated = now

	return session.Clone(), nil
}

// Read returns a copy of the session.
func (s *SessionStore) Read(id string) (*models.StorySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// BuildContinuationContext derives the next continuation request from the
// stored session. UserAction is left for the caller to fill in.
func (s *SessionStore) BuildContinuationContext(id string) (models.ContinuationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return models.ContinuationRequest{}, ErrSessionNotFound
	}

	window := session.Transcript
	if len(window) > s.contextEntries {
		window = window[len(window)-s.contextEntries:]
	}
	lines := make([]string, 0, len(window))
	for _, entry := range window {
		if line := entry.String(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	return models.ContinuationRequest{
		StoryParams:     session.Params(),
		PreviousContent: strings.Join(lines, "\n\n"),
		StoryContext:    storyContext(session),
	}, nil
}

func storyContext(session *models.StorySession) string {
	parts := make([]string, 0, 4)
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Title", session.Title)
	add("Character", session.CharacterInfo)
	add("World", session.WorldInfo)
	add("Current situation", session.StoryState)
	return strings.Join(parts, "\n")
}

// Remove deletes the session and reports whether it existed.
func (s *SessionStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// List returns copies of all sessions, most recently updated first.
func (s *SessionStore) List() []*models.StorySession {
	s.mu.RLock()
	sessions := make([]*models.StorySession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.LastUpdated.Equal(b.LastUpdated) {
			return a.LastUpdated.After(b.LastUpdated)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return sessions
}

// Count returns the number of stored sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Export serializes the session as indented JSON.
func (s *SessionStore) Export(id string) (string, error) {
	session, err := s.Read(id)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session %s: %w", id, err)
	}
	return string(data), nil
}

// Import restores a serialized session, replacing any session with the same id.
// The payload must carry an id and a title key; the title may be empty.
func (s *SessionStore) Import(data string) (*models.StorySession, error) {
	var session models.StorySession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if _, ok := fields["title"]; !ok {
		return nil, fmt.Errorf("%w: missing title", ErrInvalidImport)
	}
	if err := normalizeImported(&session, s.timestamp()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID] = &session
	s.mu.Unlock()

	return session.Clone(), nil
}

func normalizeImported(session *models.StorySession, now time.Time) error {
	session.ID = strings.TrimSpace(session.ID)
	if session.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidImport)
	}
	for i, entry := range session.Transcript {
		if entry.Kind != models.EntryNarrative && entry.Kind != models.EntryAction {
			return fmt.Errorf("%w: transcript entry %d has unknown kind %q", ErrInvalidImport, i, entry.Kind)
		}
	}

	if session.Transcript == nil {
		session.Transcript = []models.TranscriptEntry{}
	}
	session.CurrentChoices = models.CleanChoices(session.CurrentChoices)
	if session.Chapter < 1 {
		session.Chapter = 1
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastUpdated.IsZero() {
		session.LastUpdated = session.CreatedAt
	}
	return nil
}

func setIfPresent(field *string, value string) {
	if value != "" {
		*field = value
	}
}
