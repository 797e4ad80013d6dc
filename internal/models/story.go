package models

import (
	"strings"
	"time"
)

// Length hints accepted by the prompt builder. Anything else is treated as medium.
const (
	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"
)

// UserPreferences carries the onboarding answers that flavour a story.
type UserPreferences struct {
	Name      string   `json:"name,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Birthday  string   `json:"birthday,omitempty"`
}

// StoryParams are the style facets shared by every generation call.
type StoryParams struct {
	Genre           string           `json:"genre,omitempty"`
	Length          string           `json:"length,omitempty"`
	Tone            string           `json:"tone,omitempty"`
	Perspective     string           `json:"perspective,omitempty"`
	Difficulty      string           `json:"difficulty,omitempty"`
	UserPreferences *UserPreferences `json:"userPreferences,omitempty"`
}

// GenerationRequest is either a FirstTurnRequest or a ContinuationRequest.
type GenerationRequest interface {
	Params() StoryParams
	isGenerationRequest()
}

// FirstTurnRequest asks for the opening scene of a story.
// HookDescription takes precedence over HookID when both are set.
type FirstTurnRequest struct {
	StoryParams
	HookID          string `json:"hookId,omitempty"`
	HookDescription string `json:"hookDescription,omitempty"`
}

func (r FirstTurnRequest) Params() StoryParams { return r.StoryParams }
func (FirstTurnRequest) isGenerationRequest()  {}

// ContinuationRequest asks the model to narrate the consequence of a user action.
type ContinuationRequest struct {
	StoryParams
	PreviousContent string `json:"previousContent,omitempty"`
	UserAction      string `json:"userAction,omitempty"`
	StoryContext    string `json:"storyContext,omitempty"`
}

func (r ContinuationRequest) Params() StoryParams { return r.StoryParams }
func (ContinuationRequest) isGenerationRequest()  {}

// GenerateStoryRequest is the flattened body accepted by the generation endpoint.
type GenerateStoryRequest struct {
	Genre             string           `json:"genre,omitempty"`
	Length            string           `json:"length,omitempty"`
	Tone              string           `json:"tone,omitempty"`
	Perspective       string           `json:"perspective,omitempty"`
	Difficulty        string           `json:"difficulty,omitempty"`
	HookID            string           `json:"hookId,omitempty"`
	StoryID           string           `json:"storyId,omitempty"` // older clients send the hook id here
	HookDescription   string           `json:"hookDescription,omitempty"`
	UserPreferences   *UserPreferences `json:"userPreferences,omitempty"`
	PreviousContent   string           `json:"previousContent,omitempty"`
	UserAction        string           `json:"userAction,omitempty"`
	StoryContext      string           `json:"storyContext,omitempty"`
	IsFirstGeneration *bool            `json:"isFirstGeneration,omitempty"`
}

// ToRequest picks the request variant. A missing isFirstGeneration flag means first turn.
func (r GenerateStoryRequest) ToRequest() GenerationRequest {
	params := StoryParams{
		Genre:           r.Genre,
		Length:          r.Length,
		Tone:            r.Tone,
		Perspective:     r.Perspective,
		Difficulty:      r.Difficulty,
		UserPreferences: r.UserPreferences,
	}
	if r.IsFirstGeneration != nil && !*r.IsFirstGeneration {
		return ContinuationRequest{
			StoryParams:     params,
			PreviousContent: r.PreviousContent,
			UserAction:      r.UserAction,
			StoryContext:    r.StoryContext,
		}
	}
	hookID := r.HookID
	if hookID == "" {
		hookID = r.StoryID
	}
	return FirstTurnRequest{
		StoryParams:     params,
		HookID:          hookID,
		HookDescription: r.HookDescription,
	}
}

// StoryTurn is the normalized output of one generation call.
// Empty strings and a zero chapter mean the model did not supply the field.
type StoryTurn struct {
	Title         string   `json:"title,omitempty"`
	Content       string   `json:"content"`
	Chapter       int      `json:"chapter,omitempty"`
	Choices       []string `json:"choices"`
	ActionPrompt  string   `json:"actionPrompt,omitempty"`
	StoryState    string   `json:"storyState,omitempty"`
	CharacterInfo string   `json:"characterInfo,omitempty"`
	WorldInfo     string   `json:"worldInfo,omitempty"`
}

// EntryKind distinguishes narrative text from recorded user actions.
type EntryKind string

const (
	EntryNarrative EntryKind = "narrative"
	EntryAction    EntryKind = "action"
)

// ActionMarker prefixes user actions when a transcript is rendered as text.
const ActionMarker = "> "

// TranscriptEntry is one element of a session's append-only history.
type TranscriptEntry struct {
	Kind EntryKind `json:"kind"`
	Text string    `json:"text"`
}

// String renders the entry the way it is fed back to the model.
func (e TranscriptEntry) String() string {
	if e.Kind == EntryAction {
		return ActionMarker + e.Text
	}
	return e.Text
}

// StorySession is the in-memory record of one story in progress.
type StorySession struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Transcript      []TranscriptEntry `json:"transcript"`
	CurrentChoices  []string          `json:"currentChoices"`
	ActionPrompt    string            `json:"actionPrompt"`
	StoryState      string            `json:"storyState"`
	CharacterInfo   string            `json:"characterInfo"`
	WorldInfo       string            `json:"worldInfo"`
	Chapter         int               `json:"chapter"`
	Genre           string            `json:"genre"`
	Tone            string            `json:"tone"`
	LengthHint      string            `json:"lengthHint"`
	Perspective     string            `json:"perspective"`
	Difficulty      string            `json:"difficulty"`
	UserPreferences *UserPreferences  `json:"userPreferences,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	LastUpdated     time.Time         `json:"lastUpdated"`
}

// Params echoes the generation parameters stored on the session.
func (s *StorySession) Params() StoryParams {
	return StoryParams{
		Genre:           s.Genre,
		Length:          s.LengthHint,
		Tone:            s.Tone,
		Perspective:     s.Perspective,
		Difficulty:      s.Difficulty,
		UserPreferences: s.UserPreferences.Clone(),
	}
}

// Clone returns a deep copy of the session.
func (s *StorySession) Clone() *StorySession {
	if s == nil {
		return nil
	}
	c := *s
	c.Transcript = append(make([]TranscriptEntry, 0, len(s.Transcript)), s.Transcript...)
	c.CurrentChoices = append(make([]string, 0, len(s.CurrentChoices)), s.CurrentChoices...)
	c.UserPreferences = s.UserPreferences.Clone()
	return &c
}

// Clone returns a deep copy of the preferences.
func (p *UserPreferences) Clone() *UserPreferences {
	if p == nil {
		return nil
	}
	c := *p
	if p.Interests != nil {
		c.Interests = append([]string(nil), p.Interests...)
	}
	return &c
}

// CleanChoices trims every choice and drops blank ones.
func CleanChoices(choices []string) []string {
	out := make([]string, 0, len(choices))
	for _, c := range choices {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
