package models

// BioRequest is the onboarding summary a character bio is written from.
type BioRequest struct {
	FirstName  string   `json:"firstName"`
	ZodiacSign string   `json:"zodiacSign"`
	Interests  []string `json:"interests"`
}

// CharacterBio is the reader's generated persona.
type CharacterBio struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Backstory   string   `json:"backstory"`
}

// StoryHook is a selectable opening premise.
type StoryHook struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
