package prompts

import (
	"strings"

	"github.com/TitusNeyland/Pathread/internal/models"
)

// GenericSeed is used when a first turn names no hook or an unknown one.
const GenericSeed = "A compelling mysterious opening."

var builtinHooks = []models.StoryHook{
	{
		ID:          "moonlight-pact",
		Title:       "The Moonlight Pact",
		Description: "On the eve of a blood moon, you discover a secret that could bind you to a world beyond your own.",
	},
	{
		ID:          "echoes-tomorrow",
		Title:       "Echoes of Tomorrow",
		Description: "A voice from the future warns you of a choice that will change everything.",
	},
	{
		ID:          "silent-city",
		Title:       "The Silent City",
		Description: "Everyone vanished overnight, except you. The streets are waiting... but for what?",
	},
}

// DefaultHooks returns a copy of the built-in hooks.
func DefaultHooks() []models.StoryHook {
	return append([]models.StoryHook(nil), builtinHooks...)
}

// LookupHook finds a built-in hook by id.
func LookupHook(id string) (models.StoryHook, bool) {
	id = strings.TrimSpace(id)
	for _, h := range builtinHooks {
		if h.ID == id {
			return h, true
		}
	}
	return models.StoryHook{}, false
}

// ResolveSeed returns the opening premise for a first turn. A literal
// description wins over the id; neither resolving yields GenericSeed.
func ResolveSeed(hookID, hookDescription string) string {
	if d := strings.TrimSpace(hookDescription); d != "" {
		return d
	}
	if h, ok := LookupHook(hookID); ok {
		return h.Description
	}
	return GenericSeed
}
