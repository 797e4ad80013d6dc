package prompts

import (
	"strings"

	"github.com/TitusNeyland/Pathread/internal/models"
)

// SystemPrompt is sent as the system message of every story generation call.
const SystemPrompt = "You are a creative interactive storyteller. Write engaging, immersive stories " +
	"that respond to the reader's choices. Always respond with valid JSON in the exact format requested."

const crowdPleasingStyle = "your best crowd-pleasing style"

// Defaults fill facets a request leaves empty in the continuation template
// and the story rules block.
type Defaults struct {
	Genre       string
	Tone        string
	Perspective string
	Difficulty  string
}

// DefaultStoryDefaults returns the built-in facet defaults.
func DefaultStoryDefaults() Defaults {
	return Defaults{
		Genre:       "fantasy",
		Tone:        "engaging",
		Perspective: "second-person",
		Difficulty:  "intermediate",
	}
}

func (d Defaults) withBuiltins() Defaults {
	b := DefaultStoryDefaults()
	return Defaults{
		Genre:       firstNonEmpty(d.Genre, b.Genre),
		Tone:        firstNonEmpty(d.Tone, b.Tone),
		Perspective: firstNonEmpty(d.Perspective, b.Perspective),
		Difficulty:  firstNonEmpty(d.Difficulty, b.Difficulty),
	}
}

// Builder turns generation requests into model instructions. It has no side effects.
type Builder struct {
	templates *TemplateEngine
	defaults  Defaults
}

// NewBuilder creates a builder with the default templates registered.
func NewBuilder(defaults Defaults) *Builder {
	templates := NewTemplateEngine()
	// built-in templates are static and always register
	_ = templates.InitializeDefaultTemplates()
	return &Builder{templates: templates, defaults: defaults.withBuiltins()}
}

// Templates exposes the underlying engine so callers can override a template.
func (b *Builder) Templates() *TemplateEngine {
	return b.templates
}

// SystemPrompt returns the fixed system instruction.
func (b *Builder) SystemPrompt() string {
	return SystemPrompt
}

// resolved is a request with every template variable populated.
type resolved struct {
	template string
	vars     map[string]string
}

// Build renders the prompt for req. It never fails; a nil request is treated
// as an empty first turn.
func (b *Builder) Build(req models.GenerationRequest) string {
	r := b.resolve(req)
	out, err := b.templates.Render(r.template, r.vars)
	if err != nil {
		return b.inlinePrompt(r)
	}
	return out
}

func (b *Builder) resolve(req models.GenerationRequest) resolved {
	switch r := req.(type) {
	case models.ContinuationRequest:
		return b.resolveContinuation(r)
	case *models.ContinuationRequest:
		if r != nil {
			return b.resolveContinuation(*r)
		}
	case models.FirstTurnRequest:
		return b.resolveFirstTurn(r)
	case *models.FirstTurnRequest:
		if r != nil {
			return b.resolveFirstTurn(*r)
		}
	}
	return b.resolveFirstTurn(models.FirstTurnRequest{})
}

func (b *Builder) resolveFirstTurn(r models.FirstTurnRequest) resolved {
	protagonist, interests := "", ""
	if p := r.UserPreferences; p != nil {
		if name := strings.TrimSpace(p.Name); name != "" {
			protagonist = " The protagonist's name is " + name + "."
		}
		if list := joinNonEmpty(p.Interests, ", "); list != "" {
			interests = " Weave in themes related to: " + list + "."
		}
	}

	return resolved{
		template: TemplateFirstTurn,
		vars: map[string]string{
			"protagonist": protagonist,
			"interests":   interests,
			"length_hint": LengthHint(r.Length),
			"seed":        ResolveSeed(r.HookID, r.HookDescription),
			"style":       StyleClause(r.StoryParams),
			"perspective": firstNonEmpty(r.Perspective, b.defaults.Perspective),
			"tone":        firstNonEmpty(r.Tone, b.defaults.Tone),
			"difficulty":  firstNonEmpty(r.Difficulty, b.defaults.Difficulty),
		},
	}
}

func (b *Builder) resolveContinuation(r models.ContinuationRequest) resolved {
	return resolved{
		template: TemplateContinuation,
		vars: map[string]string{
			"genre":            firstNonEmpty(r.Genre, b.defaults.Genre),
			"tone":             firstNonEmpty(r.Tone, b.defaults.Tone),
			"story_context":    firstNonEmpty(r.StoryContext, "No previous context"),
			"previous_content": firstNonEmpty(r.PreviousContent, "No previous content"),
			"user_action":      firstNonEmpty(r.UserAction, "No action specified"),
		},
	}
}

// inlinePrompt is used only when a registered template was overridden with a broken one.
func (b *Builder) inlinePrompt(r resolved) string {
	if r.template == TemplateContinuation {
		return "Continue the interactive story.\n\nSTORY CONTEXT:\n" + r.vars["story_context"] +
			"\n\nPREVIOUS CONTENT:\n" + r.vars["previous_content"] +
			"\n\nUSER'S ACTION:\n" + r.vars["user_action"] +
			"\n\nEnd with exactly three new choices. Return ONLY JSON with content, choices, actionPrompt and storyState."
	}
	return "Write the opening scene of an interactive story, " + r.vars["length_hint"] +
		".\nOpening hook: " + r.vars["seed"] +
		"\nStyle constraints: " + r.vars["style"] +
		"\nEnd at a decision point with exactly three distinct choices. Return ONLY JSON with title, content, chapter, choices and actionPrompt."
}

// CharacterBio renders the character bio prompt.
func (b *Builder) CharacterBio(req models.BioRequest) string {
	vars := map[string]string{
		"first_name":  firstNonEmpty(req.FirstName, "Reader"),
		"zodiac_sign": firstNonEmpty(req.ZodiacSign, "unknown"),
		"interests":   firstNonEmpty(joinNonEmpty(req.Interests, ", "), "not specified"),
	}
	out, err := b.templates.Render(TemplateCharacterBio, vars)
	if err != nil {
		return "Write a short character bio for " + vars["first_name"] + ". Return ONLY JSON."
	}
	return out
}

// StoryHooks renders the prompt asking for three opening hooks.
func (b *Builder) StoryHooks(genre string) string {
	vars := map[string]string{"genre": firstNonEmpty(genre, b.defaults.Genre)}
	out, err := b.templates.Render(TemplateStoryHooks, vars)
	if err != nil {
		return "Invent three opening hooks for an interactive " + vars["genre"] + " story. Return ONLY JSON."
	}
	return out
}

// LengthHint maps a length enum to a word range; anything unrecognized is medium.
func LengthHint(length string) string {
	switch strings.ToLower(strings.TrimSpace(length)) {
	case models.LengthShort:
		return "about 400-600 words"
	case models.LengthLong:
		return "about 900-1200 words"
	default:
		return "about 700-900 words"
	}
}

// StyleClause joins the caller-supplied style facets, skipping empty ones.
func StyleClause(p models.StoryParams) string {
	clause := joinNonEmpty([]string{p.Genre, p.Tone, p.Perspective, p.Difficulty}, ", ")
	if clause == "" {
		return crowdPleasingStyle
	}
	return clause
}

func joinNonEmpty(parts []string, sep string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
