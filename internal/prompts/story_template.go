package prompts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Template names registered by InitializeDefaultTemplates.
const (
	TemplateFirstTurn    = "story_first_turn"
	TemplateContinuation = "story_continuation"
	TemplateCharacterBio = "character_bio"
	TemplateStoryHooks   = "story_hooks"
)

var varRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

// TemplateEngine manages prompt templates
type TemplateEngine struct {
	templates map[string]*Template
	mu        sync.RWMutex
}

// Template represents a prompt template with variables
type Template struct {
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Variables   []string `json:"variables"`
	Description string   `json:"description"`
}

// NewTemplateEngine creates a new template engine
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{
		templates: make(map[string]*Template),
	}
}

// RegisterTemplate registers a new template, replacing any template with the same name.
func (e *TemplateEngine) RegisterTemplate(tmpl *Template) error {
	if tmpl == nil || tmpl.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if len(tmpl.Variables) == 0 {
		tmpl.Variables = ParseTemplateVariables(tmpl.Content)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.templates[tmpl.Name] = tmpl
	return nil
}

// GetTemplate retrieves a template by name
func (e *TemplateEngine) GetTemplate(name string) (*Template, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tmpl, ok := e.templates[name]
	if !ok {
		return nil, fmt.Errorf("template not found: %s", name)
	}
	return tmpl, nil
}

// Names returns the registered template names in sorted order.
func (e *TemplateEngine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render substitutes {{name}} placeholders with vars. A placeholder whose name is
// not in vars is kept as is; substituted values are never re-scanned.
func (e *TemplateEngine) Render(templateName string, vars map[string]string) (string, error) {
	tmpl, err := e.GetTemplate(templateName)
	if err != nil {
		return "", err
	}

	return varRegex.ReplaceAllStringFunc(tmpl.Content, func(match string) string {
		name := varRegex.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	}), nil
}

// InitializeDefaultTemplates registers the story, bio and hook templates
func (e *TemplateEngine) InitializeDefaultTemplates() error {
	templates := []*Template{
		{
			Name:        TemplateFirstTurn,
			Description: "Opening scene of a new interactive story",
			Content: `You are a master storyteller creating an interactive story.{{protagonist}}{{interests}}

Create the opening scene of this interactive story.

Target length: {{length_hint}}.
Opening hook: {{seed}}
Style constraints: {{style}}

STORY RULES:
- Write in {{perspective}} perspective
- Keep the {{tone}} tone and pitch the challenge at {{difficulty}} difficulty
- Make it immersive and use clear paragraphs
- Keep it suitable for teens; avoid graphic content
- End the scene at a decision point that requires the protagonist to act
- Offer exactly three distinct action choices

FORMAT: Return ONLY a JSON object with this structure:
{
  "title": "Story Title",
  "content": "The opening story content...",
  "chapter": 1,
  "choices": ["Action 1", "Action 2", "Action 3"],
  "actionPrompt": "What do you do?",
  "storyState": "Brief description of the current situation",
  "characterInfo": "Brief character description",
  "worldInfo": "Brief world/setting description"
}`,
		},
		{
			Name:        TemplateContinuation,
			Description: "Continuation of a story after the reader picked an action",
			Content: `You are continuing an interactive {{genre}} story. You must:
1. Continue the story based on the user's action
2. Maintain consistency with previous events
3. Keep the {{tone}} tone
4. Narrate the consequences of the action and create new challenges or opportunities
5. End at a new decision point with exactly three new, distinct action choices

STORY CONTEXT:
{{story_context}}

PREVIOUS CONTENT:
{{previous_content}}

USER'S ACTION:
{{user_action}}

FORMAT: Return ONLY a JSON object with this structure:
{
  "content": "The continuation of the story...",
  "choices": ["New Action 1", "New Action 2", "New Action 3"],
  "actionPrompt": "What do you do next?",
  "storyState": "Updated situation description"
}`,
		},
		{
			Name:        TemplateCharacterBio,
			Description: "Reader persona written from onboarding answers",
			Content: `Write a short, upbeat character bio for the reader of an interactive story app.

First name: {{first_name}}
Zodiac sign: {{zodiac_sign}}
Interests: {{interests}}

FORMAT: Return ONLY a JSON object with this structure:
{
  "characterBio": {
    "name": "{{first_name}}",
    "title": "The <two or three word archetype>",
    "description": "Two sentences about their personality",
    "tags": ["Trait", "Trait", "Trait"],
    "backstory": "Three sentences of backstory"
  }
}`,
		},
		{
			Name:        TemplateStoryHooks,
			Description: "Three selectable opening premises for a genre",
			Content: `Invent three original opening hooks for an interactive {{genre}} story.
Each hook is one sentence, written in the second person, and ends on an open question.

FORMAT: Return ONLY a JSON object with this structure:
{
  "hooks": [
    {"id": "kebab-case-id", "title": "Short Title", "description": "One sentence hook."},
    {"id": "kebab-case-id", "title": "Short Title", "description": "One sentence hook."},
    {"id": "kebab-case-id", "title": "Short Title", "description": "One sentence hook."}
  ]
}`,
		},
	}

	for _, tmpl := range templates {
		if err := e.RegisterTemplate(tmpl); err != nil {
			return fmt.Errorf("failed to register template %s: %w", tmpl.Name, err)
		}
	}

	return nil
}

// ParseTemplateVariables extracts variables from a template
func ParseTemplateVariables(templateContent string) []string {
	matches := varRegex.FindAllStringSubmatch(templateContent, -1)

	seen := make(map[string]bool)
	vars := make([]string, 0, len(matches))
	for _, match := range matches {
		if len(match) > 1 && !seen[match[1]] {
			seen[match[1]] = true
			vars = append(vars, match[1])
		}
	}

	return vars
}

// ExportTemplate exports a template as JSON
func (e *TemplateEngine) ExportTemplate(name string) (string, error) {
	tmpl, err := e.GetTemplate(name)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(tmpl, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal template: %w", err)
	}

	return string(data), nil
}

// ImportTemplate imports a template from JSON, overriding a built-in one when the names match.
func (e *TemplateEngine) ImportTemplate(jsonData string) error {
	var tmpl Template
	if err := json.Unmarshal([]byte(jsonData), &tmpl); err != nil {
		return fmt.Errorf("failed to unmarshal template: %w", err)
	}

	tmpl.Variables = ParseTemplateVariables(tmpl.Content)

	return e.RegisterTemplate(&tmpl)
}

// LoadDir imports every *.json template in dir and returns how many were loaded.
// Files are applied in name order, so a later file wins on a duplicate name.
func (e *TemplateEngine) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read template dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}
		if err := e.ImportTemplate(string(data)); err != nil {
			return loaded, fmt.Errorf("template %s: %w", entry.Name(), err)
		}
		loaded++
	}
	return loaded, nil
}
