package engine

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/TitusNeyland/Pathread/internal/models"
)

// DefaultActionPrompt accompanies turns that did not supply their own prompt.
const DefaultActionPrompt = "What do you do next?"

var defaultChoices = []string{"Continue", "Explore further", "Try something different"}

// DefaultChoices returns the generic choice triple.
func DefaultChoices() []string {
	return append([]string(nil), defaultChoices...)
}

// ExtractJSON returns the JSON document carried by raw: the whole text when it
// parses, otherwise the span from the first '{' to the last '}'.
func ExtractJSON(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if json.Valid([]byte(trimmed)) {
		return trimmed, true
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return "", false
	}

	candidate := trimmed[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

// InterpretInto decodes the JSON carried by raw into v.
func InterpretInto(raw string, v any) bool {
	doc, ok := ExtractJSON(raw)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(doc), v) == nil
}

// Interpret converts a model reply into a StoryTurn. The second result reports
// whether the reply was read as JSON; when it was not, the turn carries the raw
// text verbatim with the generic choices.
func Interpret(raw string) (models.StoryTurn, bool) {
	var fields map[string]any
	if !InterpretInto(raw, &fields) || !hasTurnField(fields) {
		return fallbackInterpretation(raw), false
	}

	turn := models.StoryTurn{
		Title:         stringField(fields, "title"),
		Content:       stringField(fields, "content"),
		Chapter:       intField(fields, "chapter"),
		Choices:       models.CleanChoices(stringsField(fields, "choices")),
		ActionPrompt:  stringField(fields, "actionPrompt"),
		StoryState:    stringField(fields, "storyState"),
		CharacterInfo: stringField(fields, "characterInfo"),
		WorldInfo:     stringField(fields, "worldInfo"),
	}
	return turn, true
}

func fallbackInterpretation(raw string) models.StoryTurn {
	return models.StoryTurn{
		Content:      raw,
		Choices:      DefaultChoices(),
		ActionPrompt: DefaultActionPrompt,
	}
}

var turnFields = []string{"title", "content", "chapter", "choices", "actionPrompt", "storyState", "characterInfo", "worldInfo"}

func hasTurnField(fields map[string]any) bool {
	for _, name := range turnFields {
		if _, ok := fields[name]; ok {
			return true
		}
	}
	return false
}

func stringField(fields map[string]any, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func intField(fields map[string]any, name string) int {
	var f float64
	switch v := fields[name].(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if f < 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

func stringsField(fields map[string]any, name string) []string {
	items, ok := fields[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
