package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TitusNeyland/Pathread/internal/models"
)

func TestInterpretFullJSON(t *testing.T) {
	raw := `{"title":"The Pact","content":"The moon bled red.","chapter":1,
		"choices":["Run"," Hide ","","Call out"],"actionPrompt":"What now?",
		"storyState":"cornered","characterInfo":"a student","worldInfo":"a small town"}`

	turn, ok := Interpret(raw)

	require.True(t, ok)
	assert.Equal(t, models.StoryTurn{
		Title:         "The Pact",
		Content:       "The moon bled red.",
		Chapter:       1,
		Choices:       []string{"Run", "Hide", "Call out"},
		ActionPrompt:  "What now?",
		StoryState:    "cornered",
		CharacterInfo: "a student",
		WorldInfo:     "a small town",
	}, turn)
}

func TestInterpretEmbeddedJSON(t *testing.T) {
	raw := "Sure! Here is your story:\n```json\n{\"content\":\"Fog rolled in.\",\"choices\":[\"Wait\"]}\n```\nEnjoy."

	turn, ok := Interpret(raw)

	require.True(t, ok)
	assert.Equal(t, "Fog rolled in.", turn.Content)
	assert.Equal(t, []string{"Wait"}, turn.Choices)
	assert.Empty(t, turn.Title)
	assert.Zero(t, turn.Chapter)
}

func TestInterpretNotJSON(t *testing.T) {
	turn, ok := Interpret("not json at all")

	assert.False(t, ok)
	assert.Equal(t, "not json at all", turn.Content)
	assert.Equal(t, []string{"Continue", "Explore further", "Try something different"}, turn.Choices)
	assert.Equal(t, "What do you do next?", turn.ActionPrompt)
}

func TestInterpretNonObjectJSONIsFailure(t *testing.T) {
	for _, raw := range []string{`"just a string"`, `["a","b"]`, `42`, `null`, `{}`, `{"unrelated":true}`} {
		t.Run(raw, func(t *testing.T) {
			turn, ok := Interpret(raw)

			assert.False(t, ok)
			assert.Equal(t, raw, turn.Content)
			assert.Len(t, turn.Choices, 3)
		})
	}
}

func TestInterpretEmptyReply(t *testing.T) {
	turn, ok := Interpret("")

	assert.False(t, ok)
	assert.Equal(t, "", turn.Content)
	assert.Len(t, turn.Choices, 3)
}

func TestInterpretMissingContentKeepsEmpty(t *testing.T) {
	turn, ok := Interpret(`{"choices":["A","B","C"],"storyState":"tense"}`)

	require.True(t, ok)
	assert.Equal(t, "", turn.Content)
	assert.Equal(t, "tense", turn.StoryState)
	assert.Equal(t, []string{"A", "B", "C"}, turn.Choices)
}

func TestInterpretLenientFieldTypes(t *testing.T) {
	turn, ok := Interpret(`{"content":"x","chapter":"3","choices":["ok",7,{"text":"no"}],"title":null}`)

	require.True(t, ok)
	assert.Equal(t, 3, turn.Chapter)
	assert.Equal(t, []string{"ok"}, turn.Choices)
	assert.Empty(t, turn.Title)

	turn, ok = Interpret(`{"content":"x","chapter":-2}`)
	require.True(t, ok)
	assert.Zero(t, turn.Chapter)
	assert.NotNil(t, turn.Choices)
}

func TestInterpretBrokenBracesFallsBack(t *testing.T) {
	raw := `prefix {"content": "unterminated } suffix`

	turn, ok := Interpret(raw)

	assert.False(t, ok)
	assert.Equal(t, raw, turn.Content)
}

func TestExtractJSON(t *testing.T) {
	doc, ok := ExtractJSON("  {\"a\":1}  ")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, doc)

	doc, ok = ExtractJSON(`noise {"a":{"b":2}} trailing`)
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":2}}`, doc)

	_, ok = ExtractJSON("} backwards {")
	assert.False(t, ok)

	_, ok = ExtractJSON("   ")
	assert.False(t, ok)
}

func TestInterpretInto(t *testing.T) {
	var out struct {
		Hooks []models.StoryHook `json:"hooks"`
	}

	ok := InterpretInto(`Here you go: {"hooks":[{"id":"a","title":"A","description":"d"}]}`, &out)

	require.True(t, ok)
	require.Len(t, out.Hooks, 1)
	assert.Equal(t, "a", out.Hooks[0].ID)

	assert.False(t, InterpretInto("nothing", &out))
}

func TestDefaultChoicesIsCopy(t *testing.T) {
	c := DefaultChoices()
	c[0] = "changed"

	assert.Equal(t, "Continue", DefaultChoices()[0])
}
