package generators

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TitusNeyland/Pathread/internal/engine"
	"github.com/TitusNeyland/Pathread/internal/models"
	"github.com/TitusNeyland/Pathread/internal/prompts"
)

var zodiacTitles = map[string]string{
	"aries":       "The Natural Leader",
	"taurus":      "The Reliable Friend",
	"gemini":      "The Social Connector",
	"cancer":      "The Caring Soul",
	"leo":         "The Confident Performer",
	"virgo":       "The Detail-Oriented Helper",
	"libra":       "The Peaceful Mediator",
	"scorpio":     "The Intense Explorer",
	"sagittarius": "The Curious Traveler",
	"capricorn":   "The Ambitious Achiever",
	"aquarius":    "The Independent Thinker",
	"pisces":      "The Creative Dreamer",
}

var interestTags = map[string]string{
	"art & design": "Creative",
	"gaming":       "Strategic",
	"hiking":       "Adventurous",
	"exercising":   "Determined",
	"music":        "Artistic",
	"photography":  "Observant",
	"cooking":      "Nurturing",
	"travel":       "Explorer",
	"reading":      "Thoughtful",
	"movies":       "Imaginative",
	"sports":       "Competitive",
	"dancing":      "Expressive",
	"writing":      "Communicative",
	"technology":   "Innovative",
	"nature":       "Peaceful",
	"fashion":      "Stylish",
	"meditation":   "Mindful",
	"gardening":    "Patient",
	"crafting":     "Detail-Oriented",
	"astronomy":    "Curious",
	"history":      "Knowledgeable",
	"science":      "Analytical",
	"languages":    "Cultural",
	"volunteering": "Compassionate",
	"collecting":   "Passionate",
	"theater":      "Artistic",
	"comedy":       "Witty",
	"fitness":      "Strong",
	"yoga":         "Flexible",
	"puzzles":      "Problem-Solver",
}

// BioGenerator writes reader personas.
type BioGenerator struct {
	completer Completer
	builder   *prompts.Builder
	logger    *zap.Logger
}

// NewBioGenerator creates a bio generator.
func NewBioGenerator(completer Completer, builder *prompts.Builder, logger *zap.Logger) *BioGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BioGenerator{completer: completer, builder: builder, logger: logger}
}

// Generate asks the model for a bio and falls back to one assembled from the
// onboarding answers when the call or its reply is unusable.
func (g *BioGenerator) Generate(ctx context.Context, req models.BioRequest) models.CharacterBio {
	raw, err := g.completer.Complete(ctx, opBio, g.builder.CharacterBio(req))
	if err != nil {
		g.logger.Warn("bio generation failed, using fallback", zap.Error(err))
		return FallbackBio(req)
	}

	bio, ok := parseBio(raw)
	if !ok {
		g.logger.Warn("bio reply unusable, using fallback", zap.Int("reply_bytes", len(raw)))
		return FallbackBio(req)
	}
	if bio.Name == "" {
		bio.Name = req.FirstName
	}
	return bio
}

func parseBio(raw string) (models.CharacterBio, bool) {
	var wrapped struct {
		CharacterBio *models.CharacterBio `json:"characterBio"`
	}
	if engine.InterpretInto(raw, &wrapped) && wrapped.CharacterBio != nil && usableBio(*wrapped.CharacterBio) {
		return *wrapped.CharacterBio, true
	}

	var bare models.CharacterBio
	if engine.InterpretInto(raw, &bare) && usableBio(bare) {
		return bare, true
	}
	return models.CharacterBio{}, false
}

func usableBio(bio models.CharacterBio) bool {
	return bio.Title != "" && bio.Description != ""
}

// FallbackBio builds a bio locally from the zodiac sign and interests.
func FallbackBio(req models.BioRequest) models.CharacterBio {
	name := strings.TrimSpace(req.FirstName)
	sign := strings.TrimSpace(req.ZodiacSign)

	title, ok := zodiacTitles[strings.ToLower(sign)]
	if !ok {
		title = "The Unique Individual"
	}

	interests := req.Interests
	if len(interests) > 3 {
		interests = interests[:3]
	}
	tags := make([]string, 0, len(interests))
	for _, interest := range interests {
		tag, ok := interestTags[strings.ToLower(strings.TrimSpace(interest))]
		if !ok {
			tag = "Unique"
		}
		tags = append(tags, tag)
	}

	topTwo := req.Interests
	if len(topTwo) > 2 {
		topTwo = topTwo[:2]
	}
	joined := strings.Join(topTwo, " and ")
	if strings.TrimSpace(joined) == "" {
		joined = "many different things"
	}

	subject, opener := name, name
	if name == "" {
		subject, opener = "this character", "This character"
	}
	identity, trait := sign, strings.ToLower(sign)
	if sign == "" {
		identity, trait = "unique individual", "distinctive"
	}

	return models.CharacterBio{
		Name:  name,
		Title: title,
		Description: fmt.Sprintf("As a %s, %s brings their natural personality traits to everything they do. "+
			"With interests in %s, they approach life with enthusiasm and authenticity.", identity, subject, joined),
		Tags: tags,
		Backstory: fmt.Sprintf("%s has always been known for their %s nature, bringing their unique perspective "+
			"to their interests in %s. Their journey has been shaped by their natural personality traits and the "+
			"experiences they've gained through their passions.", opener, trait, joined),
	}
}
