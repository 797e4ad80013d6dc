package generators

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/TitusNeyland/Pathread/internal/engine"
	"github.com/TitusNeyland/Pathread/internal/models"
	"github.com/TitusNeyland/Pathread/internal/prompts"
)

const hookCount = 3

// HookGenerator proposes opening hooks per genre and caches good answers.
type HookGenerator struct {
	completer Completer
	builder   *prompts.Builder
	cache     *cache.Cache
	logger    *zap.Logger
}

// NewHookGenerator creates a hook generator whose results live for ttl.
func NewHookGenerator(completer Completer, builder *prompts.Builder, ttl, cleanupInterval time.Duration, logger *zap.Logger) *HookGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HookGenerator{
		completer: completer,
		builder:   builder,
		cache:     cache.New(ttl, cleanupInterval),
		logger:    logger,
	}
}

// Generate returns exactly three hooks for genre. Model failures fall back to
// the built-in hooks, which are never cached.
func (g *HookGenerator) Generate(ctx context.Context, genre string) []models.StoryHook {
	key := strings.ToLower(strings.TrimSpace(genre))
	if cached, found := g.cache.Get(key); found {
		return copyHooks(cached.([]models.StoryHook))
	}

	raw, err := g.completer.Complete(ctx, opHooks, g.builder.StoryHooks(genre))
	if err != nil {
		g.logger.Warn("hook generation failed, using built-in hooks", zap.String("genre", key), zap.Error(err))
		return prompts.DefaultHooks()
	}

	hooks, ok := parseHooks(raw)
	if !ok {
		g.logger.Warn("hook reply unusable, using built-in hooks", zap.String("genre", key))
		return prompts.DefaultHooks()
	}

	g.cache.Set(key, hooks, cache.DefaultExpiration)
	return copyHooks(hooks)
}

// CachedGenres reports how many genres currently have cached hooks.
func (g *HookGenerator) CachedGenres() int {
	return g.cache.ItemCount()
}

func parseHooks(raw string) ([]models.StoryHook, bool) {
	var reply struct {
		Hooks []models.StoryHook `json:"hooks"`
	}
	if !engine.InterpretInto(raw, &reply) {
		return nil, false
	}

	hooks := make([]models.StoryHook, 0, hookCount)
	for _, hook := range reply.Hooks {
		hook.Title = strings.TrimSpace(hook.Title)
		hook.Description = strings.TrimSpace(hook.Description)
		if hook.Title == "" || hook.Description == "" {
			continue
		}
		if hook.ID == "" {
			hook.ID = slugify(hook.Title)
		}
		hooks = append(hooks, hook)
		if len(hooks) == hookCount {
			return hooks, true
		}
	}
	return nil, false
}

func slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func copyHooks(hooks []models.StoryHook) []models.StoryHook {
	return append([]models.StoryHook(nil), hooks...)
}
