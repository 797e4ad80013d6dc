package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/TitusNeyland/Pathread/internal/config"
	"github.com/TitusNeyland/Pathread/internal/interfaces"
	"github.com/TitusNeyland/Pathread/internal/models"
	"github.com/TitusNeyland/Pathread/internal/prompts"
	"github.com/TitusNeyland/Pathread/internal/storage"
)

// ErrEmptyAction is returned when a continuation names no action.
var ErrEmptyAction = errors.New("action must not be empty")

// Settings bound every model call.
type Settings struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	SystemPrompt string
}

// SettingsFromConfig maps the ai config section.
func SettingsFromConfig(cfg config.AIConfig) Settings {
	return Settings{
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   cfg.RetryDelay,
		SystemPrompt: cfg.SystemPrompt,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPublisher sends session events to p.
func WithPublisher(p interfaces.SessionPublisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// Engine builds prompts, calls the model and applies turns to the session store.
// It is the only component doing network I/O.
type Engine struct {
	client    interfaces.ModelClient
	builder   *prompts.Builder
	store     *storage.SessionStore
	publisher interfaces.SessionPublisher
	logger    *zap.Logger
	settings  Settings

	locks    *sessionLocks
	inFlight *atomic.Int64
}

// NewEngine creates a story engine. A nil client leaves the engine unconfigured.
func NewEngine(client interfaces.ModelClient, builder *prompts.Builder, store *storage.SessionStore, settings Settings, opts ...Option) *Engine {
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.MaxRetries < 1 {
		settings.MaxRetries = 1
	}
	if settings.SystemPrompt == "" {
		settings.SystemPrompt = builder.SystemPrompt()
	}

	e := &Engine{
		client:   client,
		builder:  builder,
		store:    store,
		logger:   zap.NewNop(),
		settings: settings,
		locks:    newSessionLocks(),
		inFlight: atomic.NewInt64(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	sessionsActive.Set(float64(store.Count()))
	return e
}

// Configured reports whether a model provider can be called.
func (e *Engine) Configured() bool {
	return e.client != nil && e.client.Configured()
}

// Provider names the configured model provider.
func (e *Engine) Provider() string {
	if e.client == nil {
		return ""
	}
	return e.client.Name()
}

// InFlight returns the number of model calls currently running.
func (e *Engine) InFlight() int64 {
	return e.inFlight.Load()
}

// misconfigured records and logs a rejected call.
func (e *Engine) misconfigured(operation string) error {
	err := e.configurationError()
	generationRequests.WithLabelValues(operation, outcomeMisconfigured).Inc()
	e.logger.Error("model provider not configured", zap.String("operation", operation), zap.Error(err))
	return err
}

func (e *Engine) configurationError() error {
	if e.client == nil {
		return &ConfigurationError{Provider: "none", Reason: "no model client"}
	}
	return &ConfigurationError{Provider: e.client.Name(), Reason: "missing API key or model"}
}

// StartStory creates a session and applies its opening turn. A failed model
// call yields a local fallback opening rather than an error.
func (e *Engine) StartStory(ctx context.Context, req models.FirstTurnRequest) (*models.StorySession, models.StoryTurn, error) {
	if !e.Configured() {
		return nil, models.StoryTurn{}, e.misconfigured(opStart)
	}

	session := e.store.Create(req.StoryParams)
	unlock := e.locks.Lock(session.ID)
	defer unlock()

	sessionsActive.Set(float64(e.store.Count()))
	e.publish(interfaces.SessionEvent{Type: interfaces.SessionCreated, SessionID: session.ID, Session: session})

	logger := e.logger.With(zap.String("session_id", session.ID), zap.String("operation", opStart))
	logger.Info("starting story", zap.String("genre", req.Genre), zap.String("hook_id", req.HookID))

	turn := e.generate(ctx, logger, opStart, e.builder.Build(req), fallbackOpening)

	updated, err := e.store.ApplyTurn(session.ID, turn)
	if err != nil {
		logger.Warn("session removed before first turn was applied", zap.Error(err))
		return nil, turn, err
	}
	e.publish(interfaces.SessionEvent{Type: interfaces.SessionTurn, SessionID: session.ID, Session: updated, Turn: &turn})

	return updated, turn, nil
}

// ContinueStory records the chosen action, generates the next turn and applies
// it. Continuations of one session run one at a time; a failed model call
// yields a local fallback continuation.
func (e *Engine) ContinueStory(ctx context.Context, sessionID, action string) (*models.StorySession, models.StoryTurn, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return nil, models.StoryTurn{}, ErrEmptyAction
	}
	if !e.Configured() {
		return nil, models.StoryTurn{}, e.misconfigured(opContinue)
	}

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	logger := e.logger.With(zap.String("session_id", sessionID), zap.String("operation", opContinue))

	afterAction, err := e.store.RecordUserAction(sessionID, action)
	if err != nil {
		return nil, models.StoryTurn{}, err
	}
	e.publish(interfaces.SessionEvent{Type: interfaces.SessionAction, SessionID: sessionID, Session: afterAction, Action: action})

	req, err := e.store.BuildContinuationContext(sessionID)
	if err != nil {
		return nil, models.StoryTurn{}, err
	}
	req.UserAction = action

	logger.Info("continuing story", zap.Int("chapter", afterAction.Chapter), zap.Int("transcript_entries", len(afterAction.Transcript)))

	turn := e.generate(ctx, logger, opContinue, e.builder.Build(req), fallbackContinuation)

	updated, err := e.store.ApplyTurn(sessionID, turn)
	if err != nil {
		return nil, turn, err
	}
	e.publish(interfaces.SessionEvent{Type: interfaces.SessionTurn, SessionID: sessionID, Session: updated, Turn: &turn})

	return updated, turn, nil
}

// GenerateTurn runs one generation without touching the store and returns the
// interpreted turn with the raw model text. Model failures are returned.
func (e *Engine) GenerateTurn(ctx context.Context, req models.GenerationRequest) (models.StoryTurn, string, error) {
	if !e.Configured() {
		return models.StoryTurn{}, "", e.misconfigured(opGenerate)
	}

	raw, err := e.Complete(ctx, opGenerate, e.builder.Build(req))
	if err != nil {
		generationRequests.WithLabelValues(opGenerate, outcomeError).Inc()
		return models.StoryTurn{}, "", err
	}

	turn, parsed := Interpret(raw)
	e.recordOutcome(opGenerate, parsed)
	return turn, raw, nil
}

// generate calls the model and interprets the reply, substituting fallback()
// when the call fails.
func (e *Engine) generate(ctx context.Context, logger *zap.Logger, operation, prompt string, fallback func() models.StoryTurn) models.StoryTurn {
	raw, err := e.Complete(ctx, operation, prompt)
	if err != nil {
		reason := "transport"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		logger.Warn("model call failed, using fallback turn", zap.String("reason", reason), zap.Error(err))
		generationRequests.WithLabelValues(operation, outcomeFallback).Inc()
		generationFallbacks.WithLabelValues(operation, reason).Inc()
		return fallback()
	}

	turn, parsed := Interpret(raw)
	if !parsed {
		logger.Warn("model reply was not JSON, using raw text", zap.Int("reply_bytes", len(raw)))
	}
	e.recordOutcome(operation, parsed)
	return turn
}

func (e *Engine) recordOutcome(operation string, parsed bool) {
	if parsed {
		generationRequests.WithLabelValues(operation, outcomeSuccess).Inc()
		return
	}
	generationRequests.WithLabelValues(operation, outcomeUnparsed).Inc()
}

// Complete sends prompt to the model, retrying transient failures with linear
// backoff. The whole exchange is bounded by the configured timeout.
func (e *Engine) Complete(ctx context.Context, operation, prompt string) (string, error) {
	if !e.Configured() {
		return "", e.configurationError()
	}

	ctx, cancel := context.WithTimeout(ctx, e.settings.Timeout)
	defer cancel()

	e.inFlight.Inc()
	defer e.inFlight.Dec()

	start := time.Now()
	defer func() {
		generationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	req := interfaces.CompletionRequest{
		SystemPrompt: e.settings.SystemPrompt,
		Prompt:       prompt,
		JSON:         true,
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < e.settings.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("failed after %d attempts: %w", attempts, &TransportError{Op: operation, Err: ctx.Err()})
			case <-time.After(e.settings.RetryDelay * time.Duration(attempt)):
			}
		}

		attempts++
		raw, err := e.client.Complete(ctx, req)
		if err == nil {
			return raw, nil
		}

		lastErr = err
		e.logger.Debug("model call attempt failed",
			zap.String("operation", operation),
			zap.String("provider", e.client.Name()),
			zap.Int("attempt", attempts),
			zap.Error(err))
		if !isRetryableError(err) || ctx.Err() != nil {
			break
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// GetSession returns a snapshot of the session.
func (e *Engine) GetSession(sessionID string) (*models.StorySession, error) {
	return e.store.Read(sessionID)
}

// ListSessions returns all sessions, most recently updated first.
func (e *Engine) ListSessions() []*models.StorySession {
	return e.store.List()
}

// RemoveSession deletes a session and notifies subscribers.
func (e *Engine) RemoveSession(sessionID string) bool {
	if !e.store.Remove(sessionID) {
		return false
	}
	sessionsActive.Set(float64(e.store.Count()))
	e.publish(interfaces.SessionEvent{Type: interfaces.SessionRemoved, SessionID: sessionID})
	return true
}

// ExportSession serializes a session.
func (e *Engine) ExportSession(sessionID string) (string, error) {
	return e.store.Export(sessionID)
}

// ImportSession restores a serialized session.
func (e *Engine) ImportSession(data string) (*models.StorySession, error) {
	session, err := e.store.Import(data)
	if err != nil {
		return nil, err
	}
	sessionsActive.Set(float64(e.store.Count()))
	e.logger.Info("session imported", zap.String("session_id", session.ID))
	return session, nil
}

func (e *Engine) publish(event interfaces.SessionEvent) {
	if e.publisher == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	e.publisher.Publish(event)
}

func fallbackOpening() models.StoryTurn {
	return models.StoryTurn{
		Title:        "Adventure Awaits",
		Content:      "You find yourself at the beginning of an incredible journey. The path ahead is uncertain, but filled with endless possibilities. What will you choose to do next?",
		Chapter:      1,
		Choices:      []string{"Take the left path", "Go straight ahead", "Turn back"},
		ActionPrompt: "What do you do?",
	}
}

func fallbackContinuation() models.StoryTurn {
	return models.StoryTurn{
		Content:      "The story continues with new possibilities unfolding before you. What will you choose to do next?",
		Choices:      []string{"Explore further", "Take a different approach", "Reflect on the situation"},
		ActionPrompt: DefaultActionPrompt,
		StoryState:   "The adventure continues...",
	}
}
