package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/TitusNeyland/Pathread/internal/engine"
	"github.com/TitusNeyland/Pathread/internal/interfaces"
	"github.com/TitusNeyland/Pathread/internal/models"
	"github.com/TitusNeyland/Pathread/internal/prompts"
)

// maxBodyBytes caps every request body, including imported sessions.
const maxBodyBytes = 1 << 20

// StoryService is the story engine as seen by the HTTP layer.
type StoryService interface {
	interfaces.StoryEngine
	Configured() bool
	Provider() string
	InFlight() int64
}

type Handlers struct {
	stories   StoryService
	bios      interfaces.BioGenerator
	hooks     interfaces.HookGenerator
	templates *prompts.TemplateEngine
	hub       *SessionHub
	logger    *zap.Logger
	started   time.Time
}

func NewHandlers(stories StoryService, bios interfaces.BioGenerator, hooks interfaces.HookGenerator,
	templates *prompts.TemplateEngine, hub *SessionHub, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if templates == nil {
		templates = prompts.NewTemplateEngine()
	}
	return &Handlers{
		stories:   stories,
		bios:      bios,
		hooks:     hooks,
		templates: templates,
		hub:       hub,
		logger:    logger,
		started:   time.Now(),
	}
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// generateStoryResponse carries the raw model text next to the interpreted turn.
type generateStoryResponse struct {
	Story string `json:"story"`
	models.StoryTurn
}

type hooksRequest struct {
	Genre string `json:"genre"`
}

func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	subscribers := 0
	if h.hub != nil {
		subscribers = h.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"service":     "pathread",
		"provider":    h.stories.Provider(),
		"configured":  h.stories.Configured(),
		"inFlight":    h.stories.InFlight(),
		"sessions":    len(h.stories.ListSessions()),
		"subscribers": subscribers,
		"uptime":      time.Since(h.started).Round(time.Second).String(),
	})
}

// GenerateStory runs one stateless generation. The client owns the story state.
func (h *Handlers) GenerateStory(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateStoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Detail: err.Error()})
		return
	}

	turn, raw, err := h.stories.GenerateTurn(r.Context(), req.ToRequest())
	if err != nil {
		var cfgErr *engine.ConfigurationError
		if errors.As(err, &cfgErr) {
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error: fmt.Sprintf("Server misconfigured: %s (%s)", cfgErr.Reason, cfgErr.Provider),
			})
			return
		}
		h.logger.Warn("story generation failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "model error", Detail: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, generateStoryResponse{Story: raw, StoryTurn: turn})
}

func (h *Handlers) GenerateCharacterBio(w http.ResponseWriter, r *http.Request) {
	var req models.BioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Detail: err.Error()})
		return
	}

	bio := h.bios.Generate(r.Context(), req)
	writeJSON(w, http.StatusOK, map[string]models.CharacterBio{"characterBio": bio})
}

func (h *Handlers) GenerateStoryHooks(w http.ResponseWriter, r *http.Request) {
	var req hooksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Detail: err.Error()})
		return
	}

	hooks := h.hooks.Generate(r.Context(), req.Genre)
	writeJSON(w, http.StatusOK, map[string][]models.StoryHook{"hooks": hooks})
}

func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
}

func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
