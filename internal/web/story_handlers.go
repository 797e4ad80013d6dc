package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/TitusNeyland/Pathread/internal/engine"
	"github.com/TitusNeyland/Pathread/internal/models"
	"github.com/TitusNeyland/Pathread/internal/storage"
)

// SessionResponse pairs a session snapshot with the turn that produced it.
type SessionResponse struct {
	Session *models.StorySession `json:"session"`
	Turn    *models.StoryTurn    `json:"turn,omitempty"`
}

// SessionListResponse lists stored sessions
type SessionListResponse struct {
	Sessions []*models.StorySession `json:"sessions"`
	Count    int                    `json:"count"`
}

// ContinueStoryRequest represents a story continuation request
type ContinueStoryRequest struct {
	Action string `json:"action"`
}

// CreateStory starts a server-side session and generates its opening turn.
func (h *Handlers) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req models.FirstTurnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Detail: err.Error()})
		return
	}

	session, turn, err := h.stories.StartStory(r.Context(), req)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SessionResponse{Session: session, Turn: &turn})
}

// ListStories returns all sessions, most recently updated first.
func (h *Handlers) ListStories(w http.ResponseWriter, r *http.Request) {
	sessions := h.stories.ListSessions()
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: sessions, Count: len(sessions)})
}

func (h *Handlers) GetStory(w http.ResponseWriter, r *http.Request) {
	session, err := h.stories.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: session})
}

func (h *Handlers) DeleteStory(w http.ResponseWriter, r *http.Request) {
	if !h.stories.RemoveSession(chi.URLParam(r, "id")) {
		h.writeSessionError(w, storage.ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ContinueStory records the reader's action and generates the next turn.
func (h *Handlers) ContinueStory(w http.ResponseWriter, r *http.Request) {
	var req ContinueStoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Detail: err.Error()})
		return
	}

	session, turn, err := h.stories.ContinueStory(r.Context(), chi.URLParam(r, "id"), req.Action)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{Session: session, Turn: &turn})
}

// ExportStory returns the serialized session as a downloadable JSON document.
func (h *Handlers) ExportStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := h.stories.ExportSession(id)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="story-`+id+`.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, data)
}

// ImportStory restores a previously exported session.
func (h *Handlers) ImportStory(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Detail: err.Error()})
		return
	}

	session, err := h.stories.ImportSession(string(data))
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SessionResponse{Session: session})
}

// SubscribeStory streams the session's events over a WebSocket.
func (h *Handlers) SubscribeStory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.stories.GetSession(id); err != nil {
		h.writeSessionError(w, err)
		return
	}
	if h.hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Live updates disabled"})
		return
	}
	h.hub.Serve(w, r, id)
}

func (h *Handlers) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Story not found"})
	case errors.Is(err, storage.ErrInvalidImport):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid story export", Detail: err.Error()})
	case errors.Is(err, engine.ErrEmptyAction):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Action must not be empty"})
	case errors.Is(err, engine.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Story generation unavailable", Detail: err.Error()})
	default:
		h.logger.Error("story request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}
