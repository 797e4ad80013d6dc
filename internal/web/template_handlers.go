package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type templateListResponse struct {
	Templates []string `json:"templates"`
}

// ListTemplates returns the names of the active prompt templates.
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, templateListResponse{Templates: h.templates.Names()})
}

// ExportTemplate returns one prompt template in the format LoadDir accepts.
func (h *Handlers) ExportTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := h.templates.ExportTemplate(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Template not found"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(data))
}
