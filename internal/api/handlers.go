package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// documentName extracts the {name} URL parameter, undoing percent-encoding.
func documentName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

type listItem struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	HasHistory bool   `json:"has_history"`
}

// DocumentDetail is the JSON form of a single file. Content is only set for
// documents; images are served by the site itself.
type DocumentDetail struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Checksum string `json:"checksum"`
	Content  string `json:"content,omitempty"`
	HTML     string `json:"html,omitempty"`
}

// ListDocuments handles GET /api/documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, "list documents", "", err)
		return
	}
	items := make([]listItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, listItem{Name: e.Name, Kind: e.Kind.String(), HasHistory: e.HasHistory})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": items,
		"total":     len(items),
	})
}

// GetDocument handles GET /api/documents/{name}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	name := documentName(r)
	doc, err := h.svc.Get(r.Context(), name)
	if err != nil {
		writeError(w, "get document", name, err)
		return
	}
	detail := DocumentDetail{
		Name:     doc.Name,
		Kind:     doc.Kind.String(),
		Checksum: doc.Checksum,
		HTML:     doc.HTML,
	}
	if doc.Kind != models.KindImage {
		detail.Content = string(doc.Content)
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetHistory handles GET /api/documents/{name}/history.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	name := documentName(r)
	versions, err := h.svc.History(r.Context(), name)
	if err != nil {
		writeError(w, "get history", name, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     name,
		"versions": versions,
	})
}
