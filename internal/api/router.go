// Package api implements a read-only JSON view of the folio content
// directory using chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/session"
)

// NewRouter creates a chi router with all API routes mounted. The session
// cookie of the site decides who is signed in. A non-empty allowedOrigins
// enables CORS with credentials for those origins.
func NewRouter(svc *docservice.Service, sessions *session.Manager, allowedOrigins []string) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(sessions.Middleware)

	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/{name}", h.GetDocument)

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/documents/{name}/history", h.GetHistory)
	})

	return r
}
