package web

import (
	"net/http"

	"github.com/starford/folio/internal/auth"
)

// MsgSignInRequired is flashed when an anonymous visitor hits a guarded route.
const MsgSignInRequired = "You must be signed in to do that."

// RequireSignedIn redirects anonymous requests to the index with a flash
// message instead of running the guarded handler.
func (h *Handler) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.Require(r.Context()); err != nil {
			h.redirect(w, r, "/", MsgSignInRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
