package api

import (
	"net/http"

	"github.com/starford/folio/internal/auth"
)

// RequireUser rejects requests without a signed-in session with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.Require(r.Context()); err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("sign in required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
