// Package auth carries the signed-in identity through a request context and
// gates mutating operations on it.
package auth

import (
	"context"

	"github.com/starford/folio/internal/apperr"
)

type userKey struct{}

// WithUser returns a context marked as signed in as username.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey{}, username)
}

// User returns the signed-in username, if any.
func User(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(userKey{}).(string)
	return u, ok && u != ""
}

// Require returns apperr.ErrAuthorizationRequired unless ctx is signed in.
func Require(ctx context.Context) error {
	if _, ok := User(ctx); !ok {
		return apperr.ErrAuthorizationRequired
	}
	return nil
}
