// Package session keeps per-browser state (signed-in user and a one-shot
// flash message) in an HS256-signed cookie.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/starford/folio/internal/auth"
)

// State is the decoded session of one browser.
type State struct {
	Username string
	Flash    string
}

// SignedIn reports whether the state carries a user.
func (s *State) SignedIn() bool { return s.Username != "" }

// PopFlash returns the flash message and clears it.
func (s *State) PopFlash() string {
	msg := s.Flash
	s.Flash = ""
	return msg
}

type claims struct {
	Username string `json:"usr,omitempty"`
	Flash    string `json:"flash,omitempty"`
	jwt.RegisteredClaims
}

// Manager encodes State into cookies and back.
type Manager struct {
	key    []byte
	name   string
	maxAge time.Duration
	now    func() time.Time
}

// NewManager creates a Manager signing with secret.
func NewManager(secret []byte, cookieName string, maxAge time.Duration) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("session: secret is required")
	}
	return &Manager{key: secret, name: cookieName, maxAge: maxAge, now: time.Now}, nil
}

// RandomSecret returns 32 random bytes for use when no secret is configured.
func RandomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("session: random secret: %w", err)
	}
	return b, nil
}

// Load decodes the session cookie of r. A missing, tampered or expired
// cookie yields an empty (anonymous) state.
func (m *Manager) Load(r *http.Request) *State {
	c, err := r.Cookie(m.name)
	if err != nil || c.Value == "" {
		return &State{}
	}
	var cl claims
	_, err = jwt.ParseWithClaims(c.Value, &cl, func(*jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return &State{}
	}
	return &State{Username: cl.Username, Flash: cl.Flash}
}

// Save writes st as the session cookie. An empty state clears the cookie.
func (m *Manager) Save(w http.ResponseWriter, st *State) error {
	if st.Username == "" && st.Flash == "" {
		http.SetCookie(w, &http.Cookie{
			Name:     m.name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		return nil
	}

	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: st.Username,
		Flash:    st.Flash,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	})
	signed, err := token.SignedString(m.key)
	if err != nil {
		return fmt.Errorf("session: sign: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.maxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

type ctxKey struct{}

// Middleware loads the session into the request context and, for signed-in
// users, records the identity for auth.Require.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := m.Load(r)
		ctx := context.WithValue(r.Context(), ctxKey{}, st)
		if st.SignedIn() {
			ctx = auth.WithUser(ctx, st.Username)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the state loaded by Middleware, or an empty state.
func FromContext(ctx context.Context) *State {
	if st, ok := ctx.Value(ctxKey{}).(*State); ok {
		return st
	}
	return &State{}
}
