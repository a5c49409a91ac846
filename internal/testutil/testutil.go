// Package testutil provides shared test helpers for setting up a content
// directory and its stores.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/starford/folio/internal/credentials"
	"github.com/starford/folio/internal/history"
	"github.com/starford/folio/internal/storage"
)

// Env bundles the stores of one temporary installation.
type Env struct {
	ContentDir  string
	Store       *storage.FS
	History     *history.Store
	Credentials *credentials.Store
}

// NewEnv creates a temporary content directory with history and credential
// files next to it. Passwords are hashed at bcrypt.MinCost.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	root := t.TempDir()
	contentDir := filepath.Join(root, "data")
	store := TestContent(t, contentDir)
	return &Env{
		ContentDir:  contentDir,
		Store:       store,
		History:     history.NewStore(filepath.Join(root, "history.yml")),
		Credentials: credentials.NewStore(filepath.Join(root, "users.yml"), bcrypt.MinCost),
	}
}

// TestContent creates dir (if needed) and returns a storage.FS rooted there.
func TestContent(t *testing.T, dir string) *storage.FS {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// CreateDocument writes a document directly, bypassing the sign-in gate.
func (e *Env) CreateDocument(t *testing.T, name, content string) {
	t.Helper()
	if err := e.Store.Create(name, []byte(content)); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
}

// AddUser registers a credential.
func (e *Env) AddUser(t *testing.T, username, password string) {
	t.Helper()
	if err := e.Credentials.Register(username, password); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}
