// Package credentials keeps the username -> password hash mapping used for
// sign-in and sign-up.
package credentials

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/yamlfile"
)

// Store persists bcrypt hashes in a YAML file. Every call re-reads the
// file, so edits made outside the process are picked up.
type Store struct {
	path string
	cost int
	mu   sync.Mutex
}

// NewStore creates a store backed by path. A cost of zero selects
// bcrypt.DefaultCost.
func NewStore(path string, cost int) *Store {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Store{path: path, cost: cost}
}

// Load returns the persisted mapping. A missing file yields an empty map.
func (s *Store) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Register hashes password and stores it under username. It fails with
// apperr.ErrAlreadyExists when the username is taken or either value is
// blank.
func (s *Store) Register(username, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("credentials: blank username or password: %w", apperr.ErrAlreadyExists)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := users[username]; ok {
		return fmt.Errorf("credentials: %s: %w", username, apperr.ErrAlreadyExists)
	}

	hash, err := bcrypt.GenerateFromPassword(secretBytes(password), s.cost)
	if err != nil {
		return fmt.Errorf("credentials: hash password: %w", err)
	}
	users[username] = string(hash)

	return yamlfile.Save(s.path, users)
}

// Verify reports whether password matches the stored hash for username.
// Unknown users and wrong passwords both return false.
func (s *Store) Verify(username, password string) (bool, error) {
	users, err := s.Load()
	if err != nil {
		return false, err
	}
	hash, ok := users[username]
	if !ok {
		return false, nil
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), secretBytes(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("credentials: compare: %w", err)
	}
	return true, nil
}

// Exists reports whether username is registered.
func (s *Store) Exists(username string) (bool, error) {
	users, err := s.Load()
	if err != nil {
		return false, err
	}
	_, ok := users[username]
	return ok, nil
}

// maxBcryptInput is the longest input bcrypt accepts.
const maxBcryptInput = 72

// secretBytes returns the bcrypt input for password. Passwords bcrypt would
// reject as too long are replaced by their base64 SHA-256 digest; shorter
// ones are used as is so existing hashes keep verifying.
func secretBytes(password string) []byte {
	if len(password) <= maxBcryptInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func (s *Store) load() (map[string]string, error) {
	users := map[string]string{}
	if err := yamlfile.Load(s.path, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = map[string]string{}
	}
	return users, nil
}
