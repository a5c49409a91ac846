// Package docservice coordinates the content directory, the version history
// and the sign-in gate.
package docservice

import (
	"context"
	"fmt"

	"github.com/starford/folio/internal/auth"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/render"
	"github.com/starford/folio/internal/storage"
)

// HistoryStore is the subset of the version history used by the service.
type HistoryStore interface {
	Record(name string, content []byte) error
	History(name string) ([]string, error)
	Names() (map[string]struct{}, error)
}

// Service exposes document operations. Mutating operations and history
// reads require a signed-in context.
type Service struct {
	store   storage.Provider
	history HistoryStore
}

// NewService creates a new document service.
func NewService(store storage.Provider, history HistoryStore) *Service {
	return &Service{store: store, history: history}
}

// List returns the listing of the content directory in name order.
func (s *Service) List(_ context.Context) ([]models.Entry, error) {
	seq, err := s.store.List()
	if err != nil {
		return nil, err
	}
	versioned, err := s.history.Names()
	if err != nil {
		return nil, err
	}
	entries := []models.Entry{}
	for name := range seq {
		_, has := versioned[name]
		entries = append(entries, models.Entry{
			Name:       name,
			Kind:       storage.Classify(name),
			HasHistory: has,
		})
	}
	return entries, nil
}

// Get reads a file. Markdown documents come back with HTML rendered.
func (s *Service) Get(_ context.Context, name string) (*models.Document, error) {
	data, err := s.store.Read(name)
	if err != nil {
		return nil, err
	}
	doc := &models.Document{
		Name:     name,
		Kind:     storage.Classify(name),
		Content:  data,
		Checksum: checksum.Sum(data),
	}
	if storage.IsMarkdown(name) {
		html, err := render.Markdown(data)
		if err != nil {
			return nil, err
		}
		doc.HTML = html
	}
	return doc, nil
}

// Create writes a new document.
func (s *Service) Create(ctx context.Context, name string, content []byte) error {
	if err := auth.Require(ctx); err != nil {
		return err
	}
	return s.store.Create(name, content)
}

// Upload writes a new image.
func (s *Service) Upload(ctx context.Context, name string, content []byte) error {
	if err := auth.Require(ctx); err != nil {
		return err
	}
	return s.store.CreateImage(name, content)
}

// Update records the current content of name in the history, then replaces
// it. Nothing is recorded when name does not exist.
func (s *Service) Update(ctx context.Context, name string, content []byte) error {
	if err := auth.Require(ctx); err != nil {
		return err
	}
	prev, err := s.store.Read(name)
	if err != nil {
		return err
	}
	if err := s.history.Record(name, prev); err != nil {
		return fmt.Errorf("record snapshot of %s: %w", name, err)
	}
	return s.store.Write(name, content)
}

// Duplicate copies src to newBase with the extension of src and returns the
// created name.
func (s *Service) Duplicate(ctx context.Context, src, newBase string) (string, error) {
	if err := auth.Require(ctx); err != nil {
		return "", err
	}
	return s.store.Duplicate(src, newBase)
}

// Delete removes name permanently. Its history is kept.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := auth.Require(ctx); err != nil {
		return err
	}
	return s.store.Delete(name)
}

// History returns the snapshots of name, oldest first.
func (s *Service) History(ctx context.Context, name string) ([]string, error) {
	if err := auth.Require(ctx); err != nil {
		return nil, err
	}
	return s.history.History(name)
}
