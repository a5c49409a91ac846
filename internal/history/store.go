// Package history records the content of documents as it was right before
// each edit.
package history

import (
	"slices"
	"sync"

	"github.com/starford/folio/internal/yamlfile"
)

// Store keeps a file name -> snapshots mapping in a YAML file. Snapshots
// are ordered oldest first and are never pruned.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Record appends content to the snapshots of name and persists the mapping.
func (s *Store) Record(name string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all[name] = append(all[name], string(content))
	return yamlfile.Save(s.path, all)
}

// History returns the snapshots of name, oldest first. The result is never nil.
func (s *Store) History(name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	out := slices.Clone(all[name])
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// Names returns the set of file names with at least one snapshot.
func (s *Store) Names() (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(all))
	for name, snaps := range all {
		if len(snaps) > 0 {
			out[name] = struct{}{}
		}
	}
	return out, nil
}

func (s *Store) load() (map[string][]string, error) {
	all := map[string][]string{}
	if err := yamlfile.Load(s.path, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = map[string][]string{}
	}
	return all, nil
}
