// Package storage defines the content directory abstraction.
package storage

import "iter"

// Provider is the interface for content directory operations. Names are
// plain file names; the directory has no subfolders.
type Provider interface {
	// List returns the file names present when it is called.
	List() (iter.Seq[string], error)
	// Exists reports whether name is present.
	Exists(name string) (bool, error)
	// Read returns the raw bytes of name.
	Read(name string) ([]byte, error)
	// Create writes a new document; it never replaces an existing file.
	Create(name string, content []byte) error
	// CreateImage writes a new image; it never replaces an existing file.
	CreateImage(name string, content []byte) error
	// Write atomically overwrites an existing file.
	Write(name string, content []byte) error
	// Duplicate copies src to newBase + ext(src) and returns the new name.
	Duplicate(src, newBase string) (string, error)
	// Delete removes name.
	Delete(name string) error
}

var _ Provider = (*FS)(nil)
