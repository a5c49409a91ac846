// Package models defines the domain types for folio.
package models

// Kind classifies a file in the content directory by its extension.
type Kind int

const (
	KindRejected Kind = iota
	KindDocument
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindImage:
		return "image"
	default:
		return "rejected"
	}
}

// MarshalText encodes k by name, so JSON carries "document" or "image".
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Document is a file read from the content directory.
type Document struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"-"`
	Content  []byte `json:"-"`
	Checksum string `json:"checksum"`
	// HTML holds the rendered body of Markdown documents, empty otherwise.
	HTML string `json:"html,omitempty"`
}

// Entry is one row of the index listing.
type Entry struct {
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	HasHistory bool   `json:"has_history"`
}
