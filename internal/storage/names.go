package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

var (
	documentExts = []string{".md", ".txt"}
	imageExts    = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}

	baseNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Messages shown to users when a name is rejected.
const (
	MsgNameRequired      = "A name is required. Please enter a valid filename."
	MsgExtensionRequired = "A file extension is required."
	MsgNameCharacters    = "Names may only contain letters, digits, underscores and hyphens."
)

// DocumentExtensions returns the extensions accepted for documents.
func DocumentExtensions() []string { return slices.Clone(documentExts) }

// ImageExtensions returns the extensions accepted for images.
func ImageExtensions() []string { return slices.Clone(imageExts) }

// Classify reports whether name is a document, an image, or neither.
func Classify(name string) models.Kind {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case slices.Contains(documentExts, ext):
		return models.KindDocument
	case slices.Contains(imageExts, ext):
		return models.KindImage
	default:
		return models.KindRejected
	}
}

// IsMarkdown reports whether name should be rendered as Markdown.
func IsMarkdown(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".md")
}

// ValidateName checks that name has a non-empty base made of [A-Za-z0-9_-]
// and an extension allowed for kind. Failures are *apperr.NameError values.
// Existence is not checked here.
func ValidateName(name string, kind models.Kind) error {
	name = strings.TrimSpace(name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	allowed := documentExts
	if kind == models.KindImage {
		allowed = imageExts
	}

	if err := validation.Validate(base,
		validation.Required.Error(MsgNameRequired),
		validation.Match(baseNameRe).Error(MsgNameCharacters),
	); err != nil {
		return &apperr.NameError{Name: name, Reason: err.Error()}
	}

	if err := validation.Validate(strings.ToLower(ext),
		validation.Required.Error(MsgExtensionRequired),
		validation.In(toAny(allowed)...).Error(unsupportedExtension(ext, allowed)),
	); err != nil {
		return &apperr.NameError{Name: name, Reason: err.Error()}
	}
	return nil
}

func unsupportedExtension(ext string, allowed []string) string {
	return fmt.Sprintf("%s files are not supported. Use one of: %s.", ext, strings.Join(allowed, ", "))
}

func toAny(list []string) []any {
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = v
	}
	return out
}
