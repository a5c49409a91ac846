package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

const tmpPrefix = ".folio-tmp-"

// FS implements Provider backed by a flat directory on the local file system.
type FS struct {
	root string // absolute path to the content directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute content directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a plain file name inside the content directory. Names
// with separators or that would escape the root are rejected.
func (f *FS) safePath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", &apperr.NameError{Name: name, Reason: fmt.Sprintf("%q is not a valid file name.", name)}
	}
	abs := filepath.Join(f.root, name)
	if filepath.Dir(abs) != f.root {
		return "", fmt.Errorf("storage: path escapes content root: %s", name)
	}
	return abs, nil
}

// List returns the names of the regular files in the content directory,
// sorted by name. The directory is read once, when List is called.
func (f *FS) List() (iter.Seq[string], error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return func(yield func(string) bool) {
		for _, e := range entries {
			if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if !yield(e.Name()) {
				return
			}
		}
	}, nil
}

// Exists reports whether a file named name is present.
func (f *FS) Exists(name string) (bool, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("storage: stat %s: %w", name, err)
	}
}

// Read returns the raw bytes of a file.
func (f *FS) Read(name string) ([]byte, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, notFound(err))
	}
	return data, nil
}

// Create writes a new document. It fails with a NameError for invalid names
// and with apperr.ErrAlreadyExists when the file is present.
func (f *FS) Create(name string, content []byte) error {
	return f.create(strings.TrimSpace(name), content, models.KindDocument)
}

// CreateImage writes a new image verbatim under the image naming rules.
func (f *FS) CreateImage(name string, content []byte) error {
	return f.create(strings.TrimSpace(name), content, models.KindImage)
}

// Write overwrites an existing file. It fails with apperr.ErrNotFound when
// the file is absent.
func (f *FS) Write(name string, content []byte) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("storage: write %s: %w", name, notFound(err))
	}
	tmpName, err := f.writeTemp(content)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, abs); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// Duplicate copies src to newBase plus the extension of src and returns the
// new name. The target is validated like Create.
func (f *FS) Duplicate(src, newBase string) (string, error) {
	data, err := f.Read(src)
	if err != nil {
		return "", err
	}
	kind := Classify(src)
	if kind == models.KindRejected {
		kind = models.KindDocument
	}
	target := strings.TrimSpace(newBase) + filepath.Ext(src)
	if err := f.create(target, data, kind); err != nil {
		return "", err
	}
	return target, nil
}

// Delete removes a file from the content directory.
func (f *FS) Delete(name string) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", name, notFound(err))
	}
	return nil
}

// create validates name, then publishes content with a hard link from a
// temp file so an existing file is never replaced.
func (f *FS) create(name string, content []byte, kind models.Kind) error {
	if err := ValidateName(name, kind); err != nil {
		return err
	}
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	tmpName, err := f.writeTemp(content)
	if err != nil {
		return err
	}
	defer os.Remove(tmpName)

	if err := os.Link(tmpName, abs); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("storage: create %s: %w", name, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("storage: link: %w", err)
	}
	return nil
}

// writeTemp writes content to a synced temp file in the content directory
// and returns its path: tmp file → fsync → close.
func (f *FS) writeTemp(content []byte) (string, error) {
	tmp, err := os.CreateTemp(f.root, tmpPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return "", fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close temp: %w", err)
	}
	success = true
	return tmpName, nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.ErrNotFound
	}
	return err
}
