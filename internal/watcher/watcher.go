// Package watcher reports changes to the content directory, including those
// made outside the application.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/storage"
)

// ChangeFunc is called for each document or image change. kind is one of
// sse.KindCreated, sse.KindUpdated, sse.KindDeleted.
type ChangeFunc func(kind, name string)

// Watch watches dir until ctx is cancelled. Hidden files (including the
// store's temp files) and files that are neither documents nor images are
// ignored.
//
// Writes land as a rename over the target, which fsnotify reports as
// Create, so a name already seen is reported as updated.
func Watch(ctx context.Context, dir string, logger *slog.Logger, cb ChangeFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	known, err := snapshot(dir)
	if err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", dir))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || storage.Classify(name) == models.KindRejected {
				continue
			}

			var kind string
			switch {
			case ev.Op&fsnotify.Create != 0:
				kind = sse.KindCreated
				if _, seen := known[name]; seen {
					kind = sse.KindUpdated
				}
				known[name] = struct{}{}
			case ev.Op&fsnotify.Write != 0:
				kind = sse.KindUpdated
				known[name] = struct{}{}
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if _, err := os.Stat(ev.Name); err == nil {
					continue
				}
				kind = sse.KindDeleted
				delete(known, name)
			default:
				continue
			}

			logger.Debug("watcher: change", slog.String("name", name), slog.String("op", kind))
			if cb != nil {
				cb(kind, name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func snapshot(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			known[e.Name()] = struct{}{}
		}
	}
	return known, nil
}
