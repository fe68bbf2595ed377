package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the preferences whenever the file changes on disk and calls
// fn with the new values. Events that leave the preferences unchanged, such
// as the store's own writes, are not reported. Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(Preferences)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Editors and our own writes replace the file, so watch its directory.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			before := s.Preferences()
			after := s.Load()
			if after != before {
				s.logger.Info("preferences reloaded", "path", s.path)
				fn(after)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("preferences watcher error", "error", err)
		}
	}
}
