package keys

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the registry whenever the keybinding file changes and calls
// onChange with the new registry. Invalid files are logged and skipped.
// It blocks until ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Registry)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("keybinding watcher: %w", err)
	}
	defer w.Close()

	// Editors replace files by rename, so watch the directory. Create it so
	// a file written later is still picked up.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create keybindings dir: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

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
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			r, err := Load(path)
			if err != nil {
				logger.Warn("keybindings reload failed", "path", path, "err", err)
				continue
			}
			logger.Info("keybindings reloaded", "path", path)
			onChange(r)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("keybinding watcher error", "err", err)
		}
	}
}
