package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and invokes onChange with a freshly parsed Config each
// time the file is rewritten. It blocks until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and dropped; the
// previously active configuration stays in effect and onChange is not called.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			handleEvent(watcher, path, event, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// handleEvent reloads the config on write/create events. Atomic-save editors
// replace the file via rename, which both surfaces as a Create event and can
// invalidate the inode watch, so the path is re-added after every reload.
func handleEvent(watcher *fsnotify.Watcher, path string, event fsnotify.Event, onChange func(*Config)) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	cfg, err := Load(path)
	if err != nil {
		slog.Error("config: reload failed, keeping previous config",
			"path", path, "err", err)
		return
	}

	slog.Info("config: reloaded", "path", path)
	onChange(cfg)

	_ = watcher.Add(path)
}
