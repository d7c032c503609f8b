package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stakemate/stakemate/internal/logging"
	"github.com/stakemate/stakemate/internal/util"
)

// debounce window for editors that write config files in several events
const watchDebounce = 250 * time.Millisecond

// Watch monitors a config file and invokes onChange with the freshly
// loaded config whenever the file is rewritten. Invalid intermediate
// states are logged and skipped; the previous config stays in effect.
// The watcher stops when ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the directory rather than the file so atomic rename-style
	// saves keep being observed.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	util.SafeGoWithName("config-watcher", func() {
		defer watcher.Close()

		var timer *time.Timer
		reload := func() {
			cfg, err := Load(path)
			if err != nil {
				logging.Warn("config reload failed, keeping previous", logging.Err(err))
				return
			}
			logging.Info("config reloaded", "path", path)
			onChange(cfg)
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("config watcher error", logging.Err(err))
			}
		}
	})

	return nil
}
