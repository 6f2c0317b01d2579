package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 150 * time.Millisecond

// ReloadFunc receives the outcome of a file-triggered reload. On error the
// snapshot is the one still in effect.
type ReloadFunc func(snapshot *Snapshot, err error)

// Watch reloads the snapshot whenever either data file changes on disk and
// blocks until ctx is canceled. The directories are watched rather than the
// files so editors that replace files on save are still observed.
func (s *Store) Watch(ctx context.Context, onReload ReloadFunc) error {
	if s == nil {
		return errors.New("store is nil")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	targets := map[string]struct{}{
		filepath.Clean(s.settingsPath): {},
		filepath.Clean(s.commandsPath): {},
	}
	dirs := map[string]struct{}{}
	for path := range targets {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %q: %w", dir, err)
		}
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, tracked := targets[filepath.Clean(event.Name)]; !tracked {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = time.After(defaultWatchDebounce)
		case <-pending:
			pending = nil
			snapshot, err := s.Reload()
			if onReload != nil {
				onReload(snapshot, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onReload != nil {
				onReload(s.Current(), fmt.Errorf("file watcher: %w", err))
			}
		}
	}
}
