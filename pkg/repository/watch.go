package repository

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/tiercache/internal/logger"
	"github.com/marmos91/tiercache/pkg/diskworker"
)

// DefaultWatchDebounce coalesces bursts of file events into one import.
const DefaultWatchDebounce = 500 * time.Millisecond

// WatchTree keeps the repository in step with root: every time images or
// folders appear below it, the tree is re-imported once the events settle.
// onImport, if non-nil, receives the stats of each re-import. It blocks until
// ctx is cancelled or the watcher fails.
func (s *SQLStore) WatchTree(ctx context.Context, root string, debounce time.Duration, onImport func(ImportStats)) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := addDirs(watcher, abs); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	logger.Info("Watching directory tree", logger.KeyPath, abs)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(watcher, event) {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			stats, err := s.ImportTree(ctx, abs)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("Re-import failed", logger.KeyPath, abs, logger.Err(err))
				continue
			}
			if onImport != nil {
				onImport(stats)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// relevant reports whether event can change the imported tree. New
// directories are watched as a side effect.
func relevant(watcher *fsnotify.Watcher, event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if err := addDirs(watcher, event.Name); err == nil && isDir(event.Name) {
			return true
		}
	}
	return diskworker.IsImagePath(event.Name)
}

// addDirs watches path and every non-hidden directory below it. A path that
// is not a directory is ignored.
func addDirs(watcher *fsnotify.Watcher, path string) error {
	if !isDir(path) {
		return nil
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
