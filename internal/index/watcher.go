package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/metacheck/internal/storage"
)

// DefaultDebounce is how long the watcher waits after the last change
// before checking the affected files.
const DefaultDebounce = 500 * time.Millisecond

// Watch starts an fsnotify watcher on the archive root and re-checks data
// objects whose content or sidecar changed, until ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list. Changes are collected and checked as one batch once no event has
// arrived for debounce.
func Watch(ctx context.Context, db StateStore, archive Archive, logger *slog.Logger, check CheckFunc, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := archive.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := map[string]struct{}{}
	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func(p string) {
		pending[p] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			clear(pending)
			if err := checkChanged(ctx, db, archive, logger, check, paths); err != nil {
				logger.Error("watcher: check failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
						continue
					}
					logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					scheduleDir(archive, ev.Name, schedule)
					continue
				}
			}

			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") {
				continue
			}
			p, relErr := archive.ArchivePath(storage.DataPath(ev.Name))
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				logger.Debug("watcher: changed", slog.String("path", p))
				schedule(p)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if storage.IsSidecar(name) {
					// Losing the sidecar changes the object's metadata.
					schedule(p)
					continue
				}
				if delErr := db.DeleteState(p); delErr != nil {
					logger.Warn("watcher: forget failed", slog.String("path", p), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("path", p))
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// scheduleDir schedules every data object already present in a newly
// created directory.
func scheduleDir(archive Archive, dir string, schedule func(string)) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if p, relErr := archive.ArchivePath(storage.DataPath(path)); relErr == nil {
			schedule(p)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
