package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"github.com/starford/metacheck/internal/apperr"
)

// CheckFunc checks the given archive paths and returns the run id.
type CheckFunc func(ctx context.Context, paths []string) (string, error)

// Archive is the view of the local archive the watcher needs.
type Archive interface {
	Root() string
	List(ctx context.Context, collection string) ([]string, error)
	Fingerprint(path string) (string, error)
	ArchivePath(local string) (string, error)
}

// Sync walks the archive and brings the results up to date:
//   - new or changed data objects are checked
//   - objects removed from the archive are forgotten
func Sync(ctx context.Context, db StateStore, archive Archive, logger *slog.Logger, check CheckFunc) error {
	paths, err := archive.List(ctx, "")
	if err != nil {
		return err
	}
	known, err := db.AllFingerprints()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(paths))
	var changed []string
	for _, p := range paths {
		disk[p] = struct{}{}
		fp, err := archive.Fingerprint(p)
		if err != nil {
			logger.Warn("sync: fingerprint failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		if known[p] != fp {
			changed = append(changed, p)
		}
	}

	for p := range known {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteState(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return checkChanged(ctx, db, archive, logger, check, changed)
}

// checkChanged runs check over paths whose fingerprint moved and records
// the new fingerprints.
func checkChanged(ctx context.Context, db StateStore, archive Archive, logger *slog.Logger, check CheckFunc, paths []string) error {
	var todo []string
	fps := make(map[string]string, len(paths))
	for _, p := range paths {
		fp, err := archive.Fingerprint(p)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			logger.Warn("watcher: fingerprint failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		if old, _ := db.Fingerprint(p); old == fp {
			continue
		}
		fps[p] = fp
		todo = append(todo, p)
	}
	if len(todo) == 0 {
		return nil
	}
	runID, err := check(ctx, todo)
	if err != nil {
		return fmt.Errorf("index: check %d files: %w", len(todo), err)
	}
	for _, p := range todo {
		if err := db.SetFingerprint(p, fps[p], runID); err != nil {
			logger.Warn("watcher: record state failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
	logger.Info("watcher: checked", slog.String("run_id", runID), slog.Int("files", len(todo)))
	return nil
}

// LockWatcher takes the exclusive watcher lock for the results database at
// dbPath. Only one watcher may feed a database at a time.
func LockWatcher(dbPath string) (*flock.Flock, error) {
	lock := flock.New(dbPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("index: acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("index: another watcher holds %s: %w", lock.Path(), apperr.ErrConflict)
	}
	return lock, nil
}
