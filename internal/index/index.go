package index

import (
	"context"

	"github.com/starford/metacheck/internal/models"
)

// RunStore defines the interface for persisting check runs.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type RunStore interface {
	SaveRun(ctx context.Context, r *models.Report) error
	GetRun(ctx context.Context, id string) (*models.Report, error)
	ListRuns(ctx context.Context, limit, offset int) ([]models.Summary, int, error)
	PathHistory(ctx context.Context, path string, limit int) ([]models.Discrepancy, error)
	Close() error
}

// StateStore records what the watcher last checked.
type StateStore interface {
	Fingerprint(path string) (string, error)
	SetFingerprint(path, fingerprint, runID string) error
	DeleteState(path string) error
	AllFingerprints() (map[string]string, error)
}

// Verify *DB satisfies the interfaces at compile time.
var (
	_ RunStore   = (*DB)(nil)
	_ StateStore = (*DB)(nil)
)
