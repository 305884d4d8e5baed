package api

import (
	"context"

	"github.com/starford/metacheck/internal/checker"
	"github.com/starford/metacheck/internal/lanelet"
	"github.com/starford/metacheck/internal/models"
)

// Service is what the handlers need from the checker.
type Service interface {
	Run(ctx context.Context, req checker.Request) (*models.Report, error)
	GetRun(ctx context.Context, id string) (*models.Report, error)
	ListRuns(ctx context.Context, limit, offset int) ([]models.Summary, int, error)
	History(ctx context.Context, path string, limit int) ([]models.Discrepancy, error)
	Classify(value string) models.IdentifierClass
	Decode(path string) (lanelet.Decoded, error)
}

var _ Service = (*checker.Service)(nil)
