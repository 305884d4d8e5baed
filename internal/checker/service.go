// Package checker runs the metadata checks over batches of archived files.
// It fetches what each collaborator knows about a file, turns collaborator
// failures into findings on that file, and hands the rest to the
// reconcile engine.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/metacheck/internal/apperr"
	"github.com/starford/metacheck/internal/header"
	"github.com/starford/metacheck/internal/index"
	"github.com/starford/metacheck/internal/lanelet"
	"github.com/starford/metacheck/internal/metrics"
	"github.com/starford/metacheck/internal/models"
	"github.com/starford/metacheck/internal/reconcile"
	"github.com/starford/metacheck/internal/sse"
	"github.com/starford/metacheck/internal/storage"
)

// DefaultConcurrency is the number of files fetched in parallel.
const DefaultConcurrency = 8

// LIMS resolves identifier sets against the laboratory database.
type LIMS interface {
	LookupAll(ctx context.Context, sets map[models.EntityType]models.IdentifierSet) ([]models.Entity, error)
}

// Publisher receives completion events.
type Publisher interface {
	PublishFileChecked(sse.FileChecked)
	PublishRunFinished(sse.RunFinished)
}

// Search selects files by their catalog metadata instead of by path.
type Search struct {
	Collection string `json:"collection,omitempty"`
	// Study is a study name, accession number or internal id. The class
	// decides which attribute is matched.
	Study  string `json:"study,omitempty"`
	QCPass bool   `json:"qc_pass,omitempty"`
	Target string `json:"target,omitempty"`
}

// Validate checks that the search selects something narrower than the
// whole archive.
func (s *Search) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Study, validation.Required.When(s.Collection == "").Error("study or collection is required")),
	)
}

// Request describes one check run.
type Request struct {
	Paths            []string `json:"paths,omitempty"`
	Search           *Search  `json:"search,omitempty"`
	DesiredReference string   `json:"desired_reference,omitempty"`
	SkipChecksum     bool     `json:"skip_checksum,omitempty"`
	SkipHeader       bool     `json:"skip_header,omitempty"`
}

// Validate checks that exactly one way of selecting files is used.
func (r *Request) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Paths,
			validation.Required.When(r.Search == nil).Error("paths or search is required"),
			validation.Empty.When(r.Search != nil).Error("paths and search are mutually exclusive"),
		),
		validation.Field(&r.Search),
	)
}

// Service coordinates the collaborators and the engine.
type Service struct {
	engine      *reconcile.Engine
	store       storage.Provider
	lims        LIMS
	runs        index.RunStore
	metrics     *metrics.Metrics
	publisher   Publisher
	concurrency int
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLIMS enables the laboratory database checks.
func WithLIMS(l LIMS) Option {
	return func(s *Service) { s.lims = l }
}

// WithRunStore persists every finished run.
func WithRunStore(r index.RunStore) Option {
	return func(s *Service) { s.runs = r }
}

// WithMetrics records per-file and per-run counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher publishes completion events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithConcurrency bounds the number of files checked in parallel.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a checker over the given engine and archive.
func New(engine *reconcile.Engine, store storage.Provider, opts ...Option) *Service {
	s := &Service{
		engine:      engine,
		store:       store,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run checks every file the request selects and returns the report. Files
// appear in the report in selection order. Collaborator failures never fail
// the run; they are recorded on the affected file.
func (s *Service) Run(ctx context.Context, req Request) (*models.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err)
	}
	paths, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	rep := &models.Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Files:     make([]models.FileResult, len(paths)),
	}
	s.logger.Info("check run started", slog.String("run_id", rep.RunID), slog.Int("files", len(paths)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := s.checkFile(gctx, p, req)
			rep.Files[i] = res
			s.metrics.ObserveFile(res)
			if s.publisher != nil {
				s.publisher.PublishFileChecked(fileEvent(rep.RunID, res))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("checker: run: %w", err)
	}

	rep.FinishedAt = time.Now().UTC()
	s.metrics.ObserveRun(rep.FinishedAt.Sub(rep.StartedAt))

	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, rep); err != nil {
			s.logger.Error("save run failed", slog.String("run_id", rep.RunID), slog.String("error", err.Error()))
		}
	}

	sum := rep.Summarize()
	if s.publisher != nil {
		s.publisher.PublishRunFinished(sse.RunFinished{
			RunID:    rep.RunID,
			Files:    sum.Files,
			Errors:   sum.Errors,
			Warnings: sum.Warnings,
		})
	}
	s.logger.Info("check run finished",
		slog.String("run_id", rep.RunID),
		slog.Int("files", sum.Files),
		slog.Int("clean", sum.Clean),
		slog.Int("errors", sum.Errors),
		slog.Int("warnings", sum.Warnings),
	)
	return rep, nil
}

// CheckPaths runs a default check over paths and returns the run id. It
// satisfies index.CheckFunc.
func (s *Service) CheckPaths(ctx context.Context, paths []string) (string, error) {
	rep, err := s.Run(ctx, Request{Paths: paths})
	if err != nil {
		return "", err
	}
	return rep.RunID, nil
}

// GetRun returns a stored run.
func (s *Service) GetRun(ctx context.Context, id string) (*models.Report, error) {
	if s.runs == nil {
		return nil, apperr.ErrNotFound
	}
	return s.runs.GetRun(ctx, id)
}

// ListRuns returns stored run summaries, newest first.
func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]models.Summary, int, error) {
	if s.runs == nil {
		return []models.Summary{}, 0, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return s.runs.ListRuns(ctx, limit, offset)
}

// History returns the findings stored for path across runs, newest first.
func (s *Service) History(ctx context.Context, path string, limit int) ([]models.Discrepancy, error) {
	if s.runs == nil {
		return []models.Discrepancy{}, nil
	}
	if limit <= 0 {
		limit = 100
	}
	return s.runs.PathHistory(ctx, path, limit)
}

// Classify returns the identifier class of value under the configured rules.
func (s *Service) Classify(value string) models.IdentifierClass {
	return s.engine.Classifier().Classify(value)
}

// Decode splits an archive path into its run, lane and tag.
func (s *Service) Decode(path string) (lanelet.Decoded, error) {
	return s.engine.Decoder().Decode(path)
}

// resolve turns the request into an ordered list of distinct paths.
func (s *Service) resolve(ctx context.Context, req Request) ([]string, error) {
	paths := req.Paths
	if req.Search != nil {
		found, err := s.store.Find(ctx, s.query(*req.Search))
		if err != nil {
			return nil, fmt.Errorf("checker: search: %w", err)
		}
		paths = found
	}
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// query maps a search onto the configured attribute names.
func (s *Service) query(in Search) storage.Query {
	attrs := s.engine.Attributes()
	q := storage.Query{Collection: in.Collection}
	if in.Study != "" {
		attr := attrs.StudyName
		switch s.Classify(in.Study) {
		case models.ClassAccessionNumber:
			attr = attrs.StudyAccession
		case models.ClassInternalID:
			attr = attrs.StudyID
		}
		q.Match = append(q.Match, models.RawAnnotation{Attribute: attr, Value: in.Study})
	}
	if in.QCPass {
		q.Match = append(q.Match, models.RawAnnotation{Attribute: attrs.QualityControl, Value: "1"})
	}
	if in.Target != "" {
		q.Match = append(q.Match, models.RawAnnotation{Attribute: attrs.Target, Value: in.Target})
	}
	return q
}

func (s *Service) checkFile(ctx context.Context, p string, req Request) models.FileResult {
	raws, err := s.store.Annotations(ctx, p)
	if err != nil {
		s.logger.Warn("fetch annotations failed", slog.String("path", p), slog.String("error", err.Error()))
		return models.FileResult{Path: p, Discrepancies: []models.Discrepancy{
			models.FetchFailed(p, models.SourceStorage, "annotations: "+err.Error()),
		}}
	}

	in := reconcile.FileInput{Path: p, Annotations: raws, DesiredReference: req.DesiredReference}
	var out []models.Discrepancy
	fail := func(src models.Source, what string, err error) {
		s.logger.Warn("fetch "+what+" failed", slog.String("path", p), slog.String("error", err.Error()))
		out = append(out, models.FetchFailed(p, src, what+": "+err.Error()))
	}

	if !req.SkipChecksum {
		if sum, err := s.store.Checksum(ctx, p); err != nil {
			fail(models.SourceStorage, "checksum", err)
		} else {
			in.Checksum, in.ChecksumFetched = sum, true
			in.ChecksumSource = models.SourceStorage
		}
	}
	if reps, err := s.store.Replicas(ctx, p); err != nil {
		fail(models.SourceStorage, "replicas", err)
	} else {
		in.Replicas, in.ReplicasFetched = reps, true
	}
	if acl, err := s.store.ACL(ctx, p); err != nil {
		fail(models.SourceStorage, "acl", err)
	} else {
		in.ACL, in.ACLFetched = acl, true
	}

	if !req.SkipHeader {
		md, err := s.readHeader(ctx, p)
		switch {
		case errors.Is(err, apperr.ErrUnsupportedFormat):
			s.logger.Debug("header not readable", slog.String("path", p))
		case err != nil:
			fail(models.SourceHeader, "header", err)
		default:
			in.Header = md
		}
	}

	if s.lims != nil {
		sets := s.engine.Identifiers(p, raws, in.Header)
		if ents, err := s.lims.LookupAll(ctx, sets); err != nil {
			fail(models.SourceLIMS, "lims", err)
		} else {
			in.LIMS, in.LIMSFetched = ents, true
		}
	}

	out = append(out, s.engine.Check(in)...)
	if out == nil {
		out = []models.Discrepancy{}
	}
	return models.FileResult{Path: p, Discrepancies: out}
}

func (s *Service) readHeader(ctx context.Context, p string) (*header.Metadata, error) {
	f := header.FormatFromPath(p)
	if f != header.FormatSAM && f != header.FormatBAM {
		return nil, apperr.ErrUnsupportedFormat
	}
	rc, err := s.store.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return header.Read(rc, f)
}

func fileEvent(runID string, f models.FileResult) sse.FileChecked {
	ev := sse.FileChecked{RunID: runID, Path: f.Path}
	for _, d := range f.Discrepancies {
		if d.Severity == models.SeverityError {
			ev.Errors++
		} else {
			ev.Warnings++
		}
	}
	return ev
}
