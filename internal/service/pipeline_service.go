package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kumon-analytics/pkg/config"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

// PipelineService runs the offline normalization: read the raw log, build
// the star schema, then replace every destination table. Reads bypass any
// cache layer of store; writes go through it and drop cached snapshots.
type PipelineService struct {
	store    TabularStore
	fresh    TabularStore
	codec    *TableCodec
	loader   tableLoader
	sheets   config.SheetsConfig
	cfg      config.PipelineConfig
	assigner KeyAssigner
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewPipelineService constructs a PipelineService.
func NewPipelineService(store TabularStore, sheets config.SheetsConfig, cfg config.PipelineConfig, assigner KeyAssigner, metrics *MetricsService, logger *zap.Logger) *PipelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if assigner == nil {
		assigner = UUIDAssigner{}
	}
	codec := NewTableCodec(cfg.Location(), cfg.WithEnrollments())
	return &PipelineService{
		store:    store,
		fresh:    uncached(store),
		codec:    codec,
		loader:   tableLoader{codec: codec, sheets: sheets, withEnrollments: cfg.WithEnrollments()},
		sheets:   sheets,
		cfg:      cfg,
		assigner: assigner,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Run performs one normalization. All validation happens before the first
// write; writes go students, enrollments, facts.
func (s *PipelineService) Run(ctx context.Context) (*models.NormalizationSummary, error) {
	start := s.now()
	summary, err := s.run(ctx)
	outcome := "success"
	if err != nil {
		outcome = "failure"
		s.logger.Error("normalization failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	} else {
		s.logger.Info("normalization finished",
			zap.Int("raw_rows", summary.RawRows),
			zap.Int("students", summary.Students),
			zap.Int("enrollments", summary.Enrollments),
			zap.Int("facts", summary.Facts),
			zap.Duration("elapsed", time.Since(start)))
	}
	s.metrics.RecordNormalizationRun(outcome)
	return summary, err
}

func (s *PipelineService) run(ctx context.Context) (*models.NormalizationSummary, error) {
	rawTable, err := s.fresh.ReadTable(ctx, s.sheets.Raw)
	if err != nil {
		return nil, err
	}
	raw, err := s.codec.DecodeRaw(s.sheets.Raw, rawTable)
	if err != nil {
		return nil, err
	}

	normalizer := NewNormalizer(NormalizerOptions{
		Assigner:       s.assigner,
		StatusStrategy: s.cfg.StatusStrategy,
		Table:          s.sheets.Raw,
		Now:            s.now,
	})
	if s.cfg.ReuseKeys {
		if err := s.seed(ctx, normalizer); err != nil {
			return nil, err
		}
	}

	star, err := normalizer.Normalize(raw, s.cfg.WithEnrollments())
	if err != nil {
		return nil, err
	}

	if err := s.write(ctx, s.sheets.Students, s.codec.EncodeStudents(star.Students)); err != nil {
		return nil, err
	}
	if s.cfg.WithEnrollments() {
		if err := s.write(ctx, s.sheets.Enrollments, s.codec.EncodeEnrollments(star.Enrollments)); err != nil {
			return nil, err
		}
	}
	if err := s.write(ctx, s.sheets.Facts, s.codec.EncodeFacts(star.Facts)); err != nil {
		return nil, err
	}

	return &models.NormalizationSummary{
		RawRows:     len(raw.Observations),
		Students:    len(star.Students),
		Enrollments: len(star.Enrollments),
		Facts:       len(star.Facts),
	}, nil
}

// seed binds the ids written by the previous run so they survive a rebuild.
func (s *PipelineService) seed(ctx context.Context, n *Normalizer) error {
	students, err := s.loader.studentsOrEmpty(ctx, s.fresh)
	if err != nil {
		return err
	}
	n.SeedStudents(students)
	enrollments, err := s.loader.enrollments(ctx, s.fresh)
	if err != nil {
		return err
	}
	n.SeedEnrollments(enrollments)
	s.logger.Debug("seeded key registries", zap.Int("students", len(students)), zap.Int("enrollments", len(enrollments)))
	return nil
}

// write replaces a destination table, creating it when the store reports it
// missing.
func (s *PipelineService) write(ctx context.Context, name string, table models.Table) error {
	err := s.store.ClearAndWrite(ctx, name, table)
	if appErrors.IsTableNotFound(err) {
		s.logger.Info("creating destination table", zap.String("table", name))
		if err := s.store.CreateTable(ctx, name, table.Header); err != nil {
			return err
		}
		err = s.store.ClearAndWrite(ctx, name, table)
	}
	return err
}
