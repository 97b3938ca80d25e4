package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/kumon-analytics/internal/dto"
	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/pkg/config"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
)

// ReportService drives the monthly reporting cycle: it loads a session,
// serves the editable view and commits edited rows.
type ReportService struct {
	store      TabularStore
	fresh      TabularStore
	codec      *TableCodec
	loader     tableLoader
	reconciler *Reconciler
	sheets     config.SheetsConfig
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewReportService constructs a ReportService. The editable view and commits
// read the snapshot from behind any cache layer of store.
func NewReportService(store TabularStore, sheets config.SheetsConfig, cfg config.PipelineConfig, assigner KeyAssigner, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	codec := NewTableCodec(cfg.Location(), cfg.WithEnrollments())
	return &ReportService{
		store:      store,
		fresh:      uncached(store),
		codec:      codec,
		loader:     tableLoader{codec: codec, sheets: sheets, withEnrollments: cfg.WithEnrollments()},
		reconciler: NewReconciler(assigner, cfg.DefaultLesson, cfg.Location(), nil),
		sheets:     sheets,
		validator:  validate,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// LoadSession reads the student snapshot, the fact log and, in the relation
// layout, the enrollments.
func (s *ReportService) LoadSession(ctx context.Context) (*Session, error) {
	return s.loadSession(ctx, s.store)
}

func (s *ReportService) loadSession(ctx context.Context, store TabularStore) (*Session, error) {
	students, table, err := s.loader.students(ctx, store)
	if err != nil {
		return nil, err
	}
	facts, err := s.loader.facts(ctx, store)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.loader.enrollments(ctx, store)
	if err != nil {
		return nil, err
	}
	return &Session{
		Students:    students,
		Facts:       facts,
		Enrollments: enrollments,
		Fingerprint: Fingerprint(table),
		LoadedAt:    s.now(),
	}, nil
}

// EditableView returns the editor grid for the active roster.
func (s *ReportService) EditableView(ctx context.Context, subject string) (*models.EditableView, error) {
	session, err := s.loadSession(ctx, s.fresh)
	if err != nil {
		return nil, err
	}
	return &models.EditableView{
		Rows:        s.reconciler.PrepareEditableView(session, subject),
		Fingerprint: session.Fingerprint,
		LoadedAt:    session.LoadedAt,
	}, nil
}

// CommitCycle persists a month of edited rows. Facts are appended first and
// the student snapshot is overwritten second; a snapshot failure leaves the
// appended facts in place and is reported with their count.
func (s *ReportService) CommitCycle(ctx context.Context, req dto.CommitReportRequest, actor string) (*models.CommitResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid commit payload")
	}
	if err := validateAgainstCatalog(req.Rows); err != nil {
		return nil, err
	}

	students, table, err := s.loader.students(ctx, s.fresh)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.loader.enrollments(ctx, s.fresh)
	if err != nil {
		return nil, err
	}
	session := &Session{Students: students, Enrollments: enrollments, Fingerprint: Fingerprint(table), LoadedAt: s.now()}
	drift := req.Fingerprint != "" && req.Fingerprint != session.Fingerprint
	if drift {
		s.metrics.RecordSnapshotDrift()
		s.logger.Warn("snapshot_drift",
			zap.String("table", s.sheets.Students),
			zap.String("expected", req.Fingerprint),
			zap.String("actual", session.Fingerprint),
			zap.String("operator", actor))
	}

	month := s.now()
	if req.Month != "" {
		parsed, err := time.ParseInLocation("2006-01", req.Month, s.reconciler.loc)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "month must be formatted YYYY-MM")
		}
		month = parsed
	}

	rows := make([]models.EditableRow, len(req.Rows))
	for i, r := range req.Rows {
		rows[i] = r.ToModel()
	}
	plan, err := s.reconciler.Commit(session, rows, month)
	if err != nil {
		return nil, err
	}

	if len(plan.Facts) > 0 {
		if err := s.store.AppendRows(ctx, s.sheets.Facts, s.codec.EncodeFacts(plan.Facts)); err != nil {
			return nil, err
		}
		s.metrics.AddFactsAppended(len(plan.Facts))
	}
	if err := s.store.ClearAndWrite(ctx, s.sheets.Students, s.codec.EncodeStudents(plan.Students)); err != nil {
		s.logger.Error("snapshot overwrite failed after facts were appended",
			zap.String("table", s.sheets.Students),
			zap.Int("facts_appended", len(plan.Facts)),
			zap.Error(err))
		return nil, &appErrors.StoreError{
			Table:     s.sheets.Students,
			Operation: "clear_and_write",
			Err:       fmt.Errorf("%d facts already appended to %s: %w", len(plan.Facts), s.sheets.Facts, err),
		}
	}

	s.logger.Info("monthly report committed",
		zap.String("operator", actor),
		zap.Time("report_date", plan.ReportDate),
		zap.Int("facts_appended", len(plan.Facts)),
		zap.Int("students_updated", plan.Updated),
		zap.Bool("snapshot_drift", drift))

	return &models.CommitResult{
		ReportDate:      plan.ReportDate,
		FactsAppended:   len(plan.Facts),
		StudentsUpdated: plan.Updated,
		SnapshotDrift:   drift,
	}, nil
}

// validateAgainstCatalog rejects lessons off the editor's step and stages
// that do not belong to a known subject. Subjects outside the catalog skip
// the stage check.
func validateAgainstCatalog(rows []dto.EditableRowRequest) error {
	for _, r := range rows {
		if r.NewLesson%models.LessonStep != 0 {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("lesson %d is not a multiple of %d (student %s)", r.NewLesson, models.LessonStep, r.StudentID))
		}
		subject := NormalizeKey(r.Subject)
		if !models.IsSubject(subject) {
			continue
		}
		if models.StageID(subject, r.NewStage) == 0 {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("stage %q is not a %s stage (student %s)", r.NewStage, subject, r.StudentID))
		}
	}
	return nil
}
