package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/kumon-analytics/internal/dto"
	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/pkg/config"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
)

// RosterService lists and registers students.
type RosterService struct {
	store     TabularStore
	codec     *TableCodec
	loader    tableLoader
	sheets    config.SheetsConfig
	assigner  KeyAssigner
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRosterService constructs a RosterService.
func NewRosterService(store TabularStore, sheets config.SheetsConfig, cfg config.PipelineConfig, assigner KeyAssigner, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if assigner == nil {
		assigner = UUIDAssigner{}
	}
	codec := NewTableCodec(cfg.Location(), cfg.WithEnrollments())
	return &RosterService{
		store:     store,
		codec:     codec,
		loader:    tableLoader{codec: codec, sheets: sheets, withEnrollments: cfg.WithEnrollments()},
		sheets:    sheets,
		assigner:  assigner,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns students sorted by name. ActiveOnly keeps the active roster.
func (s *RosterService) List(ctx context.Context, filter models.StudentFilter) ([]models.RosterEntry, *models.Pagination, error) {
	students, err := s.loader.studentsOrEmpty(ctx, s.store)
	if err != nil {
		return nil, nil, err
	}
	subject := NormalizeKey(filter.Subject)
	entries := make([]models.RosterEntry, 0, len(students))
	for _, st := range students {
		roster := RosterStatusOf(st.Status)
		if filter.ActiveOnly && roster != models.RosterActive {
			continue
		}
		if subject != "" && NormalizeKey(st.Subject) != subject {
			continue
		}
		entries = append(entries, models.RosterEntry{Student: st, Roster: roster})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	total := len(entries)
	from := (page - 1) * size
	if from > total {
		from = total
	}
	to := from + size
	if to > total {
		to = total
	}
	return entries[from:to], &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Register appends a new student to dim_students, and to the enrollment
// relation when it is modeled. An existing kumon_id is a conflict.
func (s *RosterService) Register(ctx context.Context, req dto.RegisterStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	subject := NormalizeKey(req.Subject)
	if !models.IsSubject(subject) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject %q", req.Subject))
	}
	if models.StageID(subject, req.CurrentStage) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("stage %q is not a %s stage", req.CurrentStage, subject))
	}
	if models.GradeID(req.CurrentGrade) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grade %q", req.CurrentGrade))
	}

	students, err := s.loader.studentsOrEmpty(ctx, s.store)
	if err != nil {
		return nil, err
	}
	kumonID := NormalizeKey(req.KumonID)
	for _, existing := range students {
		if NormalizeKey(existing.KumonID) == kumonID {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student %s is already registered", kumonID))
		}
	}

	now := s.now()
	student := models.Student{
		StudentID:     s.assigner.NewID(),
		KumonID:       kumonID,
		Name:          strings.ToUpper(strings.TrimSpace(req.Name)),
		Gender:        req.Gender,
		BirthDate:     mustDate(req.BirthDate),
		EnrollDate:    mustDate(req.EnrollDate),
		CurrentGrade:  req.CurrentGrade,
		Subject:       subject,
		CurrentStage:  req.CurrentStage,
		EnrollDateSub: mustDate(req.EnrollDateSub),
		Type:          req.Type,
		Status:        req.Status,
		IngestedAt:    now,
	}
	if err := s.store.AppendRows(ctx, s.sheets.Students, s.codec.EncodeStudents([]models.Student{student})); err != nil {
		return nil, err
	}
	if s.loader.withEnrollments {
		enrollment := models.Enrollment{
			SubjectID:     s.assigner.NewID(),
			StudentID:     student.StudentID,
			Subject:       subject,
			EnrollDateSub: student.EnrollDateSub,
			IngestedAt:    now,
		}
		if err := s.store.AppendRows(ctx, s.sheets.Enrollments, s.codec.EncodeEnrollments([]models.Enrollment{enrollment})); err != nil {
			return nil, err
		}
	}
	s.logger.Info("student registered", zap.String("student_id", student.StudentID), zap.String("kumon_id", kumonID), zap.String("subject", subject))
	return &student, nil
}

// mustDate parses a validated YYYY-MM-DD value; blank yields nil.
func mustDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}
