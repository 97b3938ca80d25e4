package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/kumon-analytics/pkg/config"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

// NormalizeKey trims surrounding whitespace and upper-cases a natural key.
func NormalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeKeys returns a copy of the log with kumon_id and subject
// normalized on every observation.
func NormalizeKeys(log models.RawLog) models.RawLog {
	out := models.RawLog{HasStatus: log.HasStatus, Observations: make([]models.RawObservation, len(log.Observations))}
	for i, obs := range log.Observations {
		obs.KumonID = NormalizeKey(obs.KumonID)
		obs.Subject = NormalizeKey(obs.Subject)
		out.Observations[i] = obs
	}
	return out
}

// StarSchema is the output of one normalization: the student dimension, the
// optional enrollment relation and the fact table.
type StarSchema struct {
	Students    []models.Student
	Enrollments []models.Enrollment
	Facts       []models.StatusReport
}

// NormalizerOptions configures a Normalizer.
type NormalizerOptions struct {
	Assigner       KeyAssigner
	StatusStrategy string
	Table          string
	Now            func() time.Time
}

// Normalizer turns the raw observation log into the star schema. Student
// and enrollment ids come from registries that may be seeded with the ids of
// a previous run.
type Normalizer struct {
	students    *KeyRegistry
	enrollments *KeyRegistry
	facts       KeyAssigner
	strategy    string
	table       string
	now         func() time.Time
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(opts NormalizerOptions) *Normalizer {
	if opts.Assigner == nil {
		opts.Assigner = UUIDAssigner{}
	}
	if opts.StatusStrategy == "" {
		opts.StatusStrategy = config.StatusStrategyStatusCode
	}
	if opts.Table == "" {
		opts.Table = "raw"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Normalizer{
		students:    NewKeyRegistry(opts.Assigner),
		enrollments: NewKeyRegistry(opts.Assigner),
		facts:       opts.Assigner,
		strategy:    opts.StatusStrategy,
		table:       opts.Table,
		now:         opts.Now,
	}
}

// SeedStudents binds existing kumon_id to student_id pairs.
func (n *Normalizer) SeedStudents(students []models.Student) {
	for _, s := range students {
		n.students.Seed(NormalizeKey(s.KumonID), s.StudentID)
	}
}

// SeedEnrollments binds existing (student_id, subject) to subject_id pairs.
func (n *Normalizer) SeedEnrollments(enrollments []models.Enrollment) {
	for _, e := range enrollments {
		n.enrollments.Seed(enrollmentKey(e.StudentID, NormalizeKey(e.Subject)), e.SubjectID)
	}
}

// Normalize normalizes keys once and runs the three build steps in order.
// Nothing is returned unless every step validates.
func (n *Normalizer) Normalize(raw models.RawLog, withEnrollments bool) (*StarSchema, error) {
	log := NormalizeKeys(raw)
	students, err := n.BuildStudentDimension(log)
	if err != nil {
		return nil, err
	}
	var enrollments []models.Enrollment
	if withEnrollments {
		if enrollments, err = n.BuildEnrollmentRelation(log, students); err != nil {
			return nil, err
		}
	}
	facts, err := n.BuildFactTable(log, students, enrollments)
	if err != nil {
		return nil, err
	}
	return &StarSchema{Students: students, Enrollments: enrollments, Facts: facts}, nil
}

// BuildStudentDimension deduplicates the log by kumon_id. With a status
// column the latest observation per student wins (report_date, then input
// order); without one the first observation wins.
func (n *Normalizer) BuildStudentDimension(log models.RawLog) ([]models.Student, error) {
	kept := make(map[string]int)
	order := make([]string, 0)
	var latest time.Time
	for i, obs := range log.Observations {
		if obs.KumonID == "" {
			return nil, n.invalid("build_students", "", fmt.Sprintf("row %d: blank kumon_id", obs.Row))
		}
		if obs.ReportDate.After(latest) {
			latest = obs.ReportDate
		}
		prev, seen := kept[obs.KumonID]
		if !seen {
			kept[obs.KumonID] = i
			order = append(order, obs.KumonID)
			continue
		}
		if log.HasStatus && !obs.ReportDate.Before(log.Observations[prev].ReportDate) {
			kept[obs.KumonID] = i
		}
	}

	onLatest := make(map[string]bool)
	for _, obs := range log.Observations {
		if obs.ReportDate.Equal(latest) {
			onLatest[obs.KumonID] = true
		}
	}
	legacy := n.strategy == config.StatusStrategyLatestReport || !log.HasStatus

	ingestedAt := n.now()
	students := make([]models.Student, 0, len(order))
	for _, key := range order {
		obs := log.Observations[kept[key]]
		status := obs.Status
		if legacy {
			status = models.StatusInactive
			if onLatest[key] {
				status = models.StatusActive
			}
		}
		students = append(students, models.Student{
			StudentID:     n.students.Reuse(key),
			KumonID:       key,
			Name:          obs.Name,
			Gender:        obs.Gender,
			BirthDate:     obs.BirthDate,
			EnrollDate:    obs.EnrollDate,
			CurrentGrade:  obs.Grade,
			Subject:       obs.Subject,
			CurrentStage:  obs.Stage,
			EnrollDateSub: obs.EnrollDateSub,
			Type:          obs.Type,
			Status:        status,
			IngestedAt:    ingestedAt,
		})
	}
	return students, nil
}

// BuildEnrollmentRelation projects one enrollment per (student, subject).
// Each observation must join to exactly one student.
func (n *Normalizer) BuildEnrollmentRelation(log models.RawLog, students []models.Student) ([]models.Enrollment, error) {
	byKey := indexStudents(students)
	seen := make(map[string]struct{})
	ingestedAt := n.now()
	out := make([]models.Enrollment, 0)
	for _, obs := range log.Observations {
		student, err := n.resolveStudent(byKey, obs, "build_enrollments")
		if err != nil {
			return nil, err
		}
		if obs.Subject == "" {
			return nil, n.invalid("build_enrollments", obs.KumonID, fmt.Sprintf("row %d: blank subject", obs.Row))
		}
		key := enrollmentKey(student.StudentID, obs.Subject)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.Enrollment{
			SubjectID:     n.enrollments.Reuse(key),
			StudentID:     student.StudentID,
			Subject:       obs.Subject,
			EnrollDateSub: obs.EnrollDateSub,
			IngestedAt:    ingestedAt,
		})
	}
	return out, nil
}

// BuildFactTable emits one fact per observation. Facts join to exactly one
// student and, when enrollments is non-nil, to exactly one enrollment.
func (n *Normalizer) BuildFactTable(log models.RawLog, students []models.Student, enrollments []models.Enrollment) ([]models.StatusReport, error) {
	byKey := indexStudents(students)
	var byEnrollment map[string][]models.Enrollment
	if enrollments != nil {
		byEnrollment = make(map[string][]models.Enrollment, len(enrollments))
		for _, e := range enrollments {
			key := enrollmentKey(e.StudentID, e.Subject)
			byEnrollment[key] = append(byEnrollment[key], e)
		}
	}

	ingestedAt := n.now()
	facts := make([]models.StatusReport, 0, len(log.Observations))
	for _, obs := range log.Observations {
		student, err := n.resolveStudent(byKey, obs, "build_facts")
		if err != nil {
			return nil, err
		}
		fact := models.StatusReport{
			FactID:        n.facts.NewID(),
			StudentID:     student.StudentID,
			ReportDate:    obs.ReportDate,
			Subject:       obs.Subject,
			AgeAtReport:   ageAt(student.BirthDate, obs.ReportDate),
			Type:          obs.Type,
			GradeID:       obs.GradeID,
			Grade:         obs.Grade,
			StageID:       obs.StageID,
			Stage:         obs.Stage,
			CurrentLesson: obs.CurrentLesson,
			TotalSheets:   obs.TotalSheets,
			Advanced:      obs.Advanced,
			Status:        obs.Status,
			IngestedAt:    ingestedAt,
		}
		if fact.GradeID == 0 {
			fact.GradeID = models.GradeID(obs.Grade)
		}
		if fact.StageID == 0 {
			fact.StageID = models.StageID(obs.Subject, obs.Stage)
		}
		if byEnrollment != nil {
			matches := byEnrollment[enrollmentKey(student.StudentID, obs.Subject)]
			switch len(matches) {
			case 1:
				fact.SubjectID = matches[0].SubjectID
			case 0:
				return nil, n.invalid("build_facts", obs.KumonID,
					fmt.Sprintf("row %d: no enrollment for subject %q", obs.Row, obs.Subject))
			default:
				return nil, n.invalid("build_facts", obs.KumonID,
					fmt.Sprintf("row %d: %d enrollments match subject %q", obs.Row, len(matches), obs.Subject))
			}
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

func (n *Normalizer) resolveStudent(byKey map[string][]models.Student, obs models.RawObservation, op string) (models.Student, error) {
	matches := byKey[obs.KumonID]
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return models.Student{}, n.invalid(op, obs.KumonID, fmt.Sprintf("row %d: no student with this kumon_id", obs.Row))
	default:
		return models.Student{}, n.invalid(op, obs.KumonID, fmt.Sprintf("row %d: %d students share this kumon_id", obs.Row, len(matches)))
	}
}

func (n *Normalizer) invalid(op, key, reason string) error {
	return appErrors.NewValidationError(n.table, op, key, reason)
}

func indexStudents(students []models.Student) map[string][]models.Student {
	out := make(map[string][]models.Student, len(students))
	for _, s := range students {
		key := NormalizeKey(s.KumonID)
		out[key] = append(out[key], s)
	}
	return out
}

func enrollmentKey(studentID, subject string) string {
	return studentID + "|" + subject
}

// ageAt returns the completed years between birth and at, or nil when the
// birth date is unknown or after at.
func ageAt(birth *time.Time, at time.Time) *int {
	if birth == nil || at.IsZero() || at.Before(*birth) {
		return nil
	}
	years := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		years--
	}
	return &years
}
