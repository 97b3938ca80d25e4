package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

// DefaultLesson is the lesson assumed for a student with no reported facts.
const DefaultLesson = 10

// Session is the state one reconciliation works on: the student snapshot,
// the fact log, enrollments when modeled as a relation, and the fingerprint
// of the snapshot as read.
type Session struct {
	Students    []models.Student
	Facts       []models.StatusReport
	Enrollments []models.Enrollment
	Fingerprint string
	LoadedAt    time.Time
}

// CommitPlan is what a commit must persist: facts to append and the full
// updated student snapshot to overwrite.
type CommitPlan struct {
	ReportDate time.Time
	Facts      []models.StatusReport
	Students   []models.Student
	Updated    int
}

// Reconciler derives the monthly editor view and turns edited rows into
// facts plus an updated snapshot. It performs no I/O.
type Reconciler struct {
	assigner      KeyAssigner
	defaultLesson int
	loc           *time.Location
	now           func() time.Time
}

// NewReconciler constructs a Reconciler. Zero values fall back to UUIDs, the
// default lesson, UTC and the wall clock.
func NewReconciler(assigner KeyAssigner, defaultLesson int, loc *time.Location, now func() time.Time) *Reconciler {
	if assigner == nil {
		assigner = UUIDAssigner{}
	}
	if defaultLesson <= 0 {
		defaultLesson = DefaultLesson
	}
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Reconciler{assigner: assigner, defaultLesson: defaultLesson, loc: loc, now: now}
}

// Fingerprint hashes a table's content.
func Fingerprint(table models.Table) string {
	d := xxhash.New()
	write := func(cells []string) {
		for _, c := range cells {
			_, _ = d.WriteString(c)
			_, _ = d.Write([]byte{0x1f})
		}
		_, _ = d.Write([]byte{0x1e})
	}
	write(table.Header)
	for _, row := range table.Rows {
		write(row)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// MonthStart returns the first instant of t's month in the reconciler's zone.
func (r *Reconciler) MonthStart(t time.Time) time.Time {
	t = t.In(r.loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, r.loc)
}

// latestFacts returns the most recent fact per student. A fact for the
// student's own subject wins over facts for other subjects.
func latestFacts(students []models.Student, facts []models.StatusReport) map[string]models.StatusReport {
	subjectOf := make(map[string]string, len(students))
	for _, s := range students {
		subjectOf[s.StudentID] = NormalizeKey(s.Subject)
	}
	latest := make(map[string]models.StatusReport)
	for _, f := range facts {
		subject, ok := subjectOf[f.StudentID]
		if !ok {
			continue
		}
		prev, seen := latest[f.StudentID]
		if !seen {
			latest[f.StudentID] = f
			continue
		}
		fMatch := NormalizeKey(f.Subject) == subject
		prevMatch := NormalizeKey(prev.Subject) == subject
		switch {
		case fMatch && !prevMatch:
			latest[f.StudentID] = f
		case fMatch == prevMatch && !f.ReportDate.Before(prev.ReportDate):
			latest[f.StudentID] = f
		}
	}
	return latest
}

// PrepareEditableView builds one editor row per active student, optionally
// restricted to subject, sorted by name. Students carrying the legacy
// "active" value are offered as current.
func (r *Reconciler) PrepareEditableView(session *Session, subject string) []models.EditableRow {
	latest := latestFacts(session.Students, session.Facts)
	subject = NormalizeKey(subject)
	rows := make([]models.EditableRow, 0)
	for _, s := range session.Students {
		if RosterStatusOf(s.Status) != models.RosterActive {
			continue
		}
		if subject != "" && NormalizeKey(s.Subject) != subject {
			continue
		}
		row := models.EditableRow{
			StudentID:    s.StudentID,
			Name:         s.Name,
			Subject:      s.Subject,
			Type:         s.Type,
			CurrentGrade: s.CurrentGrade,
			LastStage:    s.CurrentStage,
			LastLesson:   r.defaultLesson,
			Status:       s.Status,
		}
		if s.Status == models.StatusActive {
			row.Status = models.StatusCurrent
		}
		if f, ok := latest[s.StudentID]; ok {
			if f.Stage != "" {
				row.LastStage = f.Stage
			}
			if f.CurrentLesson > 0 {
				row.LastLesson = f.CurrentLesson
			}
			row.Advanced = f.Advanced
		}
		row.NewStage = row.LastStage
		row.NewLesson = row.LastLesson
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

// Commit builds one fact per edited row, dated on the first day of month,
// and applies the stage and status transition to the matching students. The
// session is not modified.
func (r *Reconciler) Commit(session *Session, edited []models.EditableRow, month time.Time) (*CommitPlan, error) {
	students := append([]models.Student(nil), session.Students...)
	position := make(map[string]int, len(students))
	for i, s := range students {
		position[s.StudentID] = i
	}
	var enrollments map[string]string
	if session.Enrollments != nil {
		enrollments = make(map[string]string, len(session.Enrollments))
		for _, e := range session.Enrollments {
			enrollments[enrollmentKey(e.StudentID, NormalizeKey(e.Subject))] = e.SubjectID
		}
	}

	reportDate := r.MonthStart(month)
	now := r.now()
	plan := &CommitPlan{ReportDate: reportDate, Students: students, Facts: make([]models.StatusReport, 0, len(edited))}
	seen := make(map[string]struct{}, len(edited))
	for _, row := range edited {
		i, ok := position[row.StudentID]
		if !ok {
			return nil, appErrors.NewValidationError(models.StudentSchema.Name, "commit", row.StudentID, "unknown student_id")
		}
		if _, dup := seen[row.StudentID]; dup {
			return nil, appErrors.NewValidationError(models.StudentSchema.Name, "commit", row.StudentID, "student submitted more than once")
		}
		seen[row.StudentID] = struct{}{}
		if !IsKnownStatus(row.Status) {
			return nil, appErrors.NewValidationError(models.StudentSchema.Name, "commit", row.StudentID, fmt.Sprintf("unknown status %q", row.Status))
		}
		if row.NewStage == "" {
			return nil, appErrors.NewValidationError(models.StudentSchema.Name, "commit", row.StudentID, "blank new_stage")
		}
		if row.NewLesson <= 0 || row.TotalSheets < 0 {
			return nil, appErrors.NewValidationError(models.StudentSchema.Name, "commit", row.StudentID, "lesson must be positive and total_sheets non-negative")
		}

		student := students[i]
		subject := NormalizeKey(row.Subject)
		if subject == "" {
			subject = NormalizeKey(student.Subject)
		}
		fact := models.StatusReport{
			FactID:        r.assigner.NewID(),
			StudentID:     student.StudentID,
			ReportDate:    reportDate,
			Subject:       subject,
			AgeAtReport:   ageAt(student.BirthDate, reportDate),
			Type:          firstNonEmpty(row.Type, student.Type),
			Grade:         firstNonEmpty(row.CurrentGrade, student.CurrentGrade),
			Stage:         row.NewStage,
			StageID:       models.StageID(subject, row.NewStage),
			CurrentLesson: row.NewLesson,
			TotalSheets:   row.TotalSheets,
			Advanced:      row.Advanced,
			Status:        row.Status,
			IngestedAt:    now,
		}
		fact.GradeID = models.GradeID(fact.Grade)
		if enrollments != nil {
			id, ok := enrollments[enrollmentKey(student.StudentID, subject)]
			if !ok {
				return nil, appErrors.NewValidationError(models.EnrollmentSchema.Name, "commit", student.StudentID,
					fmt.Sprintf("no enrollment for subject %q", subject))
			}
			fact.SubjectID = id
		}
		plan.Facts = append(plan.Facts, fact)

		student.CurrentStage = row.NewStage
		student.Status = Transition(row.Status)
		student.IngestedAt = now
		students[i] = student
		plan.Updated++
	}
	return plan, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
