package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

// Accepted spellings for dates and timestamps read from hand-edited sheets.
var (
	dateLayouts = []string{
		models.DateLayout,
		models.TimestampLayout,
		"2006-01-02 15:04:05.999999",
		time.RFC3339,
		"2006/01/02",
		"02/01/2006",
	}
	timestampLayouts = []string{
		models.TimestampLayout,
		"2006-01-02 15:04:05.999999",
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		models.DateLayout,
	}
)

// TableCodec maps typed records to and from the untyped store format. Every
// conversion between rows and records goes through it.
type TableCodec struct {
	loc           *time.Location
	withSubjectID bool
}

// NewTableCodec builds a codec. Timestamps without a zone are read in loc;
// withSubjectID selects the relation layout of the fact table.
func NewTableCodec(loc *time.Location, withSubjectID bool) *TableCodec {
	if loc == nil {
		loc = time.UTC
	}
	return &TableCodec{loc: loc, withSubjectID: withSubjectID}
}

// FactSchema returns the fact layout this codec writes.
func (c *TableCodec) FactSchema() models.Schema {
	return models.FactSchema(c.withSubjectID)
}

// rowReader reads cells by column name from one row.
type rowReader struct {
	codec  *TableCodec
	table  string
	index  map[string]int
	row    []string
	number int
	key    string
	err    error
}

func (c *TableCodec) reader(name string, header []string) *rowReader {
	index := make(map[string]int, len(header))
	for i, h := range header {
		norm := strings.ToLower(strings.TrimSpace(h))
		if _, ok := index[norm]; !ok {
			index[norm] = i
		}
	}
	return &rowReader{codec: c, table: name, index: index}
}

func (r *rowReader) reset(row []string, number int) {
	r.row, r.number, r.key, r.err = row, number, "", nil
}

func (r *rowReader) has(col string) bool {
	_, ok := r.index[col]
	return ok
}

func (r *rowReader) str(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.row) {
		return ""
	}
	return strings.TrimSpace(r.row[i])
}

func (r *rowReader) fail(col, value string) {
	if r.err != nil {
		return
	}
	r.err = appErrors.NewValidationError(r.table, "decode", r.key,
		fmt.Sprintf("row %d: invalid %s %q", r.number, col, value))
}

func (r *rowReader) date(col string) *time.Time {
	raw := r.str(col)
	if raw == "" {
		return nil
	}
	t, ok := parseTime(raw, dateLayouts, r.codec.loc)
	if !ok {
		r.fail(col, raw)
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func (r *rowReader) requiredDate(col string) time.Time {
	if r.str(col) == "" {
		if r.err == nil {
			r.err = appErrors.NewValidationError(r.table, "decode", r.key, fmt.Sprintf("row %d: blank %s", r.number, col))
		}
		return time.Time{}
	}
	if d := r.date(col); d != nil {
		return *d
	}
	return time.Time{}
}

func (r *rowReader) timestamp(col string) time.Time {
	raw := r.str(col)
	if raw == "" {
		return time.Time{}
	}
	t, ok := parseTime(raw, timestampLayouts, r.codec.loc)
	if !ok {
		r.fail(col, raw)
	}
	return t
}

func (r *rowReader) integer(col string) int {
	raw := r.str(col)
	if raw == "" {
		return 0
	}
	n, ok := parseInt(raw)
	if !ok {
		r.fail(col, raw)
	}
	return n
}

func (r *rowReader) optionalInt(col string) *int {
	if r.str(col) == "" {
		return nil
	}
	n := r.integer(col)
	return &n
}

func (r *rowReader) boolean(col string) bool {
	raw := r.str(col)
	b, ok := parseBool(raw)
	if !ok {
		r.fail(col, raw)
	}
	return b
}

func (r *rowReader) status(col string) models.StatusCode {
	return models.StatusCode(strings.ToLower(r.str(col)))
}

func (c *TableCodec) checkHeader(name string, schema models.Schema, header []string) error {
	if missing := schema.Missing(header); len(missing) > 0 {
		return appErrors.NewValidationError(name, "decode", "",
			"missing required columns: "+strings.Join(missing, ", "))
	}
	return nil
}

// DecodeRaw reads the raw observation log.
func (c *TableCodec) DecodeRaw(name string, table models.Table) (models.RawLog, error) {
	if err := c.checkHeader(name, models.RawSchema, table.Header); err != nil {
		return models.RawLog{}, err
	}
	r := c.reader(name, table.Header)
	log := models.RawLog{
		Observations: make([]models.RawObservation, 0, len(table.Rows)),
		HasStatus:    r.has("status"),
	}
	for i, row := range table.Rows {
		if blankRow(row) {
			continue
		}
		r.reset(row, i+1)
		r.key = r.str("kumon_id")
		obs := models.RawObservation{
			Row:           i + 1,
			KumonID:       r.str("kumon_id"),
			Name:          r.str("name"),
			Gender:        strings.ToLower(r.str("gender")),
			BirthDate:     r.date("birth_date"),
			EnrollDate:    r.date("enroll_date"),
			Subject:       r.str("subject"),
			EnrollDateSub: r.date("enroll_date_sub"),
			ReportDate:    r.requiredDate("report_date"),
			Type:          r.str("type"),
			GradeID:       r.integer("grade_id"),
			Grade:         r.str("grade"),
			StageID:       r.integer("stage_id"),
			Stage:         r.str("stage"),
			CurrentLesson: r.integer("current_lesson"),
			TotalSheets:   r.integer("total_sheets"),
			Advanced:      r.boolean("advanced"),
			Status:        r.status("status"),
		}
		if r.err != nil {
			return models.RawLog{}, r.err
		}
		log.Observations = append(log.Observations, obs)
	}
	return log, nil
}

// DecodeStudents reads dim_students.
func (c *TableCodec) DecodeStudents(name string, table models.Table) ([]models.Student, error) {
	if err := c.checkHeader(name, models.StudentSchema, table.Header); err != nil {
		return nil, err
	}
	r := c.reader(name, table.Header)
	out := make([]models.Student, 0, len(table.Rows))
	for i, row := range table.Rows {
		if blankRow(row) {
			continue
		}
		r.reset(row, i+1)
		r.key = r.str("kumon_id")
		s := models.Student{
			StudentID:     r.str("student_id"),
			KumonID:       r.str("kumon_id"),
			Name:          r.str("name"),
			Gender:        strings.ToLower(r.str("gender")),
			BirthDate:     r.date("birth_date"),
			EnrollDate:    r.date("enroll_date"),
			CurrentGrade:  r.str("current_grade"),
			Subject:       r.str("subject"),
			CurrentStage:  r.str("current_stage"),
			EnrollDateSub: r.date("enroll_date_sub"),
			Type:          r.str("type"),
			Status:        r.status("status"),
			IngestedAt:    r.timestamp("ingested_at"),
		}
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, s)
	}
	return out, nil
}

// EncodeStudents renders dim_students.
func (c *TableCodec) EncodeStudents(students []models.Student) models.Table {
	table := models.NewTable(models.StudentSchema.Header()...)
	for _, s := range students {
		table.Rows = append(table.Rows, []string{
			s.StudentID,
			s.KumonID,
			s.Name,
			s.Gender,
			formatDate(s.BirthDate),
			formatDate(s.EnrollDate),
			s.CurrentGrade,
			s.Subject,
			s.CurrentStage,
			formatDate(s.EnrollDateSub),
			s.Type,
			string(s.Status),
			c.formatTimestamp(s.IngestedAt),
		})
	}
	return table
}

// DecodeEnrollments reads rel_students_subject.
func (c *TableCodec) DecodeEnrollments(name string, table models.Table) ([]models.Enrollment, error) {
	if err := c.checkHeader(name, models.EnrollmentSchema, table.Header); err != nil {
		return nil, err
	}
	r := c.reader(name, table.Header)
	out := make([]models.Enrollment, 0, len(table.Rows))
	for i, row := range table.Rows {
		if blankRow(row) {
			continue
		}
		r.reset(row, i+1)
		r.key = r.str("subject_id")
		e := models.Enrollment{
			SubjectID:     r.str("subject_id"),
			StudentID:     r.str("student_id"),
			Subject:       r.str("subject"),
			EnrollDateSub: r.date("enroll_date_sub"),
			IngestedAt:    r.timestamp("ingested_at"),
		}
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, e)
	}
	return out, nil
}

// EncodeEnrollments renders rel_students_subject.
func (c *TableCodec) EncodeEnrollments(enrollments []models.Enrollment) models.Table {
	table := models.NewTable(models.EnrollmentSchema.Header()...)
	for _, e := range enrollments {
		table.Rows = append(table.Rows, []string{
			e.SubjectID,
			e.StudentID,
			e.Subject,
			formatDate(e.EnrollDateSub),
			c.formatTimestamp(e.IngestedAt),
		})
	}
	return table
}

// DecodeFacts reads fct_status_report in either layout.
func (c *TableCodec) DecodeFacts(name string, table models.Table) ([]models.StatusReport, error) {
	if err := c.checkHeader(name, models.FactSchema(false), table.Header); err != nil {
		return nil, err
	}
	r := c.reader(name, table.Header)
	out := make([]models.StatusReport, 0, len(table.Rows))
	for i, row := range table.Rows {
		if blankRow(row) {
			continue
		}
		r.reset(row, i+1)
		r.key = r.str("fact_id")
		f := models.StatusReport{
			FactID:        r.str("fact_id"),
			SubjectID:     r.str("subject_id"),
			StudentID:     r.str("student_id"),
			ReportDate:    r.requiredDate("report_date"),
			Subject:       r.str("subject"),
			AgeAtReport:   r.optionalInt("age_at_report"),
			Type:          r.str("type"),
			GradeID:       r.integer("grade_id"),
			Grade:         r.str("grade"),
			StageID:       r.integer("stage_id"),
			Stage:         r.str("stage"),
			CurrentLesson: r.integer("current_lesson"),
			TotalSheets:   r.integer("total_sheets"),
			Advanced:      r.boolean("advanced"),
			Status:        r.status("status"),
			IngestedAt:    r.timestamp("ingested_at"),
		}
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, f)
	}
	return out, nil
}

// EncodeFacts renders fct_status_report in the codec's layout.
func (c *TableCodec) EncodeFacts(facts []models.StatusReport) models.Table {
	table := models.NewTable(c.FactSchema().Header()...)
	for _, f := range facts {
		row := []string{f.FactID}
		if c.withSubjectID {
			row = append(row, f.SubjectID)
		}
		row = append(row,
			f.StudentID,
			f.ReportDate.Format(models.DateLayout),
			f.Subject,
			formatOptionalInt(f.AgeAtReport),
			f.Type,
			formatID(f.GradeID),
			f.Grade,
			formatID(f.StageID),
			f.Stage,
			strconv.Itoa(f.CurrentLesson),
			strconv.Itoa(f.TotalSheets),
			formatBool(f.Advanced),
			string(f.Status),
			c.formatTimestamp(f.IngestedAt),
		)
		table.Rows = append(table.Rows, row)
	}
	return table
}

func (c *TableCodec) formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(c.loc).Format(models.TimestampLayout)
}

func formatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(models.DateLayout)
}

func formatID(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func formatOptionalInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func parseTime(raw string, layouts []string, loc *time.Location) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseInt accepts integral floats such as "60.0", which spreadsheet exports
// emit for numeric columns with gaps. Values outside the int32 range fail.
func parseInt(raw string) (int, bool) {
	if n, err := strconv.ParseInt(raw, 10, 32); err == nil {
		return int(n), true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "true", "t", "yes", "y", "1", "1.0":
		return true, true
	case "false", "f", "no", "n", "0", "0.0", "":
		return false, true
	default:
		return false, false
	}
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
