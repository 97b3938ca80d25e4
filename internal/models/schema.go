package models

import "strings"

// ColumnType is the semantic type of a stored column.
type ColumnType string

const (
	ColumnID        ColumnType = "id"
	ColumnString    ColumnType = "string"
	ColumnDate      ColumnType = "date"
	ColumnTimestamp ColumnType = "timestamp"
	ColumnInt       ColumnType = "int"
	ColumnBool      ColumnType = "bool"
)

// Storage layouts for dates and timestamps.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Column describes one named, typed column.
type Column struct {
	Name     string
	Type     ColumnType
	Required bool
}

// Schema is an ordered list of typed columns shared by readers and writers
// of a table.
type Schema struct {
	Name    string
	Columns []Column
}

// Header returns the column names in order.
func (s Schema) Header() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Has reports whether the schema declares name.
func (s Schema) Has(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Missing lists required columns absent from header. Header names are
// compared after trimming and lower-casing.
func (s Schema) Missing(header []string) []string {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	var missing []string
	for _, c := range s.Columns {
		if !c.Required {
			continue
		}
		if _, ok := present[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	return missing
}

// RawSchema describes the human-edited observation log. Only the join keys
// and the report date are mandatory; everything else is projected when
// present.
var RawSchema = Schema{
	Name: "raw",
	Columns: []Column{
		{Name: "kumon_id", Type: ColumnString, Required: true},
		{Name: "subject", Type: ColumnString, Required: true},
		{Name: "report_date", Type: ColumnDate, Required: true},
		{Name: "name", Type: ColumnString},
		{Name: "gender", Type: ColumnString},
		{Name: "birth_date", Type: ColumnDate},
		{Name: "enroll_date", Type: ColumnDate},
		{Name: "enroll_date_sub", Type: ColumnDate},
		{Name: "type", Type: ColumnString},
		{Name: "grade_id", Type: ColumnInt},
		{Name: "grade", Type: ColumnString},
		{Name: "stage_id", Type: ColumnInt},
		{Name: "stage", Type: ColumnString},
		{Name: "current_lesson", Type: ColumnInt},
		{Name: "total_sheets", Type: ColumnInt},
		{Name: "advanced", Type: ColumnBool},
		{Name: "status", Type: ColumnString},
	},
}

// StudentSchema describes dim_students.
var StudentSchema = Schema{
	Name: "dim_students",
	Columns: []Column{
		{Name: "student_id", Type: ColumnID, Required: true},
		{Name: "kumon_id", Type: ColumnString, Required: true},
		{Name: "name", Type: ColumnString},
		{Name: "gender", Type: ColumnString},
		{Name: "birth_date", Type: ColumnDate},
		{Name: "enroll_date", Type: ColumnDate},
		{Name: "current_grade", Type: ColumnString},
		{Name: "subject", Type: ColumnString},
		{Name: "current_stage", Type: ColumnString},
		{Name: "enroll_date_sub", Type: ColumnDate},
		{Name: "type", Type: ColumnString},
		{Name: "status", Type: ColumnString},
		{Name: "ingested_at", Type: ColumnTimestamp},
	},
}

// EnrollmentSchema describes rel_students_subject.
var EnrollmentSchema = Schema{
	Name: "rel_students_subject",
	Columns: []Column{
		{Name: "subject_id", Type: ColumnID, Required: true},
		{Name: "student_id", Type: ColumnID, Required: true},
		{Name: "subject", Type: ColumnString, Required: true},
		{Name: "enroll_date_sub", Type: ColumnDate},
		{Name: "ingested_at", Type: ColumnTimestamp},
	},
}

// FactSchema describes fct_status_report. The relation layout adds
// subject_id after fact_id.
func FactSchema(withSubjectID bool) Schema {
	cols := []Column{{Name: "fact_id", Type: ColumnID, Required: true}}
	if withSubjectID {
		cols = append(cols, Column{Name: "subject_id", Type: ColumnID})
	}
	cols = append(cols,
		Column{Name: "student_id", Type: ColumnID, Required: true},
		Column{Name: "report_date", Type: ColumnDate, Required: true},
		Column{Name: "subject", Type: ColumnString},
		Column{Name: "age_at_report", Type: ColumnInt},
		Column{Name: "type", Type: ColumnString},
		Column{Name: "grade_id", Type: ColumnInt},
		Column{Name: "grade", Type: ColumnString},
		Column{Name: "stage_id", Type: ColumnInt},
		Column{Name: "stage", Type: ColumnString},
		Column{Name: "current_lesson", Type: ColumnInt},
		Column{Name: "total_sheets", Type: ColumnInt},
		Column{Name: "advanced", Type: ColumnBool},
		Column{Name: "status", Type: ColumnString},
		Column{Name: "ingested_at", Type: ColumnTimestamp},
	)
	return Schema{Name: "fct_status_report", Columns: cols}
}
