package models

import "time"

// StatusReport is one immutable row of fct_status_report.
type StatusReport struct {
	FactID        string     `json:"fact_id"`
	SubjectID     string     `json:"subject_id,omitempty"`
	StudentID     string     `json:"student_id"`
	ReportDate    time.Time  `json:"report_date"`
	Subject       string     `json:"subject"`
	AgeAtReport   *int       `json:"age_at_report,omitempty"`
	Type          string     `json:"type,omitempty"`
	GradeID       int        `json:"grade_id,omitempty"`
	Grade         string     `json:"grade,omitempty"`
	StageID       int        `json:"stage_id,omitempty"`
	Stage         string     `json:"stage"`
	CurrentLesson int        `json:"current_lesson"`
	TotalSheets   int        `json:"total_sheets"`
	Advanced      bool       `json:"advanced"`
	Status        StatusCode `json:"status"`
	IngestedAt    time.Time  `json:"ingested_at"`
}

// ReportFilter selects facts for the monthly report export.
type ReportFilter struct {
	Month   time.Time
	Subject string
}
