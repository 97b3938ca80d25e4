package models

import "time"

// EditableRow is one line of the monthly editor grid. The New* fields and
// TotalSheets, Advanced and Status are the operator's input.
type EditableRow struct {
	StudentID    string     `json:"student_id"`
	Name         string     `json:"name"`
	Subject      string     `json:"subject"`
	Type         string     `json:"type"`
	CurrentGrade string     `json:"current_grade"`
	LastStage    string     `json:"last_stage"`
	LastLesson   int        `json:"last_lesson"`
	NewStage     string     `json:"new_stage"`
	NewLesson    int        `json:"new_lesson"`
	TotalSheets  int        `json:"total_sheets"`
	Advanced     bool       `json:"advanced"`
	Status       StatusCode `json:"status"`
}

// EditableView is the editor grid plus the fingerprint of the snapshot it
// was built from.
type EditableView struct {
	Rows        []EditableRow `json:"rows"`
	Fingerprint string        `json:"fingerprint"`
	LoadedAt    time.Time     `json:"loaded_at"`
}

// CommitResult summarises one reconciliation commit.
type CommitResult struct {
	ReportDate      time.Time `json:"report_date"`
	FactsAppended   int       `json:"facts_appended"`
	StudentsUpdated int       `json:"students_updated"`
	SnapshotDrift   bool      `json:"snapshot_drift"`
}
