package models

import "time"

// StatusCode is the sub-state recorded on students and facts.
type StatusCode string

const (
	StatusCurrent        StatusCode = "current"
	StatusNew            StatusCode = "new"
	StatusNewMulti       StatusCode = "new_multi"
	StatusNewFormer      StatusCode = "new_former"
	StatusNewTransfer    StatusCode = "new_transfer"
	StatusAbsent         StatusCode = "absent"
	StatusAbsentGraduate StatusCode = "absent_graduate"
	StatusAbsentTransfer StatusCode = "absent_transfer"

	// Legacy roster values written by the latest-report strategy.
	StatusActive   StatusCode = "active"
	StatusInactive StatusCode = "inactive"
)

// RosterStatus is the derived two-state roster classification.
type RosterStatus string

const (
	RosterActive   RosterStatus = "active"
	RosterInactive RosterStatus = "inactive"
)

// Student is one row of dim_students: the current-state snapshot of a
// student, keyed by an immutable surrogate id.
type Student struct {
	StudentID     string     `json:"student_id"`
	KumonID       string     `json:"kumon_id"`
	Name          string     `json:"name"`
	Gender        string     `json:"gender,omitempty"`
	BirthDate     *time.Time `json:"birth_date,omitempty"`
	EnrollDate    *time.Time `json:"enroll_date,omitempty"`
	CurrentGrade  string     `json:"current_grade,omitempty"`
	Subject       string     `json:"subject"`
	CurrentStage  string     `json:"current_stage"`
	EnrollDateSub *time.Time `json:"enroll_date_sub,omitempty"`
	Type          string     `json:"type,omitempty"`
	Status        StatusCode `json:"status"`
	IngestedAt    time.Time  `json:"ingested_at"`
}

// StudentFilter narrows roster listings.
type StudentFilter struct {
	Subject    string
	ActiveOnly bool
	Page       int
	PageSize   int
}

// RosterEntry is a student with its derived roster status.
type RosterEntry struct {
	Student
	Roster RosterStatus `json:"roster_status"`
}
