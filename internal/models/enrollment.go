package models

import "time"

// Enrollment is one row of rel_students_subject, a (student, subject) pair.
type Enrollment struct {
	SubjectID     string     `json:"subject_id"`
	StudentID     string     `json:"student_id"`
	Subject       string     `json:"subject"`
	EnrollDateSub *time.Time `json:"enroll_date_sub,omitempty"`
	IngestedAt    time.Time  `json:"ingested_at"`
}
