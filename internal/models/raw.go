package models

import "time"

// RawObservation is one decoded row of the denormalized raw log. Row is the
// 1-based data row in the source table, kept for error context.
type RawObservation struct {
	Row           int
	KumonID       string
	Name          string
	Gender        string
	BirthDate     *time.Time
	EnrollDate    *time.Time
	Subject       string
	EnrollDateSub *time.Time
	ReportDate    time.Time
	Type          string
	GradeID       int
	Grade         string
	StageID       int
	Stage         string
	CurrentLesson int
	TotalSheets   int
	Advanced      bool
	Status        StatusCode
}

// RawLog is the decoded raw table plus the columns it actually carried.
type RawLog struct {
	Observations []RawObservation
	HasStatus    bool
}
