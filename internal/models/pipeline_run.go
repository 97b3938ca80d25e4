package models

import "time"

// RunStatus captures background normalization lifecycle states.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "QUEUED"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusFinished   RunStatus = "FINISHED"
	RunStatusFailed     RunStatus = "FAILED"
)

// NormalizationSummary counts the rows written by one normalization run.
type NormalizationSummary struct {
	RawRows     int `json:"raw_rows"`
	Students    int `json:"students"`
	Enrollments int `json:"enrollments"`
	Facts       int `json:"facts"`
}

// PipelineRun tracks one asynchronous normalization run.
type PipelineRun struct {
	ID          string                `json:"id"`
	Status      RunStatus             `json:"status"`
	RequestedBy string                `json:"requested_by"`
	CreatedAt   time.Time             `json:"created_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	FinishedAt  *time.Time            `json:"finished_at,omitempty"`
	Summary     *NormalizationSummary `json:"summary,omitempty"`
	Error       string                `json:"error,omitempty"`
}
