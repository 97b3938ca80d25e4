package dto

import "github.com/noah-isme/kumon-analytics/internal/models"

// EditableRowRequest is one edited line of the monthly grid.
type EditableRowRequest struct {
	StudentID    string            `json:"student_id" validate:"required"`
	Subject      string            `json:"subject"`
	Type         string            `json:"type" validate:"omitempty,oneof=connect paper"`
	CurrentGrade string            `json:"current_grade"`
	NewStage     string            `json:"new_stage" validate:"required"`
	NewLesson    int               `json:"new_lesson" validate:"required,min=10,max=200"`
	TotalSheets  int               `json:"total_sheets" validate:"min=0"`
	Advanced     bool              `json:"advanced"`
	Status       models.StatusCode `json:"status" validate:"required,oneof=current new new_multi new_former new_transfer absent absent_graduate absent_transfer"`
}

// ToModel converts the request into the reconciler's row type.
func (r EditableRowRequest) ToModel() models.EditableRow {
	return models.EditableRow{
		StudentID:    r.StudentID,
		Subject:      r.Subject,
		Type:         r.Type,
		CurrentGrade: r.CurrentGrade,
		NewStage:     r.NewStage,
		NewLesson:    r.NewLesson,
		TotalSheets:  r.TotalSheets,
		Advanced:     r.Advanced,
		Status:       r.Status,
	}
}

// CommitReportRequest captures POST /reports/commit. Fingerprint is the
// value returned with the editable view; Month defaults to the current one.
type CommitReportRequest struct {
	Fingerprint string               `json:"fingerprint"`
	Month       string               `json:"month" validate:"omitempty,datetime=2006-01"`
	Rows        []EditableRowRequest `json:"rows" validate:"required,min=1,dive"`
}

// PipelineRunResponse is returned after enqueueing a normalization run.
type PipelineRunResponse struct {
	ID     string           `json:"id"`
	Status models.RunStatus `json:"status"`
}
