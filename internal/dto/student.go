package dto

import "github.com/noah-isme/kumon-analytics/internal/models"

// RegisterStudentRequest captures POST /students. Dates use YYYY-MM-DD.
type RegisterStudentRequest struct {
	KumonID       string            `json:"kumon_id" validate:"required"`
	Name          string            `json:"name" validate:"required"`
	Gender        string            `json:"gender" validate:"required,oneof=male female"`
	BirthDate     string            `json:"birth_date" validate:"required,datetime=2006-01-02"`
	EnrollDate    string            `json:"enroll_date" validate:"omitempty,datetime=2006-01-02"`
	CurrentGrade  string            `json:"current_grade" validate:"required"`
	Subject       string            `json:"subject" validate:"required"`
	CurrentStage  string            `json:"current_stage" validate:"required"`
	EnrollDateSub string            `json:"enroll_date_sub" validate:"required,datetime=2006-01-02"`
	Type          string            `json:"type" validate:"required,oneof=connect paper"`
	Status        models.StatusCode `json:"status" validate:"required,oneof=new new_multi new_former"`
}

// ListStudentsQuery binds GET /students query parameters.
type ListStudentsQuery struct {
	Subject  string `form:"subject"`
	All      bool   `form:"all"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
