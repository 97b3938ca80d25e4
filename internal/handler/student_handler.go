package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kumon-analytics/internal/dto"
	"github.com/noah-isme/kumon-analytics/internal/middleware"
	"github.com/noah-isme/kumon-analytics/internal/models"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
	"github.com/noah-isme/kumon-analytics/pkg/response"
)

type rosterService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.RosterEntry, *models.Pagination, error)
	Register(ctx context.Context, req dto.RegisterStudentRequest) (*models.Student, error)
}

// StudentHandler exposes the roster endpoints.
type StudentHandler struct {
	service rosterService
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(svc rosterService) *StudentHandler {
	return &StudentHandler{service: svc}
}

// List godoc
// @Summary List students
// @Description Active roster sorted by name; all=true includes inactive students
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param subject query string false "Subject filter"
// @Param all query bool false "Include inactive students"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var query dto.ListStudentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	entries, pagination, err := h.service.List(c.Request.Context(), models.StudentFilter{
		Subject:    query.Subject,
		ActiveOnly: !query.All,
		Page:       query.Page,
		PageSize:   query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination, middleware.ExtractMeta(c))
}

// Register godoc
// @Summary Register student
// @Description Append a new student to the roster
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RegisterStudentRequest true "Student"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Register(c *gin.Context) {
	var req dto.RegisterStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	student, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}
