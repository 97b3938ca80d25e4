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

type reportService interface {
	EditableView(ctx context.Context, subject string) (*models.EditableView, error)
	CommitCycle(ctx context.Context, req dto.CommitReportRequest, actor string) (*models.CommitResult, error)
}

// ReportHandler serves the monthly editor.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Editable godoc
// @Summary Monthly editor grid
// @Description One row per active student with the last reported stage and lesson
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param subject query string false "Subject filter"
// @Success 200 {object} response.Envelope
// @Router /reports/editable [get]
func (h *ReportHandler) Editable(c *gin.Context) {
	view, err := h.service.EditableView(c.Request.Context(), c.Query("subject"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// Commit godoc
// @Summary Commit monthly report
// @Description Append one fact per edited row and update the student snapshot
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CommitReportRequest true "Edited rows"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /reports/commit [post]
func (h *ReportHandler) Commit(c *gin.Context) {
	var req dto.CommitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid commit payload"))
		return
	}
	result, err := h.service.CommitCycle(c.Request.Context(), req, operatorName(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.SnapshotDrift {
		middleware.SetMeta(c, "warning", "student snapshot changed since the editor was loaded")
	}
	response.JSON(c, http.StatusCreated, result, nil, middleware.ExtractMeta(c))
}
