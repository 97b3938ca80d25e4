package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kumon-analytics/internal/dto"
	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/pkg/response"
)

type pipelineRunService interface {
	Submit(ctx context.Context, actor string) (*models.PipelineRun, error)
	Get(ctx context.Context, id string) (*models.PipelineRun, error)
}

// PipelineHandler triggers and tracks normalization runs.
type PipelineHandler struct {
	service pipelineRunService
}

// NewPipelineHandler constructs the handler.
func NewPipelineHandler(svc pipelineRunService) *PipelineHandler {
	return &PipelineHandler{service: svc}
}

// Submit godoc
// @Summary Start normalization
// @Description Queue a rebuild of the star schema from the raw sheet
// @Tags Pipeline
// @Produce json
// @Security BearerAuth
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /pipeline/runs [post]
func (h *PipelineHandler) Submit(c *gin.Context) {
	run, err := h.service.Submit(c.Request.Context(), operatorName(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, dto.PipelineRunResponse{ID: run.ID, Status: run.Status}, nil)
}

// Get godoc
// @Summary Normalization run status
// @Tags Pipeline
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /pipeline/runs/{id} [get]
func (h *PipelineHandler) Get(c *gin.Context) {
	run, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}
