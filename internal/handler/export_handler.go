package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/internal/service"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
	"github.com/noah-isme/kumon-analytics/pkg/response"
)

type exportService interface {
	Roster(ctx context.Context, subject, format string) (*service.ExportFile, error)
	MonthlyReport(ctx context.Context, filter models.ReportFilter, format string) (*service.ExportFile, error)
}

// ExportHandler streams CSV and PDF documents.
type ExportHandler struct {
	service exportService
	loc     *time.Location
	now     func() time.Time
}

// NewExportHandler constructs the handler. Months are read in loc.
func NewExportHandler(svc exportService, loc *time.Location) *ExportHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportHandler{service: svc, loc: loc, now: time.Now}
}

// Roster godoc
// @Summary Export active roster
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param subject query string false "Subject filter"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Router /exports/roster [get]
func (h *ExportHandler) Roster(c *gin.Context) {
	file, err := h.service.Roster(c.Request.Context(), c.Query("subject"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Data)
}

// Report godoc
// @Summary Export monthly report
// @Description Facts reported in month (YYYY-MM, default current month)
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param month query string false "YYYY-MM"
// @Param subject query string false "Subject filter"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /exports/reports [get]
func (h *ExportHandler) Report(c *gin.Context) {
	month := h.now().In(h.loc)
	if raw := c.Query("month"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01", raw, h.loc)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month must be formatted YYYY-MM"))
			return
		}
		month = parsed
	}
	file, err := h.service.MonthlyReport(c.Request.Context(), models.ReportFilter{Month: month, Subject: c.Query("subject")}, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Data)
}
