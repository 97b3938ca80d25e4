package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/pkg/response"
)

// CatalogHandler serves the editor's reference data.
type CatalogHandler struct {
	catalog models.Catalog
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(catalog models.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Get godoc
// @Summary Reference data
// @Description Subjects, stages per subject, grades, status codes and lesson bounds
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog [get]
func (h *CatalogHandler) Get(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.catalog, nil)
}
