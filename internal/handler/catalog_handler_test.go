package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

func TestCatalogHandlerGet(t *testing.T) {
	h := NewCatalogHandler(models.DefaultCatalog())

	c, w := newGinContext(http.MethodGet, "/catalog", nil)
	h.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "MATH")
	assert.Contains(t, w.Body.String(), "absent_transfer")
}
