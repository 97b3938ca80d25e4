package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterPadsShortRows(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"name", "stage", "lesson"},
		Rows:    [][]string{{"ANA", "B", "60"}, {"BIA"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "name,stage,lesson\nANA,B,60\nBIA,,\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRendersDocument(t *testing.T) {
	out, err := NewPDFExporter().Render(Dataset{
		Title:   "Roster",
		Headers: []string{"name", "subject"},
		Rows:    [][]string{{"ANA", "MATH"}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
