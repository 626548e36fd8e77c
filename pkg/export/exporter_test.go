package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Date", "Student", "Status"},
		Rows: []map[string]string{
			{"Date": "2026-03-10", "Student": "Alice Kim", "Status": "absent"},
			{"Date": "2026-03-10", "Student": "Bob Tan"},
		},
	}
}

func TestCSVRenderPrefixesBOMAndAlignsCells(t *testing.T) {
	payload, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	body := string(payload)
	require.True(t, strings.HasPrefix(body, utf8BOM))
	lines := strings.Split(strings.TrimRight(strings.TrimPrefix(body, utf8BOM), "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Student,Status", lines[0])
	// missing Status cell stays empty, keeping the row aligned
	assert.Equal(t, "2026-03-10,Bob Tan,", lines[2])
}

func TestCSVRenderWithoutBOM(t *testing.T) {
	exporter := &CSVExporter{}
	payload, err := exporter.Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "Date,Student,Status"))
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFRenderProducesDocument(t *testing.T) {
	exporter := NewPDFExporter()
	exporter.now = func() time.Time {
		return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	}

	payload, err := exporter.Render(sampleDataset(), "Attendance")
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestPDFRenderRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "Attendance")
	require.Error(t, err)
}
