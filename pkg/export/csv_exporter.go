package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

const utf8BOM = "\xEF\xBB\xBF"

// CSVExporter renders Dataset records into CSV bytes that open cleanly in
// spreadsheet software.
type CSVExporter struct {
	// IncludeBOM prefixes the output with a UTF-8 byte order mark so
	// Excel detects the encoding of non-ASCII student names.
	IncludeBOM bool
}

// NewCSVExporter builds a CSV exporter with spreadsheet-friendly defaults.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{IncludeBOM: true}
}

// Render produces CSV encoded bytes for the dataset. Cells missing from a
// row are written empty, keeping every record aligned with the header.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	if e.IncludeBOM {
		buf.WriteString(utf8BOM)
	}
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
