package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Grid is a titled table whose rows line up with Headers.
type Grid struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func (g Grid) validate(format string) error {
	if len(g.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	for i, row := range g.Rows {
		if len(row) > len(g.Headers) {
			return fmt.Errorf("%s row %d has %d cells for %d headers", format, i+1, len(row), len(g.Headers))
		}
	}
	return nil
}

func (g Grid) cell(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

// CSVExporter renders grids as CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV bytes. The title is not written.
func (e *CSVExporter) Render(grid Grid) ([]byte, error) {
	if err := grid.validate("csv"); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(grid.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range grid.Rows {
		record := make([]string, len(grid.Headers))
		for i := range record {
			record[i] = grid.cell(row, i)
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
