package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const defaultSheetName = "Timetable"

// XLSXExporter renders grids into a single-sheet workbook.
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter builds an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{sheet: defaultSheetName}
}

// Render writes the title row, a styled header row and the grid body.
func (e *XLSXExporter) Render(grid Grid) ([]byte, error) {
	if err := grid.validate("xlsx"); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(e.sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(grid.Headers))
	if err := f.SetColWidth(e.sheet, "A", "A", 14); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if len(grid.Headers) > 1 {
		if err := f.SetColWidth(e.sheet, "B", lastCol, 24); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create body style: %w", err)
	}

	row := 1
	if grid.Title != "" {
		if err := f.SetCellValue(e.sheet, "A1", grid.Title); err != nil {
			return nil, fmt.Errorf("write title: %w", err)
		}
		if err := f.MergeCell(e.sheet, "A1", lastCol+"1"); err != nil {
			return nil, fmt.Errorf("merge title: %w", err)
		}
		if err := f.SetCellStyle(e.sheet, "A1", "A1", headerStyle); err != nil {
			return nil, fmt.Errorf("style title: %w", err)
		}
		row++
	}

	if err := f.SetSheetRow(e.sheet, cellName(1, row), &grid.Headers); err != nil {
		return nil, fmt.Errorf("write headers: %w", err)
	}
	if err := f.SetCellStyle(e.sheet, cellName(1, row), cellName(len(grid.Headers), row), headerStyle); err != nil {
		return nil, fmt.Errorf("style headers: %w", err)
	}
	row++

	first := row
	for _, values := range grid.Rows {
		record := make([]string, len(grid.Headers))
		for i := range record {
			record[i] = grid.cell(values, i)
		}
		if err := f.SetSheetRow(e.sheet, cellName(1, row), &record); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}
	if row > first {
		if err := f.SetCellStyle(e.sheet, cellName(1, first), cellName(len(grid.Headers), row-1), bodyStyle); err != nil {
			return nil, fmt.Errorf("style body: %w", err)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
