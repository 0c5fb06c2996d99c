package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// WriteWorkbook writes sheets into one .xlsx file, one worksheet each, in
// order. The first sheet is active.
func WriteWorkbook(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("workbook %s has no sheets", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	keepDefault := false
	for _, sh := range sheets {
		if _, err := f.NewSheet(sh.Name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sh.Name, err)
		}
		if sh.Name == defaultSheet {
			keepDefault = true
		}
		if err := writeSheet(f, sh, headerStyle); err != nil {
			return err
		}
	}

	// NewFile always starts with Sheet1
	if !keepDefault {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("failed to delete default sheet: %w", err)
		}
	}
	index, err := f.GetSheetIndex(sheets[0].Name)
	if err != nil {
		return fmt.Errorf("failed to find sheet %s: %w", sheets[0].Name, err)
	}
	f.SetActiveSheet(index)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sh Sheet, headerStyle int) error {
	for col, header := range sh.Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sh.Name, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s!%s: %w", sh.Name, cell, err)
		}
		if err := f.SetCellStyle(sh.Name, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, width := range sh.Widths {
		if i >= len(sh.Header) || width <= 0 {
			continue
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sh.Name, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, row := range sh.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2) // row 1 is the header
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v
		}
		if err := f.SetSheetRow(sh.Name, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", r+2, sh.Name, err)
		}
	}

	if err := f.SetPanes(sh.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header of %s: %w", sh.Name, err)
	}
	return nil
}
