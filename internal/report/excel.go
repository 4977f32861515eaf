package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteWorkbook exports the report to an xlsx workbook, one sheet per
// tabled section plus a cover sheet with the report metadata.
func (r Report) WriteWorkbook(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	cover := "Cover"
	if err := f.SetSheetName("Sheet1", cover); err != nil {
		return fmt.Errorf("rename cover sheet: %w", err)
	}
	coverRows := [][]interface{}{
		{"Title", r.Title},
		{"Report ID", r.ID.String()},
		{"Author", r.Author},
		{"Generated", r.GeneratedAt.String()},
	}
	if r.Draft {
		coverRows = append(coverRows, []interface{}{"Status", "DRAFT - NOT FOR SUBMISSION"})
	}
	for i, row := range coverRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(cover, cell, &row); err != nil {
			return fmt.Errorf("write cover row: %w", err)
		}
	}

	for _, s := range r.Sections {
		if s.Table == nil {
			continue
		}
		sheet := sheetName(s.Heading)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		header := make([]interface{}, len(s.Table.Columns))
		for i, c := range s.Table.Columns {
			header[i] = c
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}

		for i, row := range s.Table.Rows {
			cells := make([]interface{}, len(row))
			for j, c := range row {
				cells[j] = c
			}
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// sheetName truncates a heading to Excel's 31-character sheet name limit.
func sheetName(heading string) string {
	if len(heading) > 31 {
		return heading[:31]
	}
	return heading
}
