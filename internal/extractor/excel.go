package extractor

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel flattens every sheet of an XLSX workbook into "header: value"
// rows. Order lists and invoice annexes regularly arrive as spreadsheets.
func extractExcel(path string) (Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	var builder strings.Builder
	var warnings []string

	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			// Unreadable sheet (e.g. protected): skip it, keep the rest.
			warnings = append(warnings, fmt.Sprintf("sheet %s: %v", sheetName, err))
			continue
		}
		if len(rows) < 2 {
			continue
		}

		headers := rows[0]
		for _, row := range rows[1:] {
			var parts []string
			for col, value := range row {
				value = strings.TrimSpace(value)
				if value == "" || col >= len(headers) {
					continue
				}
				header := strings.TrimSpace(headers[col])
				if header == "" {
					parts = append(parts, value)
				} else {
					parts = append(parts, fmt.Sprintf("%s: %s", header, value))
				}
			}
			if len(parts) > 0 {
				builder.WriteString(strings.Join(parts, ", "))
				builder.WriteString("\n")
			}
		}
	}

	return Result{
		Text:     strings.TrimSpace(builder.String()),
		Pages:    len(f.GetSheetList()),
		Method:   "xlsx",
		Warnings: warnings,
	}, nil
}
