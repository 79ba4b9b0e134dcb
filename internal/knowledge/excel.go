package knowledge

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelReader extracts the textual content of a workbook. Rows become
// pipe-separated lines, sheets are separated by a blank line and announced
// with their name, so chunk boundaries tend to fall between sheets.
type ExcelReader struct{}

func NewExcelReader() *ExcelReader {
	return &ExcelReader{}
}

func (r *ExcelReader) Read(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			var cells []string
			for _, cell := range row {
				if trimmed := strings.TrimSpace(cell); trimmed != "" {
					cells = append(cells, trimmed)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " | "))
			}
		}

		if len(lines) > 0 {
			parts = append(parts, fmt.Sprintf("[%s]\n%s", sheet, strings.Join(lines, "\n")))
		}
	}

	return strings.Join(parts, "\n\n"), nil
}
