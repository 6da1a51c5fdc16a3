// =============================================================================
// Roster Importer - XLSX Roster Parser
// =============================================================================
//
// This module reads roster workbooks into a types.Table. Cells are read raw
// so that native date cells can be told apart from text:
//
//   | cell                         | value                     |
//   |------------------------------|---------------------------|
//   | number with a date format    | KindTime (ExcelDateToTime)|
//   | other number                 | KindNumber ("202501")     |
//   | text                         | KindText                  |
//   | empty                        | KindBlank                 |
//
// CUSTOMIZATION:
//   - csv_settings.sheet selects the worksheet (default: the first one)
//   - csv_settings.header_row skips title rows above the labels
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/roster-importer/internal/config"
	"github.com/ginjaninja78/roster-importer/internal/types"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a roster workbook.
//
// PARAMETERS:
//   - filePath: The path to the .xlsx file.
//   - settings: Sheet and HeaderRow are used; delimiter and encoding are not.
//
// RETURNS:
//   - The table; Source is set to filePath.
//   - An error if the workbook or sheet cannot be read.
func Parse(filePath string, settings config.CSVSettings) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	return ParseReader(file, filePath, settings)
}

// ParseReader reads a roster workbook from r.
func ParseReader(r io.Reader, source string, settings config.CSVSettings) (*types.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return parseFile(f, source, settings)
}

func parseFile(f *excelize.File, source string, settings config.CSVSettings) (*types.Table, error) {
	sheetName := settings.Sheet
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheetName)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}

	headerRow := settings.HeaderRow
	if headerRow <= 0 {
		headerRow = 1
	}
	if headerRow > len(rows) {
		return nil, fmt.Errorf("header_row %d is beyond the last row (%d)", headerRow, len(rows))
	}

	table := &types.Table{
		Headers: cleanHeaders(rows[headerRow-1]),
		Source:  source,
	}

	reader := &cellReader{file: f, sheet: sheetName, dateStyles: make(map[int]bool)}
	for i := headerRow; i < len(rows); i++ {
		row := types.RawRow{Index: i + 1, Cells: make([]types.Value, len(rows[i]))}
		for col, raw := range rows[i] {
			row.Cells[col] = reader.value(col+1, i+1, raw)
		}
		if row.IsEmpty() {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// =============================================================================
// CELL CLASSIFICATION
// =============================================================================

// cellReader classifies raw cell text, caching the date verdict per style.
type cellReader struct {
	file       *excelize.File
	sheet      string
	dateStyles map[int]bool
}

func (r *cellReader) value(col, row int, raw string) types.Value {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.Value{Kind: types.KindBlank}
	}

	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return types.TextValue(raw)
	}

	if r.isDateCell(col, row) {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return types.TimeValue(t)
		}
	}
	return types.NumberValue(raw)
}

func (r *cellReader) isDateCell(col, row int) bool {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	styleID, err := r.file.GetCellStyle(r.sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}

	if isDate, ok := r.dateStyles[styleID]; ok {
		return isDate
	}

	isDate := false
	if style, err := r.file.GetStyle(styleID); err == nil && style != nil {
		isDate = isDateFormat(style.NumFmt, style.CustomNumFmt)
	}
	r.dateStyles[styleID] = isDate
	return isDate
}

// isDateFormat reports whether a number format displays a date. Built-in
// ids 14-22 and 45-47 are the international date/time formats; 27-36 and
// 50-58 are the East Asian date formats.
func isDateFormat(numFmt int, custom *string) bool {
	if custom != nil && *custom != "" {
		return isDatePattern(*custom)
	}
	switch {
	case numFmt >= 14 && numFmt <= 22,
		numFmt >= 27 && numFmt <= 36,
		numFmt >= 45 && numFmt <= 47,
		numFmt >= 50 && numFmt <= 58:
		return true
	}
	return false
}

// isDatePattern looks for date tokens outside quoted literals and brackets.
func isDatePattern(pattern string) bool {
	inQuote, inBracket := false, false
	for _, c := range strings.ToLower(pattern) {
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '[':
			inBracket = true
		case c == ']':
			inBracket = false
		case inBracket:
		case c == 'y' || c == 'd' || c == 'e':
			return true
		}
	}
	return false
}

// cleanHeaders trims labels and names empty ones after their position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}
