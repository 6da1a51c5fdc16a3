// =============================================================================
// Roster Importer - CSV Parser Module
// =============================================================================
//
// This module reads delimited roster exports into a types.Table. It handles:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - Title rows above the header row
//   - Legacy encodings (Big5, UTF-16) and byte-order marks
//   - Quoted fields and ragged rows
//
// ROW NUMBERING:
//   Every data row carries the 1-based line on which it starts, so the
//   header row of a plain export is row 1 and the first data row is row 2.
//   Validation messages quote these numbers.
//
// CUSTOMIZATION:
//   - Per-group settings live in the group files (csv_settings)
//   - Any encoding name known to the WHATWG index is accepted
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/roster-importer/internal/config"
	"github.com/ginjaninja78/roster-importer/internal/types"
)

// ErrEmptyFile is returned for inputs without any record.
var ErrEmptyFile = errors.New("CSV file is empty")

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the parsed table.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV parsing settings of the file's group.
//
// RETURNS:
//   - The table; Source is set to filePath.
//   - An error if the file cannot be read or parsed.
func Parse(filePath string, settings config.CSVSettings) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseReader(bufio.NewReader(file), filePath, settings)
}

// ParseReader reads CSV data from r.
//
// PARSING PROCESS:
//   1. Decode the configured encoding to UTF-8, honouring any BOM
//   2. Read all records with the configured delimiter
//   3. Take the labels from the header_row-th record, naming empty labels
//      Column_N
//   4. Keep every later non-empty record as a data row
func ParseReader(r io.Reader, source string, settings config.CSVSettings) (*types.Table, error) {
	decoded, err := decode(r, settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(decoded)
	configureReader(csvReader, settings)

	var (
		allRows [][]string
		lines   []int
	)
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := csvReader.FieldPos(0)
		allRows = append(allRows, record)
		lines = append(lines, line)
	}
	if len(allRows) == 0 {
		return nil, ErrEmptyFile
	}

	headerRow := settings.HeaderRow
	if headerRow <= 0 {
		headerRow = 1
	}
	if headerRow > len(allRows) {
		return nil, fmt.Errorf("header_row %d is beyond the last row (%d)", headerRow, len(allRows))
	}

	table := &types.Table{
		Headers: cleanHeaders(allRows[headerRow-1]),
		Source:  source,
	}

	for i := headerRow; i < len(allRows); i++ {
		row := types.RawRow{Index: lines[i], Cells: make([]types.Value, len(allRows[i]))}
		for col, cell := range allRows[i] {
			row.Cells[col] = types.TextValue(strings.TrimSpace(cell))
		}
		if row.IsEmpty() {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// decode wraps r with a decoder for the named encoding. A leading BOM
// always wins over the configured name.
func decode(r io.Reader, name string) (io.Reader, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "utf8" {
		name = "utf-8"
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = []rune(settings.Delimiter)[0]
		} else {
			reader.Comma = ','
		}
	}

	// Roster exports are ragged: trailing empty cells are often dropped.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
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
