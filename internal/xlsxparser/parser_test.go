package xlsxparser

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/roster-importer/internal/config"
	"github.com/ginjaninja78/roster-importer/internal/types"
)

// writeWorkbook builds a five-field roster with a native date in the
// second data row and saves it under a temp dir.
func writeWorkbook(t *testing.T, sheet string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}

	rows := [][]interface{}{
		{"二月班表"},
		{"姓名", "員工代碼", "年月", "日", "班別"},
		{"賴秉宏", "8652", 202501, 5, "P1s"},
		{},
		{"王小明", "8653", "114-01", 6, "OFF"},
	}
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, axis, &row))
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(sheet, "G3", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.SetCellStyle(sheet, "G3", "G3", dateStyle))

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParseClassifiesCells(t *testing.T) {
	path := writeWorkbook(t, "Sheet1")

	table, err := Parse(path, config.CSVSettings{HeaderRow: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"姓名", "員工代碼", "年月", "日", "班別"}, table.Headers)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, 3, first.Index)
	assert.Equal(t, types.KindText, first.Cell(0).Kind)
	assert.Equal(t, types.Value{Kind: types.KindNumber, Text: "202501"}, first.Cell(2))
	assert.Equal(t, "5", first.Cell(3).Text)
	assert.Equal(t, types.KindBlank, first.Cell(5).Kind)

	date := first.Cell(6)
	assert.Equal(t, types.KindTime, date.Kind)
	assert.Equal(t, "2025-01-05", date.Text)

	// The empty fourth row is dropped; numbering follows the sheet.
	assert.Equal(t, 5, table.Rows[1].Index)
	assert.Equal(t, "114-01", table.Rows[1].Cell(2).Text)
}

func TestParseSelectsSheet(t *testing.T) {
	path := writeWorkbook(t, "Roster")

	table, err := Parse(path, config.CSVSettings{HeaderRow: 2, Sheet: "Roster"})
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)

	_, err = Parse(path, config.CSVSettings{HeaderRow: 2, Sheet: "Missing"})
	assert.Error(t, err)
}

func TestParseReader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Name", "", "Shift"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Amy", "x", "A"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := ParseReader(&buf, "upload.xlsx", config.CSVSettings{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Column_2", "Shift"}, table.Headers)
	assert.Equal(t, "upload.xlsx", table.Source)
	assert.Equal(t, 2, table.Rows[0].Index)
}

func TestIsDateFormat(t *testing.T) {
	custom := func(s string) *string { return &s }

	assert.True(t, isDateFormat(14, nil))
	assert.True(t, isDateFormat(22, nil))
	assert.True(t, isDateFormat(57, nil))
	assert.False(t, isDateFormat(0, nil))
	assert.False(t, isDateFormat(2, nil))
	assert.True(t, isDateFormat(0, custom("yyyy/mm/dd")))
	assert.False(t, isDateFormat(0, custom(`0.00"days"`)))
	assert.False(t, isDateFormat(0, custom("[Red]0.00")))
}
