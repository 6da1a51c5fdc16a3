package validation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/roster-importer/internal/membership"
	"github.com/ginjaninja78/roster-importer/internal/shiftcode"
	"github.com/ginjaninja78/roster-importer/internal/types"
)

var threeField = []string{"Name", "Date", "Shift"}
var fiveField = []string{"姓名", "員工代碼", "年月", "日", "班別"}

// table builds a table whose first data row is source row 2.
func table(headers []string, rows ...[]string) *types.Table {
	t := &types.Table{Headers: headers, Source: "test.csv"}
	for i, cells := range rows {
		raw := types.RawRow{Index: i + 2}
		for _, c := range cells {
			raw.Cells = append(raw.Cells, types.TextValue(c))
		}
		t.Rows = append(t.Rows, raw)
	}
	return t
}

func newContext(group *membership.Set, opts Options) Context {
	if group == nil {
		group = membership.NewSet(membership.AllGroup, nil, opts.StripNameSpaces)
	}
	return Context{
		Membership: group,
		Registry:   shiftcode.NewRegistry("A", "B", "C", "FC", "P1s", "OFF"),
		Options:    opts,
	}
}

func mustValidate(t *testing.T, vctx Context, tbl *types.Table) *types.ValidationReport {
	t.Helper()
	report, err := Validate(context.Background(), vctx, tbl)
	require.NoError(t, err)
	require.NotNil(t, report)
	return report
}

func joined(report *types.ValidationReport) string {
	return strings.Join(report.Messages, "\n")
}

func TestValidateCleanBatch(t *testing.T) {
	report := mustValidate(t, newContext(nil, DefaultOptions()), table(threeField,
		[]string{"X", "2025-01-01", "A"},
		[]string{"Y", "2025-01-01", "B"},
	))

	assert.Equal(t, types.StatusOK, report.OverallStatus)
	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 2, report.ValidCount)
	assert.Zero(t, report.WarningCount)
	assert.Zero(t, report.ErrorCount)
	assert.Empty(t, report.Messages)
	assert.Len(t, report.Records, 2)
	assert.Equal(t, map[string]int{"X": 1, "Y": 1}, report.PerPersonShiftCounts)
	assert.Equal(t, types.FormatThreeField, report.Mapping.Format)
}

func TestValidateDuplicate(t *testing.T) {
	report := mustValidate(t, newContext(nil, DefaultOptions()), table(threeField,
		[]string{"A", "2025-01-01", "P1s"},
		[]string{"A", "2025-01-01", "P1s"},
		[]string{"B", "2025-01-01", "P1s"},
	))

	require.Len(t, report.Duplicates, 1)
	assert.Equal(t, types.Duplicate{
		EmployeeName: "A", Date: "2025-01-01", FirstRow: 2, Row: 3, Label: "P1s",
	}, report.Duplicates[0])

	assert.Equal(t, 2, report.ValidCount)
	assert.Equal(t, 1, report.WarningCount)
	assert.Len(t, report.Records, 2)
	assert.Equal(t, types.StatusWarning, report.OverallStatus)
	assert.Contains(t, joined(report), "row 3: duplicate P1s for A on 2025-01-01 (same as row 2)")
}

func TestValidateMultipleAssignments(t *testing.T) {
	report := mustValidate(t, newContext(nil, DefaultOptions()), table(threeField,
		[]string{"N", "2025-01-01", "A"},
		[]string{"N", "2025-01-01", "B"},
		[]string{"M", "2025-01-01", "A"},
	))

	require.Len(t, report.Duplicates, 1)
	assert.Equal(t, "A/B", report.Duplicates[0].Label)
	assert.True(t, report.Duplicates[0].Conflict)

	assert.Equal(t, 3, report.ValidCount)
	assert.Equal(t, 1, report.WarningCount)
	assert.Contains(t, joined(report), "multiple assignments A/B")

	// The later row replaces the earlier record.
	require.Len(t, report.Records, 2)
	assert.Equal(t, "B", report.Records[0].CanonicalShiftCode)
	assert.Equal(t, 3, report.Records[0].RowIndex)
}

func TestValidateMembershipSentinel(t *testing.T) {
	vctx := newContext(nil, DefaultOptions())
	report := mustValidate(t, vctx, table(threeField,
		[]string{"X", "2025-01-01", "A"},
		[]string{"Y", "2025-01-01", "A"},
		[]string{"Z", "2025-01-01", "A"},
	))

	assert.Equal(t, 3, report.ValidCount)
	assert.Zero(t, report.SkippedCount)
	assert.Equal(t, []string{"X", "Y", "Z"}, vctx.Membership.Names())
}

func TestValidateMembershipGroupSkipsSilently(t *testing.T) {
	group := membership.NewSet("G1", []string{"X"}, false)
	report := mustValidate(t, newContext(group, DefaultOptions()), table(threeField,
		[]string{"X", "2025-01-01", "A"},
		[]string{"Y", "2025-01-01", "A"},
		[]string{"Z", "2025-01-01", "A"},
	))

	assert.Equal(t, 1, report.ValidCount)
	assert.Equal(t, 2, report.SkippedCount)
	assert.Zero(t, report.ErrorCount)
	assert.NotContains(t, joined(report), "Y")
	assert.NotContains(t, joined(report), "Z")

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, types.SeveritySkipped, report.Outcomes[1].Severity)
	assert.Empty(t, report.Outcomes[1].Messages)
}

func rowErrorsTable() *types.Table {
	return table(fiveField,
		[]string{"", "001", "2025-01", "1", "A"},
		[]string{"X", "001", "2025-13", "1", "A"},
		[]string{"X", "001", "2025-01", "2", ""},
		[]string{"X", "001", "2025-01", "3", "ZZ"},
		[]string{"Y", "002", "114-01", "4", "A"},
	)
}

func TestValidateRowErrors(t *testing.T) {
	report := mustValidate(t, newContext(nil, DefaultOptions()), rowErrorsTable())

	assert.Equal(t, types.FormatFiveField, report.Mapping.Format)
	assert.Equal(t, types.StatusError, report.OverallStatus)
	assert.Equal(t, 4, report.ErrorCount)
	assert.Equal(t, 1, report.ValidCount)

	msgs := joined(report)
	assert.Contains(t, msgs, "row 2: blank name")
	assert.Contains(t, msgs, "row 3: unparseable date")
	assert.Contains(t, msgs, "row 4: blank shift")
	assert.Contains(t, msgs, `row 5: unknown shift code "ZZ"`)

	require.Len(t, report.Records, 1)
	assert.Equal(t, "Y", report.Records[0].EmployeeName)
	assert.Equal(t, "002", report.Records[0].EmployeeCode)
	assert.Equal(t, "2025-01-04", report.Records[0].DateKey())
}

func TestValidateForce(t *testing.T) {
	opts := DefaultOptions()
	opts.Force = true
	vctx := newContext(nil, opts)

	report := mustValidate(t, vctx, rowErrorsTable())

	// Blank name and bad date stay errors under force.
	assert.Equal(t, 2, report.ErrorCount)
	assert.Equal(t, 3, report.ValidCount)
	assert.Equal(t, []string{"ZZ"}, vctx.Registry.Added())

	msgs := joined(report)
	assert.Contains(t, msgs, "row 4: blank shift for X on 2025-01-02 imported as placeholder")
	assert.Contains(t, msgs, `row 5: unknown shift code "ZZ" registered`)

	require.Len(t, report.Records, 3)
	assert.True(t, report.Records[0].IsBlank)
	assert.Equal(t, "ZZ", report.Records[1].ImportCode)
}

func TestValidateForceKeepsUnmappedCompound(t *testing.T) {
	opts := DefaultOptions()
	opts.Force = true
	vctx := newContext(nil, opts)

	report := mustValidate(t, vctx, table(threeField,
		[]string{"X", "2025-01-01", "QQ/支援"},
		[]string{"X", "2025-01-02", "QQ/支援"},
		[]string{"Y", "2025-01-01", "FC/工程"},
		[]string{"Y", "2025-01-02", "A/支援"},
	))

	assert.Equal(t, []string{"QQ/支援"}, vctx.Registry.Added())
	require.Len(t, report.Records, 4)

	assert.Equal(t, "QQ", report.Records[0].CanonicalShiftCode)
	assert.Equal(t, "QQ/支援", report.Records[0].ImportCode)
	assert.True(t, report.Records[0].IsCompound)
	assert.Equal(t, "支援", report.Records[0].CompoundSuffix)
	assert.Equal(t, "QQ/支援", report.Records[1].ImportCode)

	assert.Equal(t, "FC", report.Records[2].ImportCode)
	assert.Equal(t, "A", report.Records[3].ImportCode)
}

func TestValidateAllowBlankShift(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowBlankShift = true

	report := mustValidate(t, newContext(nil, opts), table(threeField,
		[]string{"X", "2025-01-01", "nan"},
		[]string{"Y", "2025-01-01", "A"},
		[]string{"Z", "2025-01-01", "A"},
	))

	assert.Equal(t, types.StatusOK, report.OverallStatus)
	assert.Equal(t, 3, report.ValidCount)
	assert.Equal(t, []string{"X"}, report.Balance.PartTime)
}

func TestValidateSingleStaffing(t *testing.T) {
	report := mustValidate(t, newContext(nil, DefaultOptions()), table(threeField,
		[]string{"X", "2025-01-01", "A"},
		[]string{"Y", "2025-01-01", "OFF"},
		[]string{"X", "2025-01-02", "A"},
		[]string{"X", "2025-01-03", "A"},
		[]string{"Y", "2025-01-03", "B"},
	))

	// A leave code still puts the employee on the day.
	assert.Equal(t, []string{"2025-01-02"}, report.SingleStaffingDates)
	assert.Contains(t, joined(report), "row 4: single-staffing on 2025-01-02 (only X)")
	assert.NotContains(t, joined(report), "single-staffing on 2025-01-01")
	assert.Equal(t, types.StatusWarning, report.OverallStatus)
}

func TestValidateRejectsNullMarkerNames(t *testing.T) {
	for _, marker := range []string{"nan", "None", "null", "<NA>"} {
		t.Run(marker, func(t *testing.T) {
			vctx := newContext(nil, DefaultOptions())
			report := mustValidate(t, vctx, table(threeField,
				[]string{marker, "2025-01-01", "A"},
				[]string{"Amy", "2025-01-01", "B"},
				[]string{"Ben", "2025-01-01", "A"},
			))

			assert.Equal(t, 1, report.ErrorCount)
			assert.Equal(t, 2, report.ValidCount)
			assert.Contains(t, joined(report), "row 2: blank name")
			require.Len(t, report.Records, 2)
			assert.Equal(t, "Amy", report.Records[0].EmployeeName)
			assert.Equal(t, []string{"Amy", "Ben"}, vctx.Membership.Names())
		})
	}
}

func TestValidateBalanceFolded(t *testing.T) {
	rows := [][]string{{"B", "2025-01-01", "A"}}
	for _, d := range []string{"01", "02", "03", "04", "05"} {
		rows = append(rows, []string{"A", "2025-01-" + d, "A"})
	}

	report := mustValidate(t, newContext(nil, DefaultOptions()), table(threeField, rows...))

	require.NotNil(t, report.Balance)
	assert.False(t, report.Balance.IsValid)
	assert.Equal(t, 4, report.Balance.Spread)
	assert.Equal(t, types.StatusError, report.OverallStatus)
	assert.Equal(t, 1, report.ErrorCount)
	assert.Contains(t, joined(report), "balance: shift counts spread 4")
}

func TestValidateHeaderOnDataRow(t *testing.T) {
	report := mustValidate(t, newContext(nil, DefaultOptions()), table(
		[]string{"2024年10月班表", "Column_2", "Column_3"},
		[]string{"姓名", "日期", "班別"},
		[]string{"X", "2025-01-01", "A"},
		[]string{"Y", "2025-01-01", "A"},
	))

	assert.Equal(t, 1, report.Mapping.HeaderOffset)
	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 2, report.ValidCount)
	assert.Equal(t, 3, report.Records[0].RowIndex)
}

func TestValidateStripNameSpaces(t *testing.T) {
	opts := DefaultOptions()
	opts.StripNameSpaces = true
	group := membership.NewSet("perf", []string{"賴 秉 宏"}, true)

	report := mustValidate(t, newContext(group, opts), table(threeField,
		[]string{"賴秉宏", "2025-01-01", "A"},
		[]string{"賴  秉 宏", "2025-01-02", "A"},
	))

	assert.Equal(t, 2, report.ValidCount)
	assert.Equal(t, "賴秉宏", report.Records[1].EmployeeName)
}

func TestValidateSchemaError(t *testing.T) {
	report, err := Validate(context.Background(), newContext(nil, DefaultOptions()),
		table([]string{"foo", "bar"}, []string{"1", "2"}))

	var schemaErr *types.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.NotNil(t, report)
	assert.Equal(t, types.StatusError, report.OverallStatus)
	assert.Zero(t, report.TotalRows)
}

type stubLister []string

func (s stubLister) ListKnownCodes(context.Context) ([]string, error) { return s, nil }

func TestNewContext(t *testing.T) {
	provider := membership.NewConfigProvider(map[string][]string{"G1": {"X"}})

	vctx, err := NewContext(context.Background(), provider, stubLister{"A", "B"}, "G1", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "G1", vctx.Membership.Group())
	assert.True(t, vctx.Registry.Known("B"))

	_, err = NewContext(context.Background(), provider, stubLister{}, "missing", DefaultOptions())
	assert.ErrorIs(t, err, membership.ErrUnknownGroup)
}

func TestFormatReportAndErrorLog(t *testing.T) {
	report := mustValidate(t, newContext(nil, DefaultOptions()), rowErrorsTable())

	text := FormatReport(report)
	assert.Contains(t, text, "Validation status: ERROR")
	assert.Contains(t, text, "Y: 1")
	assert.Contains(t, text, "1. row 2: blank name")

	path := filepath.Join(t.TempDir(), "errors.log")
	require.NoError(t, WriteErrorLog(report, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, text, string(data))
}
