package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/roster-importer/internal/membership"
	"github.com/ginjaninja78/roster-importer/internal/store"
	"github.com/ginjaninja78/roster-importer/internal/types"
	"github.com/ginjaninja78/roster-importer/internal/validation"
)

func roster(rows ...[]string) *types.Table {
	t := &types.Table{Headers: []string{"Name", "Date", "Shift"}, Source: "roster.csv"}
	for i, cells := range rows {
		raw := types.RawRow{Index: i + 2}
		for _, c := range cells {
			raw.Cells = append(raw.Cells, types.TextValue(c))
		}
		t.Rows = append(t.Rows, raw)
	}
	return t
}

// tenRows is five employees over two days; two rows carry unknown codes.
func tenRows(unknownA, unknownB string) *types.Table {
	return roster(
		[]string{"Amy", "2025-01-01", "A"},
		[]string{"Ben", "2025-01-01", "B"},
		[]string{"Cal", "2025-01-01", "C"},
		[]string{"Dan", "2025-01-01", "A"},
		[]string{"Eve", "2025-01-01", unknownA},
		[]string{"Amy", "2025-01-02", "B"},
		[]string{"Ben", "2025-01-02", "C"},
		[]string{"Cal", "2025-01-02", "A"},
		[]string{"Dan", "2025-01-02", "B"},
		[]string{"Eve", "2025-01-02", unknownB},
	)
}

func TestRunRefusesWithoutForce(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore("A", "B", "C")
	p := New(m, nil, validation.DefaultOptions(), nil, nil)

	result, err := p.Run(ctx, Request{Table: tenRows("Z1", "Z2")})
	require.ErrorIs(t, err, ErrImportRefused)
	require.NotNil(t, result.Report)
	assert.Equal(t, types.StatusError, result.Report.OverallStatus)
	assert.Equal(t, 2, result.Report.ErrorCount)
	assert.Nil(t, result.Import)

	assert.Empty(t, m.Schedules())
	assert.Empty(t, m.ImportLogs())
	assert.Len(t, m.ShiftTypes(), 3)
}

func TestRunForcedImportRegistersCodes(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore("A", "B", "C")
	p := New(m, nil, validation.DefaultOptions(), nil, nil)

	result, err := p.Run(ctx, Request{
		Table:    tenRows("Z1", "Z2"),
		Force:    true,
		Importer: "admin",
		Filename: "roster.csv",
	})
	require.NoError(t, err)

	assert.Equal(t, 10, result.Import.CreatedCount)
	assert.Equal(t, []string{"Z1", "Z2"}, result.Stats.CodesRegistered)
	assert.Len(t, m.ShiftTypes(), 5)
	assert.Len(t, m.Schedules(), 10)

	logs := m.ImportLogs()
	require.Len(t, logs, 1)
	assert.True(t, logs[0].ForceImport)
	assert.Equal(t, "admin", logs[0].Importer)
	assert.Equal(t, "current", logs[0].DataVersion)
	assert.Equal(t, 10, logs[0].RecordsImported)
	assert.Equal(t, result.Import.BatchID, logs[0].BatchID)
	assert.Equal(t, types.StatusWarning, logs[0].ValidationResult)
}

func TestRunFiltersByGroup(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore("A", "B", "C")
	provider := membership.NewConfigProvider(map[string][]string{"ward": {"Amy", "Ben"}})
	p := New(m, provider, validation.DefaultOptions(), nil, nil)

	result, err := p.Run(ctx, Request{Table: tenRows("A", "C"), Group: "ward"})
	require.NoError(t, err)

	assert.Equal(t, 6, result.Report.SkippedCount)
	assert.Equal(t, 4, result.Import.CreatedCount)
	assert.Len(t, m.Employees(), 2)
	assert.Equal(t, "ward", m.ImportLogs()[0].TargetGroup)
}

func TestRunUnknownGroupFails(t *testing.T) {
	m := store.NewMemoryStore("A")
	p := New(m, membership.NewConfigProvider(nil), validation.DefaultOptions(), nil, nil)

	_, err := p.Run(context.Background(), Request{Table: tenRows("A", "B"), Group: "missing"})
	require.ErrorIs(t, err, membership.ErrUnknownGroup)
}

func TestRunSchemaError(t *testing.T) {
	m := store.NewMemoryStore("A")
	p := New(m, nil, validation.DefaultOptions(), nil, nil)

	tbl := &types.Table{Headers: []string{"foo", "bar"}, Rows: []types.RawRow{
		{Index: 2, Cells: []types.Value{types.TextValue("x"), types.TextValue("y")}},
	}}
	result, err := p.Run(context.Background(), Request{Table: tbl, Force: true})

	var schemaErr *types.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.NotNil(t, result.Report)
	assert.Equal(t, types.StatusError, result.Report.OverallStatus)
	assert.Empty(t, m.ImportLogs())
}

func TestValidateWritesNothing(t *testing.T) {
	m := store.NewMemoryStore("A", "B", "C")
	p := New(m, nil, validation.DefaultOptions(), nil, nil)

	report, err := p.Validate(context.Background(), Request{Table: tenRows("Z1", "Z2"), Force: true})
	require.NoError(t, err)
	assert.Equal(t, types.StatusWarning, report.OverallStatus)
	assert.Len(t, report.Records, 10)
	assert.Len(t, m.ShiftTypes(), 3)
	assert.Zero(t, m.Commits())
}

func TestRunAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(filepath.Join(t.TempDir(), "roster.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SeedShiftTypes(ctx, []types.ShiftType{
		{Code: "A", Name: "A班", StartTime: "08:00", EndTime: "16:00", Color: "#28a745"},
		{Code: "B", Name: "B班", StartTime: "16:00", EndTime: "00:00", Color: "#ffc107"},
		{Code: "C", Name: "C班", StartTime: "00:00", EndTime: "08:00", Color: "#dc3545"},
	})
	require.NoError(t, err)

	run := func() *Result {
		session, err := s.Begin(ctx)
		require.NoError(t, err)
		defer session.Close()

		result, err := New(session, nil, validation.DefaultOptions(), nil, nil).
			Run(ctx, Request{Table: tenRows("Z1", "Z2"), Force: true})
		require.NoError(t, err)
		return result
	}

	first := run()
	assert.Equal(t, 10, first.Import.CreatedCount)

	second := run()
	assert.Zero(t, second.Import.CreatedCount)
	assert.Equal(t, 10, second.Import.SkippedCount)
	assert.Empty(t, second.Stats.CodesRegistered)

	codes, err := s.ListKnownCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "Z1", "Z2"}, codes)

	logs, err := s.ImportLogs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}
