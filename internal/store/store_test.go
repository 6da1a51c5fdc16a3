package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/roster-importer/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "roster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// exercise runs the same scenario against any Repository.
func exercise(t *testing.T, ctx context.Context, repo Repository) {
	t.Helper()

	_, err := repo.FindEmployeeByName(ctx, "Jane")
	require.ErrorIs(t, err, ErrNotFound)

	emp := &types.Employee{Name: "Jane", Code: "EMP_001"}
	require.NoError(t, repo.CreateEmployee(ctx, emp))
	require.NotZero(t, emp.ID)

	n, err := repo.CountEmployees(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.UpdateEmployeeCode(ctx, emp.ID, "8652"))
	found, err := repo.FindEmployeeByCode(ctx, "8652")
	require.NoError(t, err)
	assert.Equal(t, "Jane", found.Name)

	st := &types.ShiftType{Code: "P1s", Name: "P1早班", StartTime: "06:00", EndTime: "14:00", Color: "#28a745"}
	require.NoError(t, repo.CreateShiftType(ctx, st))
	gotST, err := repo.FindShiftTypeByCode(ctx, "P1s")
	require.NoError(t, err)
	assert.Equal(t, "06:00", gotST.StartTime)

	codes, err := repo.ListKnownCodes(ctx)
	require.NoError(t, err)
	assert.Contains(t, codes, "P1s")

	sc := &types.Schedule{EmployeeID: emp.ID, ShiftTypeID: st.ID, Date: date(2025, 1, 2),
		ImportBatch: "b1", ImportOrder: 1, ImportedAt: time.Now()}
	require.NoError(t, repo.CreateSchedule(ctx, sc))

	gotSC, err := repo.FindScheduleByEmployeeAndDate(ctx, emp.ID, date(2025, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, st.ID, gotSC.ShiftTypeID)
	assert.Equal(t, "b1", gotSC.ImportBatch)

	gotSC.ImportBatch = "b2"
	gotSC.ImportOrder = 7
	require.NoError(t, repo.UpdateSchedule(ctx, gotSC))
	gotSC, err = repo.FindScheduleByEmployeeAndDate(ctx, emp.ID, date(2025, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, "b2", gotSC.ImportBatch)
	assert.Equal(t, 7, gotSC.ImportOrder)

	_, err = repo.FindScheduleByEmployeeAndDate(ctx, emp.ID, date(2025, 1, 3))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.CreateImportLog(ctx, &types.ImportLog{
		BatchID: "b2", ValidationResult: types.StatusWarning, ImportedAt: time.Now(),
		Messages: []string{"row 2: duplicate"},
	}))
	require.NoError(t, repo.Commit(ctx))

	// Clearing is bounded by employee and date range.
	require.NoError(t, repo.CreateSchedule(ctx, &types.Schedule{EmployeeID: emp.ID, ShiftTypeID: st.ID, Date: date(2025, 2, 1)}))
	cleared, err := repo.ClearSchedules(ctx, []int64{emp.ID}, date(2025, 1, 1), date(2025, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	// Rollback restores the cleared schedule and drops the new one.
	require.NoError(t, repo.Rollback(ctx))
	_, err = repo.FindScheduleByEmployeeAndDate(ctx, emp.ID, date(2025, 1, 2))
	require.NoError(t, err)
	_, err = repo.FindScheduleByEmployeeAndDate(ctx, emp.ID, date(2025, 2, 1))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	session, err := s.Begin(ctx)
	require.NoError(t, err)
	defer session.Close()

	exercise(t, ctx, session)
	require.NoError(t, session.Close())

	logs, err := s.ImportLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, types.StatusWarning, logs[0].ValidationResult)
	assert.Equal(t, []string{"row 2: duplicate"}, logs[0].Messages)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	exercise(t, ctx, m)

	assert.Len(t, m.Employees(), 1)
	assert.Len(t, m.Schedules(), 1)
	assert.Len(t, m.ImportLogs(), 1)
	assert.Equal(t, 1, m.Commits())
}

func TestSQLiteUncommittedWorkIsDiscardedOnClose(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	session, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, session.CreateEmployee(ctx, &types.Employee{Name: "Temp", Code: "T1"}))
	require.NoError(t, session.Close())

	session, err = s.Begin(ctx)
	require.NoError(t, err)
	defer session.Close()

	n, err := session.CountEmployees(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteDuplicateCodeIsNotUnavailable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	session, err := s.Begin(ctx)
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.CreateEmployee(ctx, &types.Employee{Name: "A", Code: "X"}))
	err = session.CreateEmployee(ctx, &types.Employee{Name: "B", Code: "X"})
	require.Error(t, err)
	assert.False(t, IsUnavailable(err))
}

func TestSQLiteClosedStoreIsUnavailable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.ListKnownCodes(ctx)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestSeedShiftTypes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seed := []types.ShiftType{
		{Code: "A", Name: "早班", StartTime: "08:00", EndTime: "16:00", Color: "#28a745"},
		{Code: "OFF", Name: "休假", StartTime: "00:00", EndTime: "00:00", Color: "#6c757d"},
	}

	n, err := s.SeedShiftTypes(ctx, seed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.SeedShiftTypes(ctx, seed)
	require.NoError(t, err)
	assert.Zero(t, n)

	codes, err := s.ListKnownCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "OFF"}, codes)
}

func TestMemoryStoreFailureInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("A")

	boom := errors.New("boom")
	m.FailOn("FindShiftTypeByCode", boom)
	_, err := m.FindShiftTypeByCode(ctx, "A")
	assert.ErrorIs(t, err, boom)

	m.FailOn("FindShiftTypeByCode", nil)
	_, err = m.FindShiftTypeByCode(ctx, "A")
	assert.NoError(t, err)

	m.PanicOn("CountEmployees", "kaboom")
	assert.PanicsWithValue(t, "kaboom", func() { _, _ = m.CountEmployees(ctx) })

	// The lock is released after the panic.
	codes, err := m.ListKnownCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, codes)
}
