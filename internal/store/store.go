// =============================================================================
// Roster Importer - Persistence Contract
// =============================================================================
//
// The importer writes through the Repository interface only. Two
// implementations exist:
//
//   SQLite  (sqlite.go) - the durable store, one transaction per Session
//   Memory  (memory.go) - an in-process store with the same commit semantics
//
// ERROR CONTRACT:
//   - ErrNotFound     a lookup found nothing; never a failure
//   - ErrUnavailable  the store itself failed (locked, closed, I/O); the
//                     importer rolls back and aborts the batch
//   - anything else   the single operation failed; the importer skips the
//                     record and continues
//
// =============================================================================

package store

import (
	"context"
	"errors"
	"time"

	"github.com/ginjaninja78/roster-importer/internal/types"
)

var (
	// ErrNotFound is returned by Find* methods when no row matches.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks failures of the store itself.
	ErrUnavailable = errors.New("store unavailable")
)

// Repository is the read/write contract of one import unit of work.
// Writes become durable on Commit; Rollback discards everything since the
// last Commit.
type Repository interface {
	FindEmployeeByName(ctx context.Context, name string) (*types.Employee, error)
	FindEmployeeByCode(ctx context.Context, code string) (*types.Employee, error)
	CountEmployees(ctx context.Context) (int, error)
	CreateEmployee(ctx context.Context, e *types.Employee) error
	UpdateEmployeeCode(ctx context.Context, id int64, code string) error

	FindShiftTypeByCode(ctx context.Context, code string) (*types.ShiftType, error)
	CreateShiftType(ctx context.Context, st *types.ShiftType) error
	ListKnownCodes(ctx context.Context) ([]string, error)

	FindScheduleByEmployeeAndDate(ctx context.Context, employeeID int64, date time.Time) (*types.Schedule, error)
	CreateSchedule(ctx context.Context, s *types.Schedule) error
	UpdateSchedule(ctx context.Context, s *types.Schedule) error

	// ClearSchedules deletes the schedules of the given employees whose
	// date lies in [from, to]. It returns the number deleted.
	ClearSchedules(ctx context.Context, employeeIDs []int64, from, to time.Time) (int, error)

	CreateImportLog(ctx context.Context, log *types.ImportLog) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// IsUnavailable reports whether err is a failure of the store itself.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// dateLayout is how schedule dates are stored and compared.
const dateLayout = "2006-01-02"

func dateKey(t time.Time) string {
	return t.Format(dateLayout)
}
