// =============================================================================
// Roster Importer - In-Memory Store
// =============================================================================
//
// A Repository held in process memory. Used by the pipeline and importer
// tests to inject failures on single operations.
//
// =============================================================================

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ginjaninja78/roster-importer/internal/types"
)

// MemoryStore is an in-process Repository. Writes are staged until Commit,
// so it honours the same unit-of-work contract as a SQLite Session. It can
// be told to fail or panic on a named operation.
type MemoryStore struct {
	mu        sync.Mutex
	committed memState
	work      memState
	failures  map[string]error
	panics    map[string]interface{}
	commits   int
	now       func() time.Time
}

type memState struct {
	nextID     int64
	employees  []types.Employee
	shiftTypes []types.ShiftType
	schedules  []types.Schedule
	logs       []types.ImportLog
}

func (s memState) clone() memState {
	return memState{
		nextID:     s.nextID,
		employees:  append([]types.Employee(nil), s.employees...),
		shiftTypes: append([]types.ShiftType(nil), s.shiftTypes...),
		schedules:  append([]types.Schedule(nil), s.schedules...),
		logs:       append([]types.ImportLog(nil), s.logs...),
	}
}

// NewMemoryStore creates an empty store holding the given shift codes.
func NewMemoryStore(codes ...string) *MemoryStore {
	m := &MemoryStore{
		failures: make(map[string]error),
		panics:   make(map[string]interface{}),
		now:      time.Now,
	}
	for _, c := range codes {
		m.work.nextID++
		m.work.shiftTypes = append(m.work.shiftTypes, types.ShiftType{ID: m.work.nextID, Code: c, Name: c})
	}
	m.committed = m.work.clone()
	return m
}

// FailOn makes every later call of op return err. A nil err clears it.
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// PanicOn makes every later call of op panic with value.
func (m *MemoryStore) PanicOn(op string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics[op] = value
}

// check is called with the lock held; the caller's deferred Unlock still
// runs if it panics.
func (m *MemoryStore) check(op string) error {
	if v, ok := m.panics[op]; ok {
		panic(v)
	}
	return m.failures[op]
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *MemoryStore) FindEmployeeByName(_ context.Context, name string) (*types.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("FindEmployeeByName"); err != nil {
		return nil, err
	}
	for _, e := range m.work.employees {
		if e.Name == name {
			e := e
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindEmployeeByCode(_ context.Context, code string) (*types.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("FindEmployeeByCode"); err != nil {
		return nil, err
	}
	for _, e := range m.work.employees {
		if e.Code == code {
			e := e
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CountEmployees(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("CountEmployees"); err != nil {
		return 0, err
	}
	return len(m.work.employees), nil
}

func (m *MemoryStore) CreateEmployee(_ context.Context, e *types.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("CreateEmployee"); err != nil {
		return err
	}
	for _, other := range m.work.employees {
		if other.Code == e.Code {
			return fmt.Errorf("create employee: employee code %q already exists", e.Code)
		}
	}
	m.work.nextID++
	now := m.now().UTC()
	e.ID, e.CreatedAt, e.UpdatedAt = m.work.nextID, now, now
	m.work.employees = append(m.work.employees, *e)
	return nil
}

func (m *MemoryStore) UpdateEmployeeCode(_ context.Context, id int64, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UpdateEmployeeCode"); err != nil {
		return err
	}
	for i := range m.work.employees {
		if m.work.employees[i].ID == id {
			m.work.employees[i].Code = code
			m.work.employees[i].UpdatedAt = m.now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

// =============================================================================
// SHIFT TYPES
// =============================================================================

func (m *MemoryStore) FindShiftTypeByCode(_ context.Context, code string) (*types.ShiftType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("FindShiftTypeByCode"); err != nil {
		return nil, err
	}
	for _, st := range m.work.shiftTypes {
		if st.Code == code {
			st := st
			return &st, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateShiftType(_ context.Context, st *types.ShiftType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("CreateShiftType"); err != nil {
		return err
	}
	m.work.nextID++
	now := m.now().UTC()
	st.ID, st.CreatedAt, st.UpdatedAt = m.work.nextID, now, now
	m.work.shiftTypes = append(m.work.shiftTypes, *st)
	return nil
}

func (m *MemoryStore) ListKnownCodes(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("ListKnownCodes"); err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(m.work.shiftTypes))
	for _, st := range m.work.shiftTypes {
		codes = append(codes, st.Code)
	}
	sort.Strings(codes)
	return codes, nil
}

// =============================================================================
// SCHEDULES
// =============================================================================

func (m *MemoryStore) FindScheduleByEmployeeAndDate(_ context.Context, employeeID int64, date time.Time) (*types.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("FindScheduleByEmployeeAndDate"); err != nil {
		return nil, err
	}
	key := dateKey(date)
	for _, sc := range m.work.schedules {
		if sc.EmployeeID == employeeID && dateKey(sc.Date) == key {
			sc := sc
			return &sc, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateSchedule(_ context.Context, sc *types.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("CreateSchedule"); err != nil {
		return err
	}
	m.work.nextID++
	now := m.now().UTC()
	sc.ID, sc.CreatedAt, sc.UpdatedAt = m.work.nextID, now, now
	m.work.schedules = append(m.work.schedules, *sc)
	return nil
}

func (m *MemoryStore) UpdateSchedule(_ context.Context, sc *types.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UpdateSchedule"); err != nil {
		return err
	}
	for i := range m.work.schedules {
		if m.work.schedules[i].ID == sc.ID {
			sc.UpdatedAt = m.now().UTC()
			m.work.schedules[i] = *sc
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ClearSchedules(_ context.Context, employeeIDs []int64, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("ClearSchedules"); err != nil {
		return 0, err
	}

	ids := make(map[int64]bool, len(employeeIDs))
	for _, id := range employeeIDs {
		ids[id] = true
	}
	lo, hi := dateKey(from), dateKey(to)

	kept := m.work.schedules[:0:0]
	cleared := 0
	for _, sc := range m.work.schedules {
		d := dateKey(sc.Date)
		if ids[sc.EmployeeID] && d >= lo && d <= hi {
			cleared++
			continue
		}
		kept = append(kept, sc)
	}
	m.work.schedules = kept
	return cleared, nil
}

// =============================================================================
// IMPORT LOGS AND TRANSACTIONS
// =============================================================================

func (m *MemoryStore) CreateImportLog(_ context.Context, l *types.ImportLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("CreateImportLog"); err != nil {
		return err
	}
	m.work.nextID++
	l.ID = m.work.nextID
	m.work.logs = append(m.work.logs, *l)
	return nil
}

func (m *MemoryStore) Commit(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("Commit"); err != nil {
		return err
	}
	m.committed = m.work.clone()
	m.commits++
	return nil
}

func (m *MemoryStore) Rollback(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.work = m.committed.clone()
	return nil
}

// =============================================================================
// INSPECTION
// =============================================================================

// Employees returns the committed employees.
func (m *MemoryStore) Employees() []types.Employee {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Employee(nil), m.committed.employees...)
}

// ShiftTypes returns the committed shift types.
func (m *MemoryStore) ShiftTypes() []types.ShiftType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ShiftType(nil), m.committed.shiftTypes...)
}

// Schedules returns the committed schedules.
func (m *MemoryStore) Schedules() []types.Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Schedule(nil), m.committed.schedules...)
}

// ImportLogs returns the committed import logs.
func (m *MemoryStore) ImportLogs() []types.ImportLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ImportLog(nil), m.committed.logs...)
}

// Commits returns the number of successful commits.
func (m *MemoryStore) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}
