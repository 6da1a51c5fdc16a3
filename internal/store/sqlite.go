// =============================================================================
// Roster Importer - SQLite Store
// =============================================================================
//
// This module persists employees, shift types, schedules and import logs in a
// single SQLite file. The schema is embedded and applied on open.
//
// TRANSACTIONS:
//   Writes go through a Session, which holds one open transaction. Commit and
//   Rollback end it and immediately start the next one, so the importer can
//   commit in batches without handing the session back.
//
// ERRORS:
//   - ErrNotFound:    a lookup matched nothing
//   - ErrUnavailable: the database itself failed (locked, closed, I/O)
//   - anything else:  the single statement failed
//
// =============================================================================

package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/ginjaninja78/roster-importer/internal/types"
)

//go:embed schema.sql
var schemaFS embed.FS

const timestampLayout = time.RFC3339Nano

// Store is the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the database at dbPath and applies the
// schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite wants a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, now: time.Now}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}

	if _, err := s.db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ListKnownCodes returns every shift-type code.
func (s *Store) ListKnownCodes(ctx context.Context) ([]string, error) {
	return listKnownCodes(ctx, s.db)
}

// SeedShiftTypes inserts the shift types whose code is not present yet and
// returns how many were inserted.
func (s *Store) SeedShiftTypes(ctx context.Context, seed []types.ShiftType) (int, error) {
	session, err := s.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer session.Close()

	inserted := 0
	for i := range seed {
		_, err := session.FindShiftTypeByCode(ctx, seed[i].Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return 0, err
		}
		if err := session.CreateShiftType(ctx, &seed[i]); err != nil {
			return 0, err
		}
		inserted++
	}

	if err := session.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ImportLogs returns the most recent import logs, newest first.
func (s *Store) ImportLogs(ctx context.Context, limit int) ([]types.ImportLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, importer, filename, imported_at, data_version, target_group,
		       validation_result, force_import, error_count, warning_count, records_imported, messages
		FROM import_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, classify("list import logs", err)
	}
	defer rows.Close()

	var logs []types.ImportLog
	for rows.Next() {
		var (
			l          types.ImportLog
			importedAt string
			result     string
			messages   string
		)
		if err := rows.Scan(&l.ID, &l.BatchID, &l.Importer, &l.Filename, &importedAt, &l.DataVersion,
			&l.TargetGroup, &result, &l.ForceImport, &l.ErrorCount, &l.WarningCount,
			&l.RecordsImported, &messages); err != nil {
			return nil, classify("scan import log", err)
		}
		l.ImportedAt = parseTimestamp(importedAt)
		l.ValidationResult = types.Status(result)
		if err := json.Unmarshal([]byte(messages), &l.Messages); err != nil {
			return nil, fmt.Errorf("decode import log %d messages: %w", l.ID, err)
		}
		logs = append(logs, l)
	}
	return logs, classify("list import logs", rows.Err())
}

// =============================================================================
// SESSION
// =============================================================================

// Session is a Repository over one open transaction. Commit and Rollback
// end the current transaction and start the next one.
type Session struct {
	db  *sql.DB
	tx  *sql.Tx
	now func() time.Time
}

// Begin starts a Session.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin transaction", err)
	}
	return &Session{db: s.db, tx: tx, now: s.now}, nil
}

// Close rolls back any uncommitted work.
func (s *Session) Close() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Commit makes the pending writes durable and opens a new transaction.
func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return fmt.Errorf("commit: %w: session closed", ErrUnavailable)
	}
	if err := s.tx.Commit(); err != nil {
		s.tx = nil
		return fmt.Errorf("commit: %w: %v", ErrUnavailable, err)
	}
	return s.reopen(ctx)
}

// Rollback discards the pending writes and opens a new transaction.
func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return s.reopen(ctx)
	}
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.tx = nil
		return fmt.Errorf("rollback: %w: %v", ErrUnavailable, err)
	}
	return s.reopen(ctx)
}

func (s *Session) reopen(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.tx = nil
		return classify("begin transaction", err)
	}
	s.tx = tx
	return nil
}

func (s *Session) conn() (*sql.Tx, error) {
	if s.tx == nil {
		return nil, fmt.Errorf("%w: session closed", ErrUnavailable)
	}
	return s.tx, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, employee_code, created_at, updated_at`

// FindEmployeeByName returns the oldest employee with the exact display name.
func (s *Session) FindEmployeeByName(ctx context.Context, name string) (*types.Employee, error) {
	return s.findEmployee(ctx, "find employee by name",
		`SELECT `+employeeColumns+` FROM employees WHERE name = ? ORDER BY id LIMIT 1`, name)
}

// FindEmployeeByCode returns the employee holding the given employee code.
func (s *Session) FindEmployeeByCode(ctx context.Context, code string) (*types.Employee, error) {
	return s.findEmployee(ctx, "find employee by code",
		`SELECT `+employeeColumns+` FROM employees WHERE employee_code = ?`, code)
}

func (s *Session) findEmployee(ctx context.Context, op, query string, arg interface{}) (*types.Employee, error) {
	tx, err := s.conn()
	if err != nil {
		return nil, err
	}

	var (
		e                    types.Employee
		createdAt, updatedAt string
	)
	err = tx.QueryRowContext(ctx, query, arg).Scan(&e.ID, &e.Name, &e.Code, &createdAt, &updatedAt)
	if err != nil {
		return nil, classify(op, err)
	}
	e.CreatedAt = parseTimestamp(createdAt)
	e.UpdatedAt = parseTimestamp(updatedAt)
	return &e, nil
}

// CountEmployees returns the number of employees.
func (s *Session) CountEmployees(ctx context.Context) (int, error) {
	tx, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&n); err != nil {
		return 0, classify("count employees", err)
	}
	return n, nil
}

// CreateEmployee inserts e and sets its ID and timestamps.
func (s *Session) CreateEmployee(ctx context.Context, e *types.Employee) error {
	tx, err := s.conn()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO employees (name, employee_code, created_at, updated_at)
		VALUES (?, ?, ?, ?)`, e.Name, e.Code, formatTimestamp(now), formatTimestamp(now))
	if err != nil {
		return classify("create employee", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("create employee", err)
	}
	e.ID, e.CreatedAt, e.UpdatedAt = id, now, now
	return nil
}

// UpdateEmployeeCode replaces the employee code of an existing employee.
func (s *Session) UpdateEmployeeCode(ctx context.Context, id int64, code string) error {
	tx, err := s.conn()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE employees SET employee_code = ?, updated_at = ? WHERE id = ?`,
		code, formatTimestamp(s.now().UTC()), id)
	return classify("update employee code", err)
}

// =============================================================================
// SHIFT TYPES
// =============================================================================

// FindShiftTypeByCode returns the shift type with the given code.
func (s *Session) FindShiftTypeByCode(ctx context.Context, code string) (*types.ShiftType, error) {
	tx, err := s.conn()
	if err != nil {
		return nil, err
	}

	var (
		st                   types.ShiftType
		createdAt, updatedAt string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, code, name, start_time, end_time, color, created_at, updated_at
		FROM shift_types WHERE code = ?`, code).
		Scan(&st.ID, &st.Code, &st.Name, &st.StartTime, &st.EndTime, &st.Color, &createdAt, &updatedAt)
	if err != nil {
		return nil, classify("find shift type", err)
	}
	st.CreatedAt = parseTimestamp(createdAt)
	st.UpdatedAt = parseTimestamp(updatedAt)
	return &st, nil
}

// CreateShiftType inserts st and sets its ID and timestamps.
func (s *Session) CreateShiftType(ctx context.Context, st *types.ShiftType) error {
	tx, err := s.conn()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO shift_types (code, name, start_time, end_time, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.Code, st.Name, st.StartTime, st.EndTime, st.Color, formatTimestamp(now), formatTimestamp(now))
	if err != nil {
		return classify("create shift type", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("create shift type", err)
	}
	st.ID, st.CreatedAt, st.UpdatedAt = id, now, now
	return nil
}

// ListKnownCodes returns every shift-type code, including codes created in
// the open transaction.
func (s *Session) ListKnownCodes(ctx context.Context) ([]string, error) {
	tx, err := s.conn()
	if err != nil {
		return nil, err
	}
	return listKnownCodes(ctx, tx)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func listKnownCodes(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT code FROM shift_types ORDER BY code`)
	if err != nil {
		return nil, classify("list shift codes", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, classify("list shift codes", err)
		}
		codes = append(codes, c)
	}
	return codes, classify("list shift codes", rows.Err())
}

// =============================================================================
// SCHEDULES
// =============================================================================

// FindScheduleByEmployeeAndDate returns the schedule of one employee on
// one calendar day.
func (s *Session) FindScheduleByEmployeeAndDate(ctx context.Context, employeeID int64, date time.Time) (*types.Schedule, error) {
	tx, err := s.conn()
	if err != nil {
		return nil, err
	}

	var (
		sc                                   types.Schedule
		day, importedAt, createdAt, updatedAt string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, employee_id, shift_type_id, date, import_batch, import_order, imported_at, created_at, updated_at
		FROM schedules WHERE employee_id = ? AND date = ? ORDER BY id LIMIT 1`,
		employeeID, dateKey(date)).
		Scan(&sc.ID, &sc.EmployeeID, &sc.ShiftTypeID, &day, &sc.ImportBatch, &sc.ImportOrder,
			&importedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, classify("find schedule", err)
	}

	sc.Date, _ = time.Parse(dateLayout, day)
	sc.ImportedAt = parseTimestamp(importedAt)
	sc.CreatedAt = parseTimestamp(createdAt)
	sc.UpdatedAt = parseTimestamp(updatedAt)
	return &sc, nil
}

// CreateSchedule inserts sc and sets its ID and timestamps.
func (s *Session) CreateSchedule(ctx context.Context, sc *types.Schedule) error {
	tx, err := s.conn()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO schedules (employee_id, shift_type_id, date, import_batch, import_order, imported_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.EmployeeID, sc.ShiftTypeID, dateKey(sc.Date), sc.ImportBatch, sc.ImportOrder,
		formatTimestamp(sc.ImportedAt), formatTimestamp(now), formatTimestamp(now))
	if err != nil {
		return classify("create schedule", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("create schedule", err)
	}
	sc.ID, sc.CreatedAt, sc.UpdatedAt = id, now, now
	return nil
}

// UpdateSchedule points an existing schedule at a new shift type and
// records the batch that changed it.
func (s *Session) UpdateSchedule(ctx context.Context, sc *types.Schedule) error {
	tx, err := s.conn()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE schedules
		SET shift_type_id = ?, import_batch = ?, import_order = ?, imported_at = ?, updated_at = ?
		WHERE id = ?`,
		sc.ShiftTypeID, sc.ImportBatch, sc.ImportOrder, formatTimestamp(sc.ImportedAt), formatTimestamp(now), sc.ID)
	if err != nil {
		return classify("update schedule", err)
	}
	sc.UpdatedAt = now
	return nil
}

// ClearSchedules deletes the schedules of the given employees between from
// and to inclusive, and returns how many were removed.
func (s *Session) ClearSchedules(ctx context.Context, employeeIDs []int64, from, to time.Time) (int, error) {
	if len(employeeIDs) == 0 {
		return 0, nil
	}
	tx, err := s.conn()
	if err != nil {
		return 0, err
	}

	args := []interface{}{dateKey(from), dateKey(to)}
	placeholders := make([]string, len(employeeIDs))
	for i, id := range employeeIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE date BETWEEN ? AND ? AND employee_id IN (`+
		strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return 0, classify("clear schedules", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("clear schedules", err)
	}
	return int(n), nil
}

// =============================================================================
// IMPORT LOGS
// =============================================================================

// CreateImportLog inserts l and sets its ID.
func (s *Session) CreateImportLog(ctx context.Context, l *types.ImportLog) error {
	tx, err := s.conn()
	if err != nil {
		return err
	}

	messages := l.Messages
	if messages == nil {
		messages = []string{}
	}
	encoded, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode import log messages: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO import_logs (batch_id, importer, filename, imported_at, data_version, target_group,
		                         validation_result, force_import, error_count, warning_count, records_imported, messages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.BatchID, l.Importer, l.Filename, formatTimestamp(l.ImportedAt), l.DataVersion, l.TargetGroup,
		string(l.ValidationResult), l.ForceImport, l.ErrorCount, l.WarningCount, l.RecordsImported, string(encoded))
	if err != nil {
		return classify("create import log", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify("create import log", err)
	}
	l.ID = id
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// classify maps driver errors onto the package error contract.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case unavailable(err):
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func unavailable(err error) bool {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrCantOpen,
			sqlite3.ErrCorrupt, sqlite3.ErrFull, sqlite3.ErrReadonly, sqlite3.ErrNotADB:
			return true
		}
	}
	return strings.Contains(err.Error(), "database is closed")
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
