// =============================================================================
// Roster Importer - Batch Importer
// =============================================================================
//
// This module reconciles validated roster records with the persisted store.
//
// IMPORT PIPELINE (per record):
//   1. Resolve the employee by name, creating it when absent
//   2. Resolve the shift type by code, creating it when allowed
//   3. Insert, update or skip the (employee, date) schedule
//
// TRANSACTIONS:
//   Writes are committed every BatchSize records and once more at the end.
//   A failure of the store itself rolls back the uncommitted work and aborts
//   the import; any other failure skips the record.
//
// =============================================================================

package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ginjaninja78/roster-importer/internal/shiftcode"
	"github.com/ginjaninja78/roster-importer/internal/store"
	"github.com/ginjaninja78/roster-importer/internal/types"
)

// DefaultBatchSize is the number of records between commits.
const DefaultBatchSize = 100

// employeeCodeFormat is used for synthesized employee codes.
const employeeCodeFormat = "EMP_%03d"

// maxCodeAttempts bounds the search for a free synthesized code.
const maxCodeAttempts = 10000

// =============================================================================
// OPTIONS
// =============================================================================

// Mode selects how existing schedules are treated.
type Mode string

const (
	// ModeMerge keeps schedules the batch does not mention.
	ModeMerge Mode = "merge"

	// ModeOverwrite clears the scope's schedules in the batch date range
	// before importing.
	ModeOverwrite Mode = "overwrite"
)

// ParseMode parses a mode name. An empty name selects ModeMerge.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMerge:
		return ModeMerge, nil
	case ModeOverwrite:
		return ModeOverwrite, nil
	default:
		return "", fmt.Errorf("unknown import mode %q (want merge or overwrite)", s)
	}
}

// Options controls one Import call.
type Options struct {
	Mode Mode

	// Scope is the employee names whose schedules overwrite mode clears.
	// Empty means the names present in the records.
	Scope []string

	// Force allows shift types missing from the store to be created.
	// Without it, records with such codes are skipped.
	Force bool

	// BatchSize is the number of records between commits.
	BatchSize int

	// BlankPlaceholder is the shift code blank records are imported as.
	// Empty skips blank records.
	BlankPlaceholder string
}

// =============================================================================
// IMPORTER
// =============================================================================

// Importer writes canonical records through a Repository.
type Importer struct {
	repo     store.Repository
	metadata *shiftcode.MetadataTable
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// New creates a new Importer.
//
// PARAMETERS:
//   - repo: The unit of work all reads and writes go through.
//   - metadata: Display metadata for created shift types (nil = defaults).
//   - logger: Destination for per-record diagnostics (nil = discard).
func New(repo store.Repository, metadata *shiftcode.MetadataTable, logger *zap.Logger) *Importer {
	if metadata == nil {
		metadata = shiftcode.NewMetadataTable(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		repo:     repo,
		metadata: metadata,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// run holds the state of one Import call.
type run struct {
	opts       Options
	batchID    string
	importedAt time.Time
	employees  map[string]*types.Employee
	shiftTypes map[string]*types.ShiftType
	result     *types.ImportResult
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// Import reconciles records with the store.
//
// RETURNS:
//   - The counts of created, updated and skipped schedules.
//   - A *types.InfrastructureError if the store failed; the uncommitted
//     part of the batch has been rolled back and the partial result is
//     returned alongside it.
func (im *Importer) Import(ctx context.Context, records []types.CanonicalRecord, opts Options) (*types.ImportResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Mode == "" {
		opts.Mode = ModeMerge
	}

	r := &run{
		opts:       opts,
		batchID:    im.newID(),
		importedAt: im.now().UTC(),
		employees:  make(map[string]*types.Employee),
		shiftTypes: make(map[string]*types.ShiftType),
		result:     &types.ImportResult{},
	}
	r.result.BatchID = r.batchID

	im.logger.Info("import started",
		zap.String("batch_id", r.batchID),
		zap.String("mode", string(opts.Mode)),
		zap.Int("records", len(records)))

	if opts.Mode == ModeOverwrite {
		if err := im.clearScope(ctx, r, records); err != nil {
			return r.result, im.abort(ctx, "clear schedules", err)
		}
	}

	pending := 0
	for i, rec := range records {
		out, err := im.importRecord(ctx, r, rec, i+1)
		if err != nil {
			if store.IsUnavailable(err) {
				return r.result, im.abort(ctx, fmt.Sprintf("import row %d", rec.RowIndex), err)
			}
			im.logger.Warn("record skipped",
				zap.Int("row", rec.RowIndex),
				zap.String("employee", rec.EmployeeName),
				zap.Error(err))
			out = outcomeSkipped
		}

		switch out {
		case outcomeCreated:
			r.result.CreatedCount++
		case outcomeUpdated:
			r.result.UpdatedCount++
		default:
			r.result.SkippedCount++
		}

		pending++
		if pending == opts.BatchSize {
			if err := im.commit(ctx, r); err != nil {
				return r.result, err
			}
			pending = 0
		}
	}

	if pending > 0 || r.result.Commits == 0 {
		if err := im.commit(ctx, r); err != nil {
			return r.result, err
		}
	}

	im.logger.Info("import finished",
		zap.String("batch_id", r.batchID),
		zap.Int("created", r.result.CreatedCount),
		zap.Int("updated", r.result.UpdatedCount),
		zap.Int("skipped", r.result.SkippedCount),
		zap.Int("cleared", r.result.ClearedCount))

	return r.result, nil
}

func (im *Importer) commit(ctx context.Context, r *run) error {
	if err := im.repo.Commit(ctx); err != nil {
		return im.abort(ctx, "commit", err)
	}
	r.result.Commits++
	return nil
}

// abort rolls back the uncommitted work and wraps cause.
func (im *Importer) abort(ctx context.Context, op string, cause error) error {
	if err := im.repo.Rollback(ctx); err != nil {
		im.logger.Error("rollback failed", zap.String("op", op), zap.Error(err))
	}
	im.logger.Error("import aborted", zap.String("op", op), zap.Error(cause))
	return &types.InfrastructureError{Op: op, Err: cause}
}

// importRecord reconciles one record. A panic is turned into an error so
// a single bad record cannot end the batch.
func (im *Importer) importRecord(ctx context.Context, r *run, rec types.CanonicalRecord, order int) (out outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = outcomeSkipped, fmt.Errorf("row %d: panic: %v", rec.RowIndex, p)
		}
	}()

	code := rec.ImportCode
	if code == "" {
		code = rec.CanonicalShiftCode
	}
	if rec.IsBlank {
		code = r.opts.BlankPlaceholder
	}
	if code == "" {
		return outcomeSkipped, nil
	}

	employee, err := im.resolveEmployee(ctx, r, rec)
	if err != nil {
		return outcomeSkipped, err
	}

	create := r.opts.Force || (rec.IsBlank && code == r.opts.BlankPlaceholder)
	shiftType, err := im.resolveShiftType(ctx, r, code, create)
	if err != nil {
		return outcomeSkipped, err
	}

	return im.reconcileSchedule(ctx, r, employee, shiftType, rec.Date, order)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// resolveEmployee finds the employee by name or creates it. A supplied
// employee code is used when no other employee holds it; otherwise a
// sequential code is synthesized.
func (im *Importer) resolveEmployee(ctx context.Context, r *run, rec types.CanonicalRecord) (*types.Employee, error) {
	if e, ok := r.employees[rec.EmployeeName]; ok {
		return e, nil
	}

	e, err := im.repo.FindEmployeeByName(ctx, rec.EmployeeName)
	switch {
	case err == nil:
		if rec.EmployeeCode != "" && rec.EmployeeCode != e.Code {
			free, err := im.codeFree(ctx, rec.EmployeeCode)
			if err != nil {
				return nil, err
			}
			if free {
				if err := im.repo.UpdateEmployeeCode(ctx, e.ID, rec.EmployeeCode); err != nil {
					return nil, err
				}
				e.Code = rec.EmployeeCode
			}
		}
		r.employees[rec.EmployeeName] = e
		return e, nil

	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	code := rec.EmployeeCode
	if code != "" {
		free, err := im.codeFree(ctx, code)
		if err != nil {
			return nil, err
		}
		if !free {
			code = ""
		}
	}
	if code == "" {
		if code, err = im.nextEmployeeCode(ctx); err != nil {
			return nil, err
		}
	}

	e = &types.Employee{Name: rec.EmployeeName, Code: code}
	if err := im.repo.CreateEmployee(ctx, e); err != nil {
		return nil, err
	}
	im.logger.Debug("employee created", zap.String("name", e.Name), zap.String("code", e.Code))

	r.employees[rec.EmployeeName] = e
	return e, nil
}

func (im *Importer) codeFree(ctx context.Context, code string) (bool, error) {
	_, err := im.repo.FindEmployeeByCode(ctx, code)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, store.ErrNotFound):
		return true, nil
	default:
		return false, err
	}
}

// nextEmployeeCode returns the first free EMP_nnn code, starting after the
// current employee count.
func (im *Importer) nextEmployeeCode(ctx context.Context) (string, error) {
	n, err := im.repo.CountEmployees(ctx)
	if err != nil {
		return "", err
	}
	for i := n + 1; i <= n+maxCodeAttempts; i++ {
		code := fmt.Sprintf(employeeCodeFormat, i)
		free, err := im.codeFree(ctx, code)
		if err != nil {
			return "", err
		}
		if free {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free employee code after %d attempts", maxCodeAttempts)
}

// =============================================================================
// SHIFT TYPES
// =============================================================================

func (im *Importer) resolveShiftType(ctx context.Context, r *run, code string, create bool) (*types.ShiftType, error) {
	if st, ok := r.shiftTypes[code]; ok {
		return st, nil
	}

	st, err := im.repo.FindShiftTypeByCode(ctx, code)
	switch {
	case err == nil:
		r.shiftTypes[code] = st
		return st, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	case !create:
		return nil, fmt.Errorf("unknown shift type %q", code)
	}

	meta := im.metadata.Lookup(code)
	st = &types.ShiftType{
		Code:      code,
		Name:      meta.Name,
		StartTime: meta.Start,
		EndTime:   meta.End,
		Color:     meta.Color,
	}
	if err := im.repo.CreateShiftType(ctx, st); err != nil {
		return nil, err
	}
	im.logger.Info("shift type created", zap.String("code", code), zap.String("name", st.Name))

	r.shiftTypes[code] = st
	return st, nil
}

// =============================================================================
// SCHEDULES
// =============================================================================

func (im *Importer) reconcileSchedule(ctx context.Context, r *run, e *types.Employee, st *types.ShiftType,
	date time.Time, order int) (outcome, error) {
	existing, err := im.repo.FindScheduleByEmployeeAndDate(ctx, e.ID, date)
	switch {
	case errors.Is(err, store.ErrNotFound):
		sc := &types.Schedule{
			EmployeeID:  e.ID,
			ShiftTypeID: st.ID,
			Date:        date,
			ImportBatch: r.batchID,
			ImportOrder: order,
			ImportedAt:  r.importedAt,
		}
		if err := im.repo.CreateSchedule(ctx, sc); err != nil {
			return outcomeSkipped, err
		}
		return outcomeCreated, nil

	case err != nil:
		return outcomeSkipped, err

	case existing.ShiftTypeID == st.ID:
		return outcomeSkipped, nil
	}

	existing.ShiftTypeID = st.ID
	existing.ImportBatch = r.batchID
	existing.ImportOrder = order
	existing.ImportedAt = r.importedAt
	if err := im.repo.UpdateSchedule(ctx, existing); err != nil {
		return outcomeSkipped, err
	}
	return outcomeUpdated, nil
}

// clearScope deletes the scope's schedules within the date range of the
// records. Names unknown to the store are ignored.
func (im *Importer) clearScope(ctx context.Context, r *run, records []types.CanonicalRecord) error {
	if len(records) == 0 {
		return nil
	}

	from, to := records[0].Date, records[0].Date
	names := r.opts.Scope
	seen := make(map[string]bool)
	for _, rec := range records {
		if rec.Date.Before(from) {
			from = rec.Date
		}
		if rec.Date.After(to) {
			to = rec.Date
		}
		if len(r.opts.Scope) == 0 && !seen[rec.EmployeeName] {
			seen[rec.EmployeeName] = true
			names = append(names, rec.EmployeeName)
		}
	}

	var ids []int64
	for _, name := range names {
		e, err := im.repo.FindEmployeeByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		ids = append(ids, e.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	n, err := im.repo.ClearSchedules(ctx, ids, from, to)
	if err != nil {
		return err
	}
	r.result.ClearedCount = n

	im.logger.Info("schedules cleared",
		zap.Int("count", n),
		zap.Int("employees", len(ids)),
		zap.String("from", from.Format("2006-01-02")),
		zap.String("to", to.Format("2006-01-02")))
	return nil
}
