// =============================================================================
// Roster Importer - Row Validator
// =============================================================================
//
// This module validates every row of a roster table and aggregates the
// batch-level anomalies into a ValidationReport.
//
// VALIDATION STRATEGY:
//   Validation is performed at three levels:
//   1. Row-level: name, membership, date and shift code of each row
//   2. Pair-level: repeated (employee, date) pairs across rows
//   3. Batch-level: single-staffing dates and the shift-balance audit
//
// ERROR HANDLING:
//   - Row problems are collected, never returned as errors
//   - Each message carries the 1-based source row number
//   - Rows outside the selected group are skipped silently
//   - Only a schema failure or a collaborator failure is returned as error
//
// CUSTOMIZATION:
//   - Thresholds and leave codes live in config.yaml (validation, audit)
//   - Compound code mappings live in config.yaml (shift_codes.mappings)
//
// =============================================================================

package validation

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/roster-importer/internal/audit"
	"github.com/ginjaninja78/roster-importer/internal/dates"
	"github.com/ginjaninja78/roster-importer/internal/membership"
	"github.com/ginjaninja78/roster-importer/internal/schema"
	"github.com/ginjaninja78/roster-importer/internal/shiftcode"
	"github.com/ginjaninja78/roster-importer/internal/types"
)

// blankLabel stands in for a blank code in duplicate labels.
const blankLabel = "(blank)"

// =============================================================================
// OPTIONS AND CONTEXT
// =============================================================================

// Options contains options for validation.
type Options struct {
	// AllowBlankShift accepts rows with a blank shift cell.
	// Default: false
	AllowBlankShift bool

	// Force accepts unknown codes (registering them) and turns blank
	// shifts into placeholder assignments.
	// Default: false
	Force bool

	// StripNameSpaces removes all whitespace from names instead of
	// collapsing it.
	StripNameSpaces bool

	// Calendar selects how year-month cells are read.
	Calendar dates.CalendarSystem

	// Audit configures the balance audit. Its LeaveCodes are also excluded
	// from the single-staffing check.
	Audit audit.Options

	// Normalizer canonicalizes shift cells. Nil uses the default mappings.
	Normalizer *shiftcode.Normalizer

	// Detector resolves column roles. Nil uses the default strategies.
	Detector *schema.Detector
}

// DefaultOptions returns the default validation options.
func DefaultOptions() Options {
	return Options{
		Calendar: dates.CalendarAuto,
		Audit:    audit.DefaultOptions(),
	}
}

// Context is everything a validation call reads besides the table. It is
// built per call and passed explicitly.
type Context struct {
	Membership *membership.Set
	Registry   *shiftcode.Registry
	Options    Options
}

// NewContext resolves the membership set and loads the shift-code registry.
// Failures of either collaborator are returned.
func NewContext(ctx context.Context, provider membership.Provider, lister shiftcode.Lister,
	group string, opts Options) (Context, error) {
	set, err := membership.Resolve(ctx, provider, group, opts.StripNameSpaces)
	if err != nil {
		return Context{}, err
	}

	registry, err := shiftcode.Load(ctx, lister)
	if err != nil {
		return Context{}, err
	}

	return Context{Membership: set, Registry: registry, Options: opts}, nil
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator validates roster tables against one Context.
type Validator struct {
	vctx       Context
	normalizer *shiftcode.Normalizer
	detector   *schema.Detector
	logger     *zap.Logger
}

// NewValidator creates a new Validator instance.
func NewValidator(vctx Context, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if vctx.Membership == nil {
		vctx.Membership = membership.NewSet(membership.AllGroup, nil, vctx.Options.StripNameSpaces)
	}
	if vctx.Registry == nil {
		vctx.Registry = shiftcode.NewRegistry()
	}

	normalizer := vctx.Options.Normalizer
	if normalizer == nil {
		normalizer = shiftcode.NewNormalizer(nil)
	}
	detector := vctx.Options.Detector
	if detector == nil {
		detector = schema.NewDetector()
	}

	return &Validator{
		vctx:       vctx,
		normalizer: normalizer,
		detector:   detector,
		logger:     logger,
	}
}

// Validate validates a table with a fresh Validator.
func Validate(ctx context.Context, vctx Context, table *types.Table) (*types.ValidationReport, error) {
	return NewValidator(vctx, nil).Validate(ctx, table)
}

// rowResult is the outcome of the row-level checks: a record, or the
// reason the row was rejected or skipped.
type rowResult struct {
	row      int
	record   *types.CanonicalRecord
	severity types.Severity
	messages []string
}

func rejected(row int, format string, args ...interface{}) rowResult {
	return rowResult{
		row:      row,
		severity: types.SeverityError,
		messages: []string{fmt.Sprintf("row %d: ", row) + fmt.Sprintf(format, args...)},
	}
}

// pairEntry is the accepted sighting of an (employee, date) pair.
type pairEntry struct {
	row    int
	code   string
	record int
}

// Validate detects the schema, validates every row and audits the result.
//
// RETURNS:
//   - The report. It is returned even when the schema cannot be detected.
//   - *types.SchemaError when the column roles cannot be resolved.
func (v *Validator) Validate(ctx context.Context, table *types.Table) (*types.ValidationReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &types.ValidationReport{
		Messages:             []string{},
		Outcomes:             []types.ValidationOutcome{},
		PerPersonShiftCounts: map[string]int{},
	}

	mapping, err := v.detector.Detect(table.Headers, table.FirstRow(), len(table.Rows))
	if err != nil {
		report.ErrorCount = 1
		report.Messages = append(report.Messages, err.Error())
		report.Finalize()
		return report, err
	}
	report.Mapping = mapping

	v.logger.Debug("schema detected",
		zap.String("strategy", mapping.Strategy),
		zap.String("format", string(mapping.Format)),
		zap.Int("header_offset", mapping.HeaderOffset))

	pairs := make(map[string]*pairEntry)

	for i, raw := range table.Rows {
		if i < mapping.HeaderOffset || raw.IsEmpty() {
			continue
		}
		report.TotalRows++

		res := v.checkRow(raw, mapping)

		if res.record != nil {
			res = v.trackPair(report, pairs, res)
		}

		v.record(report, res)
	}

	v.checkSingleStaffing(report)
	v.foldBalance(report)
	report.Finalize()

	v.logger.Info("validation finished",
		zap.String("source", table.Source),
		zap.Int("rows", report.TotalRows),
		zap.Int("valid", report.ValidCount),
		zap.Int("warnings", report.WarningCount),
		zap.Int("errors", report.ErrorCount),
		zap.Int("skipped", report.SkippedCount),
		zap.String("status", string(report.OverallStatus)))

	return report, nil
}

// checkRow runs the row-level checks in order: name, membership, date,
// shift code.
func (v *Validator) checkRow(raw types.RawRow, mapping types.ColumnMapping) rowResult {
	opts := v.vctx.Options
	row := raw.Index

	// 1. Name.
	name := membership.NormalizeName(raw.Cell(mapping.Name).Text, opts.StripNameSpaces)
	if name == "" || shiftcode.IsBlankToken(name) {
		return rejected(row, "blank name")
	}

	// 2. Membership.
	if !v.vctx.Membership.Admit(name) {
		return rowResult{row: row, severity: types.SeveritySkipped}
	}

	// 3. Date.
	date, ok := v.parseDate(raw, mapping)
	if !ok {
		return rejected(row, "unparseable date for %s", name)
	}

	// 4. Shift code.
	code := v.normalizer.Normalize(raw.Cell(mapping.Shift))
	rec := &types.CanonicalRecord{
		RowIndex:           row,
		EmployeeName:       name,
		EmployeeCode:       strings.TrimSpace(raw.Cell(mapping.EmployeeCode).Text),
		Date:               date,
		RawShiftCode:       code.Original,
		CanonicalShiftCode: code.Canonical,
		IsBlank:            code.Blank,
		IsCompound:         code.Compound,
		CompoundSuffix:     code.Suffix,
		ImportCode:         code.Canonical,
	}
	res := rowResult{row: row, record: rec, severity: types.SeverityOK}

	if code.Blank {
		switch {
		case opts.AllowBlankShift:
		case opts.Force:
			res.warn("row %d: blank shift for %s on %s imported as placeholder", row, name, rec.DateKey())
		default:
			return rejected(row, "blank shift for %s on %s", name, rec.DateKey())
		}
		return res
	}

	registry := v.vctx.Registry
	switch {
	case registry.Known(code.Canonical):
	case code.Compound && !code.Mapped && registry.Known(code.Cleaned):
		rec.ImportCode = code.Cleaned
	case opts.Force:
		registered := code.Canonical
		if code.Compound && !code.Mapped {
			registered = code.Cleaned
		}
		registry.Add(registered)
		rec.ImportCode = registered
		res.warn("row %d: unknown shift code %q registered", row, registered)
	default:
		return rejected(row, "unknown shift code %q", code.Canonical)
	}

	return res
}

func (r *rowResult) warn(format string, args ...interface{}) {
	r.severity = types.SeverityWarning
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

func (v *Validator) parseDate(raw types.RawRow, mapping types.ColumnMapping) (date time.Time, ok bool) {
	switch {
	case mapping.HasSplitDate():
		return dates.FromSplitCells(raw.Cell(mapping.YearMonth), raw.Cell(mapping.Day), v.vctx.Options.Calendar)
	case mapping.HasDate():
		return dates.FromCell(raw.Cell(mapping.Date))
	default:
		return date, false
	}
}

// trackPair detects repeated (employee, date) pairs. An identical repeat
// is dropped; a conflicting repeat replaces the earlier record.
func (v *Validator) trackPair(report *types.ValidationReport, pairs map[string]*pairEntry, res rowResult) rowResult {
	rec := res.record
	key := rec.EmployeeName + "\x00" + rec.DateKey()
	label := rec.CanonicalShiftCode
	if rec.IsBlank {
		label = blankLabel
	}

	prev, seen := pairs[key]
	if !seen {
		report.Records = append(report.Records, *rec)
		pairs[key] = &pairEntry{row: res.row, code: label, record: len(report.Records) - 1}
		return res
	}

	if prev.code == label {
		report.Duplicates = append(report.Duplicates, types.Duplicate{
			EmployeeName: rec.EmployeeName,
			Date:         rec.DateKey(),
			FirstRow:     prev.row,
			Row:          res.row,
			Label:        label,
		})
		res.warn("row %d: duplicate %s for %s on %s (same as row %d)",
			res.row, label, rec.EmployeeName, rec.DateKey(), prev.row)
		res.record = nil
		return res
	}

	merged := prev.code + "/" + label
	report.Duplicates = append(report.Duplicates, types.Duplicate{
		EmployeeName: rec.EmployeeName,
		Date:         rec.DateKey(),
		FirstRow:     prev.row,
		Row:          res.row,
		Label:        merged,
		Conflict:     true,
	})
	res.warn("row %d: multiple assignments %s for %s on %s (rows %d and %d)",
		res.row, merged, rec.EmployeeName, rec.DateKey(), prev.row, res.row)

	report.Records[prev.record] = *rec
	prev.row, prev.code = res.row, label
	return res
}

// record adds a row result to the report counters.
func (v *Validator) record(report *types.ValidationReport, res rowResult) {
	report.Outcomes = append(report.Outcomes, types.ValidationOutcome{
		RowIndex: res.row,
		Severity: res.severity,
		Messages: res.messages,
	})
	report.Messages = append(report.Messages, res.messages...)

	switch res.severity {
	case types.SeveritySkipped:
		report.SkippedCount++
	case types.SeverityError:
		report.ErrorCount += len(res.messages)
		v.logger.Debug("row rejected", zap.Int("row", res.row), zap.Strings("messages", res.messages))
	case types.SeverityWarning:
		report.WarningCount += len(res.messages)
		if res.record != nil {
			report.ValidCount++
		}
	default:
		report.ValidCount++
	}
}

// checkSingleStaffing warns for every date on which exactly one employee
// appears. Every accepted record counts, whatever its shift code.
func (v *Validator) checkSingleStaffing(report *types.ValidationReport) {
	attendees := make(map[string]map[string]types.CanonicalRecord)
	for _, r := range report.Records {
		names, ok := attendees[r.DateKey()]
		if !ok {
			names = make(map[string]types.CanonicalRecord)
			attendees[r.DateKey()] = names
		}
		if _, seen := names[r.EmployeeName]; !seen {
			names[r.EmployeeName] = r
		}
	}

	days := make([]string, 0, len(attendees))
	for d, names := range attendees {
		if len(names) == 1 {
			days = append(days, d)
		}
	}
	sort.Strings(days)

	for _, d := range days {
		var only types.CanonicalRecord
		for _, r := range attendees[d] {
			only = r
		}
		report.SingleStaffingDates = append(report.SingleStaffingDates, d)
		report.Messages = append(report.Messages, fmt.Sprintf(
			"row %d: single-staffing on %s (only %s)", only.RowIndex, d, only.EmployeeName))
		report.WarningCount++
	}
}

// foldBalance runs the balance audit and folds its verdict into the report.
func (v *Validator) foldBalance(report *types.ValidationReport) {
	balance := audit.Audit(report.Records, v.vctx.Options.Audit)
	report.Balance = balance
	for name, n := range balance.Counts {
		report.PerPersonShiftCounts[name] = n
	}

	for _, msg := range balance.Errors {
		report.Messages = append(report.Messages, "balance: "+msg)
		report.ErrorCount++
	}
	for _, msg := range balance.Warnings {
		report.Messages = append(report.Messages, "balance: "+msg)
		report.WarningCount++
	}
}

// =============================================================================
// REPORT OUTPUT
// =============================================================================

// FormatReport formats a validation report for display or logging.
//
// PARAMETERS:
//   - report: The report to format.
//
// RETURNS:
//   - A formatted multi-line summary followed by every message.
func FormatReport(report *types.ValidationReport) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation status: %s\n", report.OverallStatus))
	builder.WriteString(fmt.Sprintf("  rows: %d  valid: %d  warnings: %d  errors: %d  skipped: %d\n",
		report.TotalRows, report.ValidCount, report.WarningCount, report.ErrorCount, report.SkippedCount))

	if report.Mapping.Strategy != "" {
		builder.WriteString(fmt.Sprintf("  layout: %s (%s)\n", report.Mapping.Format, report.Mapping.Strategy))
	}

	if len(report.PerPersonShiftCounts) > 0 {
		names := make([]string, 0, len(report.PerPersonShiftCounts))
		for name := range report.PerPersonShiftCounts {
			names = append(names, name)
		}
		sort.Strings(names)

		builder.WriteString("  shifts per person:\n")
		for _, name := range names {
			builder.WriteString(fmt.Sprintf("    %s: %d\n", name, report.PerPersonShiftCounts[name]))
		}
	}

	if len(report.Messages) == 0 {
		builder.WriteString("No validation messages.\n")
		return builder.String()
	}

	builder.WriteString(fmt.Sprintf("\n%d message(s):\n", len(report.Messages)))
	for i, msg := range report.Messages {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, msg))
	}

	return builder.String()
}

// WriteErrorLog writes the formatted report to a text file.
func WriteErrorLog(report *types.ValidationReport, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.WriteString(FormatReport(report)); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return writer.Flush()
}
