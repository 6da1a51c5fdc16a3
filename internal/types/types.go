// =============================================================================
// Roster Importer - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - csvparser / xlsxparser (Table, RawRow, Value)
//   - schema                 (ColumnMapping, SchemaError)
//   - validation             (CanonicalRecord, ValidationReport)
//   - audit                  (BalanceAudit)
//   - importer / store       (Employee, ShiftType, Schedule, ImportResult)
//
// =============================================================================

package types

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// RAW INPUT TYPES
// =============================================================================

// ValueKind tells what a raw cell held before any interpretation.
type ValueKind int

const (
	// KindBlank is an empty cell (or a cell holding only whitespace).
	KindBlank ValueKind = iota
	// KindText is a text cell.
	KindText
	// KindNumber is a numeric cell. Text holds its decimal representation.
	KindNumber
	// KindTime is a native date/time cell (spreadsheet inputs only).
	KindTime
)

// Value is a single raw cell.
type Value struct {
	Kind ValueKind
	Text string
	Time time.Time
}

// TextValue builds a Value from text, classifying blanks.
func TextValue(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{Kind: KindBlank, Text: s}
	}
	return Value{Kind: KindText, Text: s}
}

// NumberValue builds a numeric Value from its decimal text.
func NumberValue(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Value{Kind: KindBlank, Text: s}
	}
	return Value{Kind: KindNumber, Text: s}
}

// TimeValue builds a native date/time Value.
func TimeValue(t time.Time) Value {
	return Value{Kind: KindTime, Time: t, Text: t.Format("2006-01-02")}
}

// IsBlank reports whether the cell is empty.
func (v Value) IsBlank() bool {
	return v.Kind == KindBlank
}

// String returns the cell's text form.
func (v Value) String() string {
	return v.Text
}

// RawRow is one data row of the input, in column order.
type RawRow struct {
	// Index is the 1-based physical row number in the source file
	// (the header row is row 1).
	Index int

	// Cells holds the raw values in column order.
	Cells []Value
}

// Cell returns the value at column col, or a blank Value when the column
// is absent or out of range.
func (r RawRow) Cell(col int) Value {
	if col < 0 || col >= len(r.Cells) {
		return Value{Kind: KindBlank}
	}
	return r.Cells[col]
}

// IsEmpty reports whether every cell of the row is blank.
func (r RawRow) IsEmpty() bool {
	for _, c := range r.Cells {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// Table is a parsed tabular roster: header labels plus data rows.
type Table struct {
	// Headers contains the column labels exactly as read (trimmed).
	Headers []string

	// Rows contains the data rows in file order.
	Rows []RawRow

	// Source is the file the table was read from, for logs and import logs.
	Source string
}

// FirstRow returns the cells of the first data row, or nil.
func (t *Table) FirstRow() []Value {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[0].Cells
}

// =============================================================================
// COLUMN MAPPING
// =============================================================================

// Format is the column-layout dialect of an input file.
type Format string

const (
	FormatUnknown    Format = "unknown"
	FormatThreeField Format = "three_field"
	FormatFiveField  Format = "five_field"
)

// NoColumn marks a role that could not be resolved.
const NoColumn = -1

// ColumnMapping resolves column roles to column positions.
type ColumnMapping struct {
	Format       Format
	Name         int
	EmployeeCode int
	YearMonth    int
	Day          int
	Shift        int
	Date         int

	// Strategy names the detection strategy that produced this mapping.
	Strategy string

	// HeaderOffset is the number of leading data rows that turned out to be
	// header rows and must not be validated.
	HeaderOffset int
}

// NewColumnMapping returns a mapping with every role unresolved.
func NewColumnMapping() ColumnMapping {
	return ColumnMapping{
		Format:       FormatUnknown,
		Name:         NoColumn,
		EmployeeCode: NoColumn,
		YearMonth:    NoColumn,
		Day:          NoColumn,
		Shift:        NoColumn,
		Date:         NoColumn,
	}
}

// HasDate reports whether a single date column is resolved.
func (m ColumnMapping) HasDate() bool { return m.Date != NoColumn }

// HasSplitDate reports whether the year-month/day pair is resolved.
func (m ColumnMapping) HasSplitDate() bool {
	return m.YearMonth != NoColumn && m.Day != NoColumn
}

// =============================================================================
// CANONICAL RECORDS
// =============================================================================

// CanonicalRecord is a validated, normalized roster row.
type CanonicalRecord struct {
	RowIndex           int       `yaml:"row" json:"row"`
	EmployeeName       string    `yaml:"employee_name" json:"employee_name"`
	EmployeeCode       string    `yaml:"employee_code,omitempty" json:"employee_code,omitempty"`
	Date               time.Time `yaml:"date" json:"date"`
	RawShiftCode       string    `yaml:"raw_shift_code" json:"raw_shift_code"`
	CanonicalShiftCode string    `yaml:"canonical_shift_code" json:"canonical_shift_code"`
	IsBlank            bool      `yaml:"is_blank" json:"is_blank"`
	IsCompound         bool      `yaml:"is_compound" json:"is_compound"`
	CompoundSuffix     string    `yaml:"compound_suffix,omitempty" json:"compound_suffix,omitempty"`

	// ImportCode is the shift-type code the importer resolves. It equals
	// CanonicalShiftCode except for forced, unmapped compound codes, where
	// it keeps the cleaned compound string.
	ImportCode string `yaml:"import_code" json:"import_code"`
}

// DateKey returns the ISO date of the record.
func (r CanonicalRecord) DateKey() string {
	return r.Date.Format("2006-01-02")
}

// =============================================================================
// VALIDATION REPORT
// =============================================================================

// Severity is the outcome level of a row or a report.
type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	// SeveritySkipped marks rows filtered out by membership. They are
	// neither valid nor errors.
	SeveritySkipped Severity = "skipped"
)

// Status is the overall status of a validation report.
type Status string

const (
	StatusOK      Status = "OK"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
)

// ValidationOutcome is the result for one source row.
type ValidationOutcome struct {
	RowIndex int      `yaml:"row" json:"row"`
	Severity Severity `yaml:"severity" json:"severity"`
	Messages []string `yaml:"messages,omitempty" json:"messages,omitempty"`
}

// Duplicate describes a repeated (employee, date) pair.
type Duplicate struct {
	EmployeeName string `yaml:"employee_name" json:"employee_name"`
	Date         string `yaml:"date" json:"date"`
	FirstRow     int    `yaml:"first_row" json:"first_row"`
	Row          int    `yaml:"row" json:"row"`

	// Label is the shared code for exact duplicates, or "A/B" when the two
	// rows assign different codes.
	Label    string `yaml:"label" json:"label"`
	Conflict bool   `yaml:"conflict" json:"conflict"`
}

// UnevenEntry is an employee whose shift count strays from the mean.
type UnevenEntry struct {
	EmployeeName string `yaml:"employee_name" json:"employee_name"`
	Count        int    `yaml:"count" json:"count"`
	Expected     int    `yaml:"expected" json:"expected"`
}

// BalanceAudit is the per-employee shift-count balance result.
type BalanceAudit struct {
	IsValid            bool           `yaml:"is_valid" json:"is_valid"`
	Counts             map[string]int `yaml:"counts" json:"counts"`
	PartTime           []string       `yaml:"part_time,omitempty" json:"part_time,omitempty"`
	Min                int            `yaml:"min" json:"min"`
	Max                int            `yaml:"max" json:"max"`
	Mean               float64        `yaml:"mean" json:"mean"`
	Spread             int            `yaml:"spread" json:"spread"`
	UnevenDistribution []UnevenEntry  `yaml:"uneven_distribution,omitempty" json:"uneven_distribution,omitempty"`
	Errors             []string       `yaml:"errors,omitempty" json:"errors,omitempty"`
	Warnings           []string       `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}

// ValidationReport is the complete, always-produced validation result.
type ValidationReport struct {
	TotalRows            int                 `yaml:"total_rows" json:"total_rows"`
	ValidCount           int                 `yaml:"valid_count" json:"valid_count"`
	WarningCount         int                 `yaml:"warning_count" json:"warning_count"`
	ErrorCount           int                 `yaml:"error_count" json:"error_count"`
	SkippedCount         int                 `yaml:"skipped_count" json:"skipped_count"`
	Messages             []string            `yaml:"messages" json:"messages"`
	Outcomes             []ValidationOutcome `yaml:"outcomes" json:"outcomes"`
	PerPersonShiftCounts map[string]int      `yaml:"per_person_shift_counts" json:"per_person_shift_counts"`
	Duplicates           []Duplicate         `yaml:"duplicates,omitempty" json:"duplicates,omitempty"`
	SingleStaffingDates  []string            `yaml:"single_staffing_dates,omitempty" json:"single_staffing_dates,omitempty"`
	Balance              *BalanceAudit       `yaml:"balance,omitempty" json:"balance,omitempty"`
	OverallStatus        Status              `yaml:"overall_status" json:"overall_status"`
	Mapping              ColumnMapping       `yaml:"-" json:"-"`

	// Records holds the accepted records, in source order, ready for import.
	Records []CanonicalRecord `yaml:"-" json:"-"`
}

// Finalize derives OverallStatus from the error and warning counts.
func (r *ValidationReport) Finalize() {
	switch {
	case r.ErrorCount > 0:
		r.OverallStatus = StatusError
	case r.WarningCount > 0:
		r.OverallStatus = StatusWarning
	default:
		r.OverallStatus = StatusOK
	}
}

// =============================================================================
// PERSISTED ENTITIES
// =============================================================================

// Employee is a persisted employee.
type Employee struct {
	ID        int64
	Name      string
	Code      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShiftType is a persisted shift type. StartTime and EndTime are "HH:MM".
type ShiftType struct {
	ID        int64
	Code      string
	Name      string
	StartTime string
	EndTime   string
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Schedule is one employee's assignment on one date.
type Schedule struct {
	ID          int64
	EmployeeID  int64
	ShiftTypeID int64
	Date        time.Time
	ImportBatch string
	ImportOrder int
	ImportedAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ImportLog is the audit trail of one import request.
type ImportLog struct {
	ID               int64
	BatchID          string
	Importer         string
	Filename         string
	ImportedAt       time.Time
	DataVersion      string
	TargetGroup      string
	ValidationResult Status
	ForceImport      bool
	ErrorCount       int
	WarningCount     int
	RecordsImported  int
	Messages         []string
}

// ImportResult summarises an import pass.
type ImportResult struct {
	CreatedCount int    `yaml:"created_count" json:"created_count"`
	UpdatedCount int    `yaml:"updated_count" json:"updated_count"`
	SkippedCount int    `yaml:"skipped_count" json:"skipped_count"`
	ClearedCount int    `yaml:"cleared_count,omitempty" json:"cleared_count,omitempty"`
	BatchID      string `yaml:"batch_id" json:"batch_id"`
	Commits      int    `yaml:"commits" json:"commits"`
}

// Imported returns the number of schedules written.
func (r ImportResult) Imported() int {
	return r.CreatedCount + r.UpdatedCount
}

// =============================================================================
// ERRORS
// =============================================================================

// SchemaError reports that the required column roles could not be resolved.
// It is fatal for the whole batch.
type SchemaError struct {
	Headers []string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: cannot resolve %s column(s) from headers %q",
		strings.Join(e.Missing, ", "), e.Headers)
}

// InfrastructureError wraps a failure of the persistence collaborator itself.
// The in-progress batch is rolled back when it is returned.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure failure during %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}
