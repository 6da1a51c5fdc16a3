// =============================================================================
// Roster Importer - Schema Detector
// =============================================================================
//
// This module resolves which column holds which role (name, employee code,
// year-month, day, date, shift) from the header labels of a roster file.
//
// Roster files come in two dialects:
//
//   FIVE-FIELD:  姓名 | 員工代碼 | 年月 | 日 | 班別
//   THREE-FIELD: 姓名 | 日期 | 班別
//
// and in many variations of both (English labels, extra columns, titles
// above the real header row). Detection is an ordered list of strategies;
// the first strategy that resolves the columns wins.
//
//   1. five-field          strict labels, >= 5 columns
//   2. three-field         strict labels, exactly 3 columns
//   3. loose               substring matching, any column count
//   4. header-on-data-row  the real header is the first data row
//
// CUSTOMIZATION:
//   - Add labels to the keyword lists below
//   - Add a strategy to DefaultStrategies (order matters)
//
// =============================================================================

package schema

import (
	"strings"

	"golang.org/x/text/width"

	"github.com/ginjaninja78/roster-importer/internal/types"
)

// =============================================================================
// KEYWORDS
// =============================================================================

type role int

const (
	roleName role = iota
	roleEmployeeCode
	roleYearMonth
	roleDay
	roleShift
)

func (r role) String() string {
	switch r {
	case roleName:
		return "name"
	case roleEmployeeCode:
		return "employee code"
	case roleYearMonth:
		return "year-month"
	case roleDay:
		return "date"
	default:
		return "shift"
	}
}

var (
	nameLabels  = []string{"name", "employee name", "姓名", "員工姓名"}
	dayLabels   = []string{"date", "day", "日期", "日"}
	shiftLabels = []string{"shift", "shift code", "roster", "班別", "班次", "班表"}

	codeLabels      = []string{"員工代碼", "員工編號", "工號"}
	yearMonthTokens = []string{"year-month", "yearmonth", "year month", "年月"}

	looseNameTokens  = []string{"name", "姓名"}
	looseDayTokens   = []string{"date", "day", "日期"}
	looseShiftTokens = []string{"shift", "roster", "班"}
)

// resolutionOrder lets the shift role claim "shift code" before the
// employee-code rule, which matches any label containing "code".
var resolutionOrder = []role{roleName, roleYearMonth, roleDay, roleShift, roleEmployeeCode}

func strictMatch(r role, label string) bool {
	switch r {
	case roleName:
		return equalsAny(label, nameLabels)
	case roleEmployeeCode:
		return isCodeLike(label)
	case roleYearMonth:
		return containsAny(label, yearMonthTokens)
	case roleDay:
		return equalsAny(label, dayLabels)
	default:
		return equalsAny(label, shiftLabels)
	}
}

func looseMatch(r role, label string) bool {
	switch r {
	case roleName:
		return containsAny(label, looseNameTokens)
	case roleEmployeeCode:
		return isCodeLike(label)
	case roleYearMonth:
		return containsAny(label, yearMonthTokens)
	case roleDay:
		return containsAny(label, looseDayTokens)
	default:
		return containsAny(label, looseShiftTokens)
	}
}

func isCodeLike(label string) bool {
	if containsAny(label, looseShiftTokens) {
		return false
	}
	return strings.Contains(label, "code") || equalsAny(label, codeLabels)
}

// =============================================================================
// STRATEGIES
// =============================================================================

// Input is what a strategy sees: normalized labels and the normalized
// text of the first data row.
type Input struct {
	Labels   []string
	FirstRow []string
	RowCount int
}

// Strategy is one detection attempt. Detect returns false when the
// strategy does not apply or cannot resolve both the name and shift columns.
type Strategy struct {
	Name   string
	Detect func(in Input) (types.ColumnMapping, bool)
}

// DefaultStrategies returns the detection strategies in evaluation order.
func DefaultStrategies() []Strategy {
	base := []Strategy{
		{Name: "five-field", Detect: detectFiveField},
		{Name: "three-field", Detect: detectThreeField},
		{Name: "loose", Detect: detectLoose},
	}
	return append(base, Strategy{Name: "header-on-data-row", Detect: headerOnDataRow(base)})
}

// detectFiveField handles the 姓名/員工代碼/年月/日/班別 layout.
func detectFiveField(in Input) (types.ColumnMapping, bool) {
	if len(in.Labels) < 5 {
		return types.ColumnMapping{}, false
	}
	if !anyLabel(in.Labels, isCodeLike) && !anyLabel(in.Labels, func(l string) bool {
		return containsAny(l, yearMonthTokens)
	}) {
		return types.ColumnMapping{}, false
	}

	cols := resolve(in.Labels, strictMatch)
	m := build(cols)
	if m.YearMonth == types.NoColumn || m.Day == types.NoColumn {
		return types.ColumnMapping{}, false
	}
	m.Format = types.FormatFiveField
	return m, m.Name != types.NoColumn && m.Shift != types.NoColumn
}

// detectThreeField handles the 姓名/日期/班別 layout.
func detectThreeField(in Input) (types.ColumnMapping, bool) {
	if len(in.Labels) != 3 {
		return types.ColumnMapping{}, false
	}

	cols := resolve(in.Labels, strictMatch)
	m := build(cols)
	if m.Day == types.NoColumn {
		return types.ColumnMapping{}, false
	}
	m.Date, m.Day = m.Day, types.NoColumn
	m.Format = types.FormatThreeField
	return m, m.Name != types.NoColumn && m.Shift != types.NoColumn
}

// detectLoose matches substrings and derives the format from whichever
// date columns were found.
func detectLoose(in Input) (types.ColumnMapping, bool) {
	cols := resolve(in.Labels, looseMatch)
	m := build(cols)

	switch {
	case m.YearMonth != types.NoColumn && m.Day != types.NoColumn:
		m.Format = types.FormatFiveField
	case m.Day != types.NoColumn:
		m.Date, m.Day = m.Day, types.NoColumn
		m.YearMonth = types.NoColumn
		m.Format = types.FormatThreeField
	default:
		m.YearMonth, m.Day = types.NoColumn, types.NoColumn
		m.Format = types.FormatUnknown
	}
	return m, m.Name != types.NoColumn && m.Shift != types.NoColumn
}

// headerOnDataRow retries the given strategies against the first data row
// when that row holds a name label.
func headerOnDataRow(inner []Strategy) func(in Input) (types.ColumnMapping, bool) {
	return func(in Input) (types.ColumnMapping, bool) {
		if in.RowCount == 0 || !anyLabel(in.FirstRow, func(l string) bool {
			return equalsAny(l, nameLabels)
		}) {
			return types.ColumnMapping{}, false
		}

		shifted := Input{Labels: in.FirstRow, RowCount: in.RowCount - 1}
		for _, s := range inner {
			if m, ok := s.Detect(shifted); ok {
				m.Strategy = "header-on-data-row/" + s.Name
				m.HeaderOffset = 1
				return m, true
			}
		}
		return types.ColumnMapping{}, false
	}
}

// =============================================================================
// DETECTOR
// =============================================================================

// Detector resolves column mappings with an ordered strategy list.
type Detector struct {
	strategies []Strategy
}

// NewDetector creates a Detector. With no strategies it uses
// DefaultStrategies.
func NewDetector(strategies ...Strategy) *Detector {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Detector{strategies: strategies}
}

// Detect resolves the column mapping for a table.
//
// PARAMETERS:
//   - headers: the header labels as read
//   - firstRow: the first data row, used when the header is misplaced
//   - rowCount: the number of data rows
//
// RETURNS:
//   - The mapping of the first strategy that succeeds.
//   - *types.SchemaError when no strategy resolves both the name and the
//     shift column.
func (d *Detector) Detect(headers []string, firstRow []types.Value, rowCount int) (types.ColumnMapping, error) {
	in := Input{Labels: normalizeLabels(headers), RowCount: rowCount}
	if rowCount > 0 {
		cells := make([]string, len(firstRow))
		for i, v := range firstRow {
			cells[i] = NormalizeLabel(v.Text)
		}
		in.FirstRow = cells
	}

	for _, s := range d.strategies {
		m, ok := s.Detect(in)
		if !ok {
			continue
		}
		if m.Strategy == "" {
			m.Strategy = s.Name
		}
		return m, nil
	}

	return types.NewColumnMapping(), &types.SchemaError{
		Headers: headers,
		Missing: missingRoles(in.Labels),
	}
}

// Detect resolves a column mapping with the default strategies.
func Detect(headers []string, firstRow []types.Value, rowCount int) (types.ColumnMapping, error) {
	return NewDetector().Detect(headers, firstRow, rowCount)
}

// =============================================================================
// HELPERS
// =============================================================================

// NormalizeLabel trims, folds full-width characters, lower-cases and
// collapses internal whitespace. Underscores count as spaces.
func NormalizeLabel(s string) string {
	s = width.Fold.String(s)
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func normalizeLabels(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = NormalizeLabel(h)
	}
	return out
}

// resolve assigns each role the first unclaimed column whose label
// matches. Later matches for a role are ignored.
func resolve(labels []string, match func(role, string) bool) map[role]int {
	cols := make(map[role]int, len(resolutionOrder))
	claimed := make(map[int]bool, len(labels))

	for _, r := range resolutionOrder {
		cols[r] = types.NoColumn
		for i, label := range labels {
			if claimed[i] || label == "" {
				continue
			}
			if match(r, label) {
				cols[r] = i
				claimed[i] = true
				break
			}
		}
	}
	return cols
}

func build(cols map[role]int) types.ColumnMapping {
	m := types.NewColumnMapping()
	m.Name = cols[roleName]
	m.EmployeeCode = cols[roleEmployeeCode]
	m.YearMonth = cols[roleYearMonth]
	m.Day = cols[roleDay]
	m.Shift = cols[roleShift]
	return m
}

func missingRoles(labels []string) []string {
	cols := resolve(labels, looseMatch)
	var missing []string
	for _, r := range []role{roleName, roleShift} {
		if cols[r] == types.NoColumn {
			missing = append(missing, r.String())
		}
	}
	return missing
}

func equalsAny(label string, candidates []string) bool {
	for _, c := range candidates {
		if label == c {
			return true
		}
	}
	return false
}

func containsAny(label string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(label, t) {
			return true
		}
	}
	return false
}

func anyLabel(labels []string, pred func(string) bool) bool {
	for _, l := range labels {
		if pred(l) {
			return true
		}
	}
	return false
}
