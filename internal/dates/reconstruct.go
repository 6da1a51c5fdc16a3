// =============================================================================
// Roster Importer - Date Reconstructor
// =============================================================================
//
// Roster files carry dates in two shapes:
//
//   THREE-FIELD: one date cell ("2024-10-05", "2024-10-05 00:00:00", or a
//                native spreadsheet date)
//   FIVE-FIELD:  a year-month cell plus a day cell ("114-08" + "01")
//
// Year-month cells are written with a hyphen, a slash, or as six digits, and
// may use the Minguo era (year 114 = 2025). Spreadsheet exports also turn
// integer cells into floats ("202501.0", "5.0"); those are tolerated.
//
// Nothing here returns an error. A date that cannot be built is reported as
// (zero, false) and the caller decides what that means for the row.
//
// =============================================================================

package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/roster-importer/internal/types"
)

// ISOLayout is the date layout used for assembled and reported dates.
const ISOLayout = "2006-01-02"

// EraOffset converts a Minguo year to a Gregorian year.
const EraOffset = 1911

// CalendarSystem selects how a year token in a year-month cell is read.
type CalendarSystem string

const (
	// CalendarAuto treats a 1-3 digit year in the open range (10, 200) as
	// a Minguo year and anything else as Gregorian.
	CalendarAuto CalendarSystem = "auto"

	// CalendarMinguo treats every 1-3 digit year as a Minguo year.
	CalendarMinguo CalendarSystem = "minguo"

	// CalendarGregorian never applies the era offset.
	CalendarGregorian CalendarSystem = "gregorian"
)

// ParseCalendarSystem validates a calendar system name. Empty selects
// CalendarAuto.
func ParseCalendarSystem(s string) (CalendarSystem, error) {
	switch c := CalendarSystem(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CalendarAuto, nil
	case CalendarAuto, CalendarMinguo, CalendarGregorian:
		return c, nil
	default:
		return "", fmt.Errorf("unknown calendar system %q", s)
	}
}

// dateTimeLayouts are the accepted single-cell layouts, tried in order.
var dateTimeLayouts = []string{
	ISOLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

var floatArtifact = regexp.MustCompile(`^(\d+)\.0+$`)

// =============================================================================
// THREE-FIELD PATH
// =============================================================================

// FromCell reads a single date cell: a native date value, or an ISO date or
// date-time string. The time of day is dropped.
func FromCell(v types.Value) (time.Time, bool) {
	switch v.Kind {
	case types.KindTime:
		return truncate(v.Time), true
	case types.KindBlank:
		return time.Time{}, false
	}

	text := strings.TrimSpace(v.Text)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return truncate(t), true
		}
	}
	return time.Time{}, false
}

// =============================================================================
// FIVE-FIELD PATH
// =============================================================================

// FromSplitCells combines a year-month cell and a day cell. Native date
// values contribute their year/month or day of month.
func FromSplitCells(yearMonth, day types.Value, cal CalendarSystem) (time.Time, bool) {
	ym := yearMonth.Text
	if yearMonth.Kind == types.KindTime {
		ym = yearMonth.Time.Format("2006-01")
	}
	d := day.Text
	if day.Kind == types.KindTime {
		d = strconv.Itoa(day.Time.Day())
	}
	return FromYearMonthDay(ym, d, cal)
}

// FromYearMonthDay builds a date from a year-month token and a day token.
//
// PARAMETERS:
//   - yearMonth: "2024-10", "114/08", "202501", "202501.0"
//   - day: "5", "05", "5.0"
//   - cal: how to read 1-3 digit years
//
// RETURNS:
//   - The date at midnight UTC and true, or the zero time and false when
//     any part is malformed or the assembled date does not exist.
func FromYearMonthDay(yearMonth, day string, cal CalendarSystem) (time.Time, bool) {
	yearTok, monthTok, ok := splitYearMonth(stripFloat(yearMonth))
	if !ok {
		return time.Time{}, false
	}

	year, ok := parseYear(yearTok, cal)
	if !ok {
		return time.Time{}, false
	}

	month, err := strconv.Atoi(monthTok)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}

	dayTok := stripFloat(day)
	if !isDigits(dayTok) || len(dayTok) > 2 {
		return time.Time{}, false
	}
	if len(dayTok) == 1 {
		dayTok = "0" + dayTok
	}

	t, err := time.Parse(ISOLayout, fmt.Sprintf("%04d-%02d-%s", year, month, dayTok))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// splitYearMonth tries the hyphen form, then the slash form, then YYYYMM.
func splitYearMonth(s string) (year, month string, ok bool) {
	for _, sep := range []string{"-", "/"} {
		if y, m, found := strings.Cut(s, sep); found {
			y, m = strings.TrimSpace(y), strings.TrimSpace(m)
			if isDigits(y) && isDigits(m) && len(m) <= 2 {
				return y, m, true
			}
			return "", "", false
		}
	}

	if len(s) == 6 && isDigits(s) {
		return s[:4], s[4:], true
	}
	return "", "", false
}

// parseYear converts a year token, applying the era offset where the
// calendar system says so.
func parseYear(tok string, cal CalendarSystem) (int, bool) {
	if len(tok) == 0 || len(tok) > 4 {
		return 0, false
	}
	year, err := strconv.Atoi(tok)
	if err != nil || year <= 0 {
		return 0, false
	}

	short := len(tok) <= 3
	switch cal {
	case CalendarMinguo:
		if short {
			year += EraOffset
		}
	case CalendarGregorian:
	default:
		if short && year > 10 && year < 200 {
			year += EraOffset
		}
	}
	return year, true
}

func stripFloat(s string) string {
	s = strings.TrimSpace(s)
	if m := floatArtifact.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
