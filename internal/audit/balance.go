// =============================================================================
// Roster Importer - Shift-Balance Auditor
// =============================================================================
//
// Checks that worked shifts are spread evenly across full-time employees.
//
// COUNTING RULES:
//   - A record counts when its canonical code is neither blank nor a leave
//     code (OFF, H0, H1, ...).
//   - Employees whose every record is blank are part-time and left out of
//     the comparison.
//
// VERDICT:
//   - spread = max - min of the counts
//   - spread > MaxSpread        -> error, IsValid = false
//   - 0 < spread <= MaxSpread   -> warning
//   - |count - round(mean)| > MaxDeviation -> listed as uneven (informational)
//
// =============================================================================

package audit

import (
	"fmt"
	"math"

	"github.com/ginjaninja78/roster-importer/internal/types"
)

// Options configures the audit.
type Options struct {
	// LeaveCodes are canonical codes that are not worked shifts.
	LeaveCodes []string

	// MaxSpread is the largest spread that is only a warning.
	MaxSpread int

	// MaxDeviation is the allowed distance from round(mean).
	MaxDeviation int
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		LeaveCodes:   []string{"OFF", "H0", "H1", "H2"},
		MaxSpread:    2,
		MaxDeviation: 1,
	}
}

// Audit computes the balance of the accepted records.
func Audit(records []types.CanonicalRecord, opts Options) *types.BalanceAudit {
	leave := make(map[string]bool, len(opts.LeaveCodes))
	for _, c := range opts.LeaveCodes {
		leave[c] = true
	}

	counts := make(map[string]int)
	nonBlank := make(map[string]bool)
	var order []string

	for _, r := range records {
		if _, seen := counts[r.EmployeeName]; !seen {
			counts[r.EmployeeName] = 0
			order = append(order, r.EmployeeName)
		}
		if r.IsBlank {
			continue
		}
		nonBlank[r.EmployeeName] = true
		if !leave[r.CanonicalShiftCode] {
			counts[r.EmployeeName]++
		}
	}

	result := &types.BalanceAudit{IsValid: true, Counts: make(map[string]int)}
	for _, name := range order {
		if !nonBlank[name] {
			result.PartTime = append(result.PartTime, name)
			continue
		}
		result.Counts[name] = counts[name]
	}

	return evaluate(result, order, opts)
}

func evaluate(result *types.BalanceAudit, order []string, opts Options) *types.BalanceAudit {
	if len(result.Counts) == 0 {
		return result
	}

	first := true
	total := 0
	for _, n := range result.Counts {
		if first || n < result.Min {
			result.Min = n
		}
		if first || n > result.Max {
			result.Max = n
		}
		first = false
		total += n
	}
	result.Mean = float64(total) / float64(len(result.Counts))
	result.Spread = result.Max - result.Min

	switch {
	case result.Spread > opts.MaxSpread:
		result.IsValid = false
		result.Errors = append(result.Errors, fmt.Sprintf(
			"shift counts spread %d exceeds %d (min %d, max %d)",
			result.Spread, opts.MaxSpread, result.Min, result.Max))
	case result.Spread > 0:
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"shift counts spread %d (min %d, max %d)", result.Spread, result.Min, result.Max))
	}

	expected := int(math.Round(result.Mean))
	for _, name := range order {
		n, ok := result.Counts[name]
		if !ok {
			continue
		}
		if abs(n-expected) > opts.MaxDeviation {
			result.UnevenDistribution = append(result.UnevenDistribution, types.UnevenEntry{
				EmployeeName: name,
				Count:        n,
				Expected:     expected,
			})
		}
	}

	return result
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
