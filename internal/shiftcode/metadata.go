// =============================================================================
// Roster Importer - Shift Metadata Heuristics
// =============================================================================
//
// Shift types created during an import need a display name, a time window
// and a calendar color. None of this is known from the roster file, so it is
// guessed from the code prefix. The values are display metadata only.
//
// =============================================================================

package shiftcode

import "strings"

// Metadata is the display information of a shift type.
type Metadata struct {
	Name  string
	Start string
	End   string
	Color string
}

// Rule maps exact codes or a code prefix to metadata. In Name, "%s" is
// replaced by the code.
type Rule struct {
	Codes  []string
	Prefix string
	Name   string
	Start  string
	End    string
	Color  string
}

func (r Rule) matches(code string) bool {
	for _, c := range r.Codes {
		if c == code {
			return true
		}
	}
	return r.Prefix != "" && strings.HasPrefix(code, r.Prefix)
}

// fallbackRule applies when no rule matches.
var fallbackRule = Rule{Name: "%s班", Start: "09:00", End: "18:00", Color: "#868e96"}

// DefaultRules returns the built-in metadata table. Exact-code rules come
// before the prefix rules that would otherwise shadow them.
func DefaultRules() []Rule {
	return []Rule{
		{Codes: []string{"H0", "H1", "H2"}, Name: "休假(%s)", Start: "00:00", End: "00:00", Color: "#6c757d"},
		{Codes: []string{"FC"}, Name: "FC班", Start: "09:00", End: "18:00", Color: "#007bff"},
		{Codes: []string{"NT", "CH"}, Name: "%s班", Start: "09:00", End: "18:00", Color: "#343a40"},
		{Codes: []string{"FX"}, Name: "FX班", Start: "10:00", End: "19:00", Color: "#495057"},
		{Prefix: "P1", Name: "P1班(%s)", Start: "08:00", End: "17:00", Color: "#28a745"},
		{Prefix: "P2", Name: "P2班(%s)", Start: "14:00", End: "23:00", Color: "#ffc107"},
		{Prefix: "P3", Name: "P3班(%s)", Start: "17:00", End: "02:00", Color: "#fd7e14"},
		{Prefix: "P4", Name: "P4班(%s)", Start: "20:00", End: "05:00", Color: "#dc3545"},
		{Prefix: "P5", Name: "P5班(%s)", Start: "22:00", End: "07:00", Color: "#6f42c1"},
		{Prefix: "N", Name: "N班(%s)", Start: "19:00", End: "04:00", Color: "#20c997"},
		{Prefix: "E", Name: "E班(%s)", Start: "07:00", End: "16:00", Color: "#17a2b8"},
		{Prefix: "C", Name: "C班(%s)", Start: "16:00", End: "01:00", Color: "#e83e8c"},
		{Prefix: "R", Name: "R班(%s)", Start: "12:00", End: "21:00", Color: "#6610f2"},
	}
}

// MetadataTable looks up display metadata for shift codes.
type MetadataTable struct {
	rules []Rule
}

// NewMetadataTable creates a table. A nil slice selects DefaultRules.
func NewMetadataTable(rules []Rule) *MetadataTable {
	if rules == nil {
		rules = DefaultRules()
	}
	return &MetadataTable{rules: rules}
}

// Lookup returns the metadata of the first matching rule, or the fallback.
func (t *MetadataTable) Lookup(code string) Metadata {
	rule := fallbackRule
	for _, r := range t.rules {
		if r.matches(code) {
			rule = r
			break
		}
	}
	return Metadata{
		Name:  strings.ReplaceAll(rule.Name, "%s", code),
		Start: rule.Start,
		End:   rule.End,
		Color: rule.Color,
	}
}

// =============================================================================
// DEFAULT SHIFT TYPES
// =============================================================================

// SeedEntry is one shift type created by the seed command.
type SeedEntry struct {
	Code  string
	Name  string
	Start string
	End   string
	Color string
}

// DefaultSeed returns the shift types a fresh database starts with.
func DefaultSeed() []SeedEntry {
	return []SeedEntry{
		{"A", "早班", "08:00", "16:00", "#28a745"},
		{"B", "中班", "16:00", "00:00", "#ffc107"},
		{"C", "晚班", "00:00", "08:00", "#dc3545"},
		{"OFF", "休假", "00:00", "00:00", "#6c757d"},

		{"FC", "消防班", "08:00", "17:00", "#fd7e14"},
		{"FC/工程", "FC工程班", "08:00", "17:00", "#fd7e14"},
		{"FC/急救課", "FC急救課", "08:00", "17:00", "#fd7e14"},
		{"FX", "固定班", "09:00", "17:00", "#17a2b8"},

		{"P1s", "P1早班", "06:00", "14:00", "#28a745"},
		{"P1s2", "P1早班2", "07:00", "15:00", "#198754"},
		{"P1c", "P1中班", "14:00", "22:00", "#ffc107"},
		{"P1c2", "P1中班2", "07:00", "15:00", "#20c997"},
		{"P1n", "P1夜班", "19:00", "07:00", "#e83e8c"},
		{"P1n/夜超", "P1夜超班", "19:00", "07:00", "#dc3545"},
		{"P1p", "P1晚班", "22:00", "06:00", "#dc3545"},
		{"P1p2", "P1晚班2", "20:00", "04:00", "#6f42c1"},
		{"P1p/ME", "P1晚班/ME", "22:00", "06:00", "#dc3545"},

		{"P2s", "P2早班", "06:00", "14:00", "#198754"},
		{"P2c", "P2中班", "14:00", "22:00", "#fd7e14"},
		{"P2n", "P2夜班", "22:00", "06:00", "#6610f2"},
		{"P2p", "P2晚班", "22:00", "06:00", "#0dcaf0"},
		{"P2p/LD", "P2晚班/LD", "22:00", "06:00", "#0dcaf0"},

		{"P3c", "P3中班", "14:00", "22:00", "#fd7e14"},
		{"P3n", "P3夜班", "22:00", "06:00", "#e83e8c"},
		{"P3n/夜超", "P3夜超班", "22:00", "06:00", "#e83e8c"},
		{"P3p", "P3晚班", "20:00", "04:00", "#6f42c1"},

		{"P4c", "P4中班", "14:00", "22:00", "#fd7e14"},
		{"P4n", "P4夜班", "20:00", "08:00", "#6610f2"},
		{"P4p", "P4晚班", "22:00", "06:00", "#dc3545"},

		{"P5", "P5班", "08:00", "16:00", "#198754"},
		{"P6", "P6班", "16:00", "00:00", "#0dcaf0"},

		{"C1", "C1班", "08:00", "16:00", "#28a745"},
		{"C3", "C3班", "16:00", "00:00", "#dc3545"},

		{"N1", "N1夜班", "00:00", "08:00", "#6610f2"},
		{"N2", "N2夜班", "22:00", "06:00", "#e83e8c"},

		{"E1", "E1班", "08:00", "16:00", "#fd7e14"},
		{"R1", "R1班", "09:00", "17:00", "#17a2b8"},

		{"H0", "休假-週末", "00:00", "00:00", "#6c757d"},
		{"H1", "休假-平日", "00:00", "00:00", "#6f42c1"},

		{"舞台", "舞台班", "08:00", "17:00", "#6c757d"},
	}
}
