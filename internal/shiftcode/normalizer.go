// =============================================================================
// Roster Importer - Shift Code Normalizer
// =============================================================================
//
// This module canonicalizes the raw text of a shift cell. Roster files are
// produced by hand and carry a lot of decoration around the actual code:
//
//   "P4n\n13-22"   code plus a time range on a second line  -> "P4n"
//   "P1p 22-06"    code followed by a time range            -> "P1p"
//   "ＦＣ／工程"    full-width letters and slash              -> "FC"
//   "FC/工程"      compound code with a known mapping       -> "FC"
//   "P2c/支援"     compound code without a mapping          -> "P2c" (suffix kept)
//   "", "nan"      blank cell                               -> Blank
//
// CUSTOMIZATION:
//   - Add compound mappings in config.yaml under shift_codes.mappings
//   - Add blank tokens to blankTokens if a new export tool uses another marker
//
// =============================================================================

package shiftcode

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"

	"github.com/ginjaninja78/roster-importer/internal/types"
)

// Separator splits a compound code into its base and suffix.
const Separator = "/"

// blankTokens are the cell texts that mean "no value". They come from
// spreadsheet exports and dataframe dumps.
var blankTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"null": true,
	"nat":  true,
	"<na>": true,
	"-":    true,
}

// timeRangePattern matches a trailing "HH-HH" / "HH:MM~HH:MM" annotation,
// optionally wrapped in parentheses, separated from the code by whitespace
// or an opening parenthesis.
var timeRangePattern = regexp.MustCompile(
	`(?:\s+|\s*\()\d{1,2}(?::\d{2})?\s*[-~]\s*\d{1,2}(?::\d{2})?\)?\s*$`)

// =============================================================================
// CODE STRUCTURE
// =============================================================================

// Code is the normalized form of one shift cell.
type Code struct {
	// Canonical is the code used for registry lookups and balance counts.
	// Empty when Blank is true.
	Canonical string

	// Original is the cell text exactly as read.
	Original string

	// Cleaned is the text after width folding and annotation stripping,
	// before compound resolution. Forced imports register this string for
	// unmapped compound codes.
	Cleaned string

	// Blank marks an empty cell. It is never a real code.
	Blank bool

	// Compound is true when the cleaned text contained Separator.
	Compound bool

	// Suffix is the text right of Separator for compound codes.
	Suffix string

	// Mapped is true when Canonical came from the mapping table.
	Mapped bool
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer canonicalizes shift cells against a compound mapping table.
// A Normalizer is immutable after construction and safe to share.
type Normalizer struct {
	mappings map[string]string
}

// DefaultMappings returns the built-in compound mappings. Every call returns
// a fresh map.
func DefaultMappings() map[string]string {
	return map[string]string{
		"FC/工程":  "FC",
		"FC/急救課": "FC",
		"P1n/夜超": "P1n",
		"P3n/夜超": "P3n",
		"P1p/ME":  "P1p",
		"P2p/LD":  "P2p",
	}
}

// NewNormalizer creates a Normalizer.
//
// PARAMETERS:
//   - mappings: compound code -> canonical code. A nil map selects
//     DefaultMappings; an empty non-nil map disables mapping.
func NewNormalizer(mappings map[string]string) *Normalizer {
	if mappings == nil {
		mappings = DefaultMappings()
	}

	n := &Normalizer{mappings: make(map[string]string, len(mappings))}
	for from, to := range mappings {
		n.mappings[mappingKey(from)] = strings.TrimSpace(width.Fold.String(to))
	}
	return n
}

// Normalize canonicalizes a raw cell value.
func (n *Normalizer) Normalize(raw types.Value) Code {
	if raw.Kind == types.KindBlank {
		return Code{Original: raw.Text, Blank: true}
	}
	return n.NormalizeText(raw.Text)
}

// NormalizeText canonicalizes raw shift text.
//
// STEPS:
//   1. Blank tokens ("", "nan", "none", ...) -> Blank
//   2. Fold full-width characters to ASCII
//   3. Keep the first non-empty line
//   4. Drop a trailing time-range annotation
//   5. Resolve compound codes via the mapping table, else keep the base
func (n *Normalizer) NormalizeText(raw string) Code {
	code := Code{Original: raw}

	text := width.Fold.String(raw)
	text = firstLine(text)
	if IsBlankToken(text) {
		code.Blank = true
		return code
	}

	if loc := timeRangePattern.FindStringIndex(text); loc != nil && loc[0] > 0 {
		text = strings.TrimSpace(text[:loc[0]])
	}

	code.Cleaned = text

	if canonical, ok := n.mappings[mappingKey(text)]; ok {
		code.Canonical = canonical
		code.Mapped = true
	}

	if base, suffix, found := strings.Cut(text, Separator); found {
		code.Compound = true
		code.Suffix = strings.TrimSpace(suffix)
		if !code.Mapped {
			code.Canonical = strings.TrimSpace(base)
			if code.Canonical == "" {
				code.Canonical = text
			}
		}
		return code
	}

	if !code.Mapped {
		code.Canonical = text
	}
	return code
}

// IsBlankToken reports whether s is one of the "no value" markers.
func IsBlankToken(s string) bool {
	return blankTokens[strings.ToLower(strings.TrimSpace(s))]
}

// firstLine returns the first non-empty trimmed line of s.
func firstLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// mappingKey normalizes a mapping table key: folded width, no spaces
// around the separator.
func mappingKey(s string) string {
	s = strings.TrimSpace(width.Fold.String(s))
	if base, suffix, found := strings.Cut(s, Separator); found {
		return strings.TrimSpace(base) + Separator + strings.TrimSpace(suffix)
	}
	return s
}
