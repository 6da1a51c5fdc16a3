package shiftcode

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/roster-importer/internal/types"
)

func TestNormalizeText(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name      string
		raw       string
		canonical string
		blank     bool
		compound  bool
		suffix    string
		mapped    bool
	}{
		{name: "plain code", raw: "P1s", canonical: "P1s"},
		{name: "surrounding spaces", raw: "  FX ", canonical: "FX"},
		{name: "mapped compound", raw: "FC/工程", canonical: "FC", compound: true, suffix: "工程", mapped: true},
		{name: "mapped compound with spaces", raw: "P1n / 夜超", canonical: "P1n", compound: true, suffix: "夜超", mapped: true},
		{name: "unmapped compound keeps base", raw: "P2c/支援", canonical: "P2c", compound: true, suffix: "支援"},
		{name: "time range on next line", raw: "P4n\n13-22", canonical: "P4n"},
		{name: "time range on same line", raw: "P1p 22:00-06:00", canonical: "P1p"},
		{name: "time range in parentheses", raw: "E1(07-16)", canonical: "E1"},
		{name: "crlf and leading blank line", raw: "\r\nN2\r\n22-06", canonical: "N2"},
		{name: "full width", raw: "ＦＣ／工程", canonical: "FC", compound: true, suffix: "工程", mapped: true},
		{name: "empty", raw: "", blank: true},
		{name: "nan", raw: "nan", blank: true},
		{name: "NaN upper case", raw: "NaN", blank: true},
		{name: "none", raw: "None", blank: true},
		{name: "whitespace only", raw: "   \n ", blank: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.NormalizeText(tt.raw)
			assert.Equal(t, tt.raw, got.Original)
			assert.Equal(t, tt.blank, got.Blank)
			assert.Equal(t, tt.canonical, got.Canonical)
			assert.Equal(t, tt.compound, got.Compound)
			assert.Equal(t, tt.suffix, got.Suffix)
			assert.Equal(t, tt.mapped, got.Mapped)
		})
	}
}

func TestNormalizeKeepsCleanedCompound(t *testing.T) {
	n := NewNormalizer(nil)

	got := n.NormalizeText("P2c/支援\n14-22")
	assert.Equal(t, "P2c", got.Canonical)
	assert.Equal(t, "P2c/支援", got.Cleaned)
}

func TestNormalizeBlankValueKind(t *testing.T) {
	n := NewNormalizer(nil)

	got := n.Normalize(types.Value{Kind: types.KindBlank})
	assert.True(t, got.Blank)
	assert.Empty(t, got.Canonical)
}

func TestNormalizerCustomMappings(t *testing.T) {
	n := NewNormalizer(map[string]string{"A/訓練": "A"})

	assert.Equal(t, "A", n.NormalizeText("A/訓練").Canonical)
	assert.True(t, n.NormalizeText("A/訓練").Mapped)

	// Defaults are replaced, not merged.
	got := n.NormalizeText("FC/工程")
	assert.False(t, got.Mapped)
	assert.Equal(t, "FC", got.Canonical)
}

func TestNormalizerEmptyMappingDisablesMapping(t *testing.T) {
	n := NewNormalizer(map[string]string{})

	got := n.NormalizeText("P1p/ME")
	assert.False(t, got.Mapped)
	assert.Equal(t, "P1p", got.Canonical)
	assert.Equal(t, "ME", got.Suffix)
}

type stubLister struct {
	codes []string
	err   error
}

func (s stubLister) ListKnownCodes(context.Context) ([]string, error) {
	return s.codes, s.err
}

func TestRegistry(t *testing.T) {
	r, err := Load(context.Background(), stubLister{codes: []string{"A", "B", "FC"}})
	require.NoError(t, err)

	assert.Equal(t, 3, r.Len())
	assert.True(t, r.Known("FC"))
	assert.False(t, r.Known("ZZ"))

	assert.True(t, r.Add("ZZ"))
	assert.False(t, r.Add("ZZ"))
	assert.False(t, r.Add("A"))
	assert.True(t, r.Known("ZZ"))

	assert.Equal(t, []string{"ZZ"}, r.Added())
	assert.Equal(t, []string{"A", "B", "FC", "ZZ"}, r.Codes())
}

func TestRegistryLoadError(t *testing.T) {
	boom := errors.New("database locked")

	_, err := Load(context.Background(), stubLister{err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestMetadataLookup(t *testing.T) {
	table := NewMetadataTable(nil)

	tests := []struct {
		code string
		want Metadata
	}{
		{"H1", Metadata{Name: "休假(H1)", Start: "00:00", End: "00:00", Color: "#6c757d"}},
		{"FC", Metadata{Name: "FC班", Start: "09:00", End: "18:00", Color: "#007bff"}},
		{"P3n", Metadata{Name: "P3班(P3n)", Start: "17:00", End: "02:00", Color: "#fd7e14"}},
		{"NT", Metadata{Name: "NT班", Start: "09:00", End: "18:00", Color: "#343a40"}},
		{"N1", Metadata{Name: "N班(N1)", Start: "19:00", End: "04:00", Color: "#20c997"}},
		{"舞台", Metadata{Name: "舞台班", Start: "09:00", End: "18:00", Color: "#868e96"}},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Lookup(tt.code))
		})
	}
}

func TestDefaultSeedCodesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range DefaultSeed() {
		require.False(t, seen[s.Code], "duplicate seed code %s", s.Code)
		seen[s.Code] = true
	}
	assert.True(t, seen["OFF"])
}
