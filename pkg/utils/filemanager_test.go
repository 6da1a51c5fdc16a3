package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/roster-importer/internal/config"
)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(filepath.Join(root, "inbox"), filepath.Join(root, "archive"), filepath.Join(root, "reports"))
	fm.now = func() time.Time { return time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC) }
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("Name,Date,Shift\n"), 0644))
}

func TestDiscoverRosterFiles(t *testing.T) {
	fm := newTestManager(t)
	for _, name := range []string{"b.csv", "a.XLSX", "notes.pdf", ".hidden.csv", "~$a.xlsx"} {
		touch(t, filepath.Join(fm.InboxDir, name))
	}
	require.NoError(t, os.Mkdir(filepath.Join(fm.InboxDir, "dir.csv"), 0755))

	files, err := fm.DiscoverRosterFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(fm.InboxDir, "a.XLSX"),
		filepath.Join(fm.InboxDir, "b.csv"),
	}, files)

	assert.True(t, IsSpreadsheet(files[0]))
	assert.False(t, IsSpreadsheet(files[1]))
}

func TestMatchGroup(t *testing.T) {
	groups := map[string]*config.GroupConfig{
		"ward-a": {FileMatchingPatterns: []string{"ward_a_*.csv"}},
		"perf":   {FileMatchingPatterns: []string{"*演出部*.xlsx", "PERF_*"}},
	}

	tests := []struct {
		file  string
		group string
		ok    bool
	}{
		{"inbox/ward_a_2025-01.csv", "ward-a", true},
		{"inbox/2025年1月演出部班表.xlsx", "perf", true},
		{"inbox/perf_jan.csv", "perf", true},
		{"inbox/other.csv", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			group, ok := MatchGroup(tt.file, groups)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.group, group)
		})
	}
}

func TestArchiveFile(t *testing.T) {
	fm := newTestManager(t)
	src := filepath.Join(fm.InboxDir, "roster.csv")
	touch(t, src)

	archived, err := fm.ArchiveFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.ArchiveDir, "roster.csv"), archived)
	assert.False(t, FileExists(src))
	assert.True(t, FileExists(archived))

	// A second roster of the same name does not overwrite the first.
	touch(t, src)
	second, err := fm.ArchiveFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.ArchiveDir, "roster_20250115_093000.csv"), second)

	fm.UseTimestampSubdirs = true
	touch(t, src)
	third, err := fm.ArchiveFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.ArchiveDir, "2025", "01", "15", "roster.csv"), third)
}

func TestWriteYAMLReport(t *testing.T) {
	fm := newTestManager(t)

	report := map[string]int{"valid_count": 3}
	path, err := fm.WriteYAMLReport(report, "/inbox/roster.csv")
	require.NoError(t, err)

	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "roster_20250115_093000_"), name)
	assert.True(t, strings.HasSuffix(name, ".yaml"), name)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]int
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, 3, decoded["valid_count"])
}

func TestWriteSummaryLog(t *testing.T) {
	fm := newTestManager(t)

	path, err := fm.WriteSummaryLog(ProcessingSummary{
		TotalFiles:      2,
		SuccessfulFiles: 1,
		RefusedFiles:    1,
		Created:         10,
		ProcessedFiles:  []ProcessedFileInfo{{InputFile: "a.csv", Group: "all", BatchID: "b1", Status: "OK", Created: 10}},
		FailedFilesList: []FailedFileInfo{{InputFile: "b.csv", ErrorMessage: "import refused"}},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Imported:      1")
	assert.Contains(t, text, "created 10, updated 0, skipped 0")
	assert.Contains(t, text, "Error:  import refused")
}
