package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadMainConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
database_path: /var/lib/roster/roster.db
csv_settings:
  delimiter: "|"
import:
  mode: overwrite
groups:
  ward:
    - Amy
    - Ben
`)

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/roster/roster.db", cfg.DatabasePath)
	assert.Equal(t, "./inbox", cfg.InboxDir)
	assert.Equal(t, "|", cfg.CSVSettings.Delimiter)
	assert.Equal(t, 1, cfg.CSVSettings.HeaderRow)
	assert.Equal(t, "UTF-8", cfg.CSVSettings.Encoding)
	assert.Equal(t, "overwrite", cfg.Import.Mode)
	assert.Equal(t, 100, cfg.Import.BatchSize)
	assert.Equal(t, "BLANK", cfg.Import.BlankPlaceholder)
	assert.Equal(t, "auto", cfg.Validation.CalendarSystem)
	assert.Equal(t, []string{"OFF", "H0", "H1", "H2"}, cfg.Audit.LeaveCodes)
	assert.Equal(t, []string{"Amy", "Ben"}, cfg.Groups["ward"])
}

func TestLoadMainConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"mode", "import:\n  mode: replace\n"},
		{"calendar", "validation:\n  calendar_system: julian\n"},
		{"log level", "log_level: chatty\n"},
		{"batch size", "import:\n  batch_size: -5\n"},
		{"yaml", "groups: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tt.content)
			_, err := LoadMainConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv("ROSTER_DB_PATH", "/tmp/override.db")
	t.Setenv("ROSTER_LOG_LEVEL", "debug")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.DatabasePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "merge", cfg.Import.Mode)
}

func TestLoadGroupConfigs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "performance.yaml"), `
group_name: 演出部
members: [賴秉宏, 王小明]
file_matching_patterns: ["*演出部*.xlsx"]
csv_settings:
  sheet: 班表
`)
	writeFile(t, filepath.Join(dir, "ward.yml"), "members: [Amy]\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	groups, err := LoadGroupConfigs(dir)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	perf := groups["演出部"]
	require.NotNil(t, perf)
	assert.Equal(t, []string{"賴秉宏", "王小明"}, perf.Members)
	require.NotNil(t, perf.CSVSettings)
	assert.Equal(t, "班表", perf.CSVSettings.Sheet)
	assert.Equal(t, ",", perf.CSVSettings.Delimiter)

	ward := groups["ward"]
	require.NotNil(t, ward)
	assert.Equal(t, "ward", ward.GroupName)

	cfg := Default()
	cfg.Groups["ward"] = []string{"Old"}
	cfg.Groups["night"] = []string{"Eve"}
	merged := cfg.MergeGroups(groups)
	assert.Equal(t, []string{"Amy"}, merged["ward"])
	assert.Equal(t, []string{"Eve"}, merged["night"])
	assert.Len(t, merged, 3)

	assert.Equal(t, "班表", cfg.CSVFor(perf).Sheet)
	assert.Equal(t, cfg.CSVSettings, cfg.CSVFor(ward))
	assert.Equal(t, cfg.CSVSettings, cfg.CSVFor(nil))
}

func TestLoadGroupConfigsMissingDir(t *testing.T) {
	groups, err := LoadGroupConfigs(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, groups)
}
