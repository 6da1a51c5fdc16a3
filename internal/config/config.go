// =============================================================================
// Roster Importer - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration files.
// It handles both the main application configuration and group-specific
// configurations.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): Global application settings
//   2. Group Configs (groups/*.yaml): Membership groups and their file rules
//
// ENVIRONMENT OVERRIDES:
//   ROSTER_DB_PATH    - overrides database_path
//   ROSTER_LOG_LEVEL  - overrides log_level
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InboxDir is the directory scanned by the process command for roster
	// files. Default: "./inbox"
	InboxDir string `yaml:"inbox_dir"`

	// ArchiveDir receives roster files after a successful import.
	// Default: "./archive"
	ArchiveDir string `yaml:"archive_dir"`

	// ReportsDir receives validation reports and error logs.
	// Default: "./reports"
	ReportsDir string `yaml:"reports_dir"`

	// GroupsDir contains one YAML file per membership group.
	// Default: "./groups"
	GroupsDir string `yaml:"groups_dir"`

	// DatabasePath is the SQLite database file.
	// Default: "./data/roster.db"
	DatabasePath string `yaml:"database_path"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is an optional log file; logs always go to stderr as well.
	LogFile string `yaml:"log_file"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "json" or "console". Default: "console"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// PIPELINE SETTINGS
	// =========================================================================

	CSVSettings CSVSettings        `yaml:"csv_settings"`
	Validation  ValidationSettings `yaml:"validation"`
	Audit       AuditSettings      `yaml:"audit"`
	Import      ImportSettings     `yaml:"import"`
	ShiftCodes  ShiftCodeSettings  `yaml:"shift_codes"`

	// Groups are inline membership groups (group name -> display names).
	// Groups loaded from GroupsDir are merged on top of these.
	Groups map[string][]string `yaml:"groups"`
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for parsing delimited roster files.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Common values: "," (comma), "|" (pipe), "\t" (tab), ";"
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRow is the 1-based row holding the column labels.
	// Rows above it (titles, notes) are ignored. Default: 1
	HeaderRow int `yaml:"header_row"`

	// Encoding is the character encoding of the file.
	// Supported: "UTF-8", "Big5", "UTF-16LE", "UTF-16BE". Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// Sheet is the worksheet to read from .xlsx inputs. Empty means the
	// first sheet.
	Sheet string `yaml:"sheet"`
}

// ValidationSettings controls the row validator.
type ValidationSettings struct {
	// AllowBlankShift accepts rows whose shift cell is blank.
	AllowBlankShift bool `yaml:"allow_blank_shift"`

	// StripNameSpaces removes every whitespace rune from names
	// ("賴 秉 宏" -> "賴秉宏"). When false, runs of whitespace collapse to one.
	StripNameSpaces bool `yaml:"strip_name_spaces"`

	// CalendarSystem selects how year tokens are read:
	// "auto" (small years are era years), "minguo", or "gregorian".
	CalendarSystem string `yaml:"calendar_system"`
}

// AuditSettings controls the shift-balance audit.
type AuditSettings struct {
	// LeaveCodes are canonical codes that do not count as worked shifts.
	LeaveCodes []string `yaml:"leave_codes"`

	// MaxSpread is the largest max-min count difference that is only a
	// warning. Default: 2
	MaxSpread int `yaml:"max_spread"`

	// MaxDeviation is how far a count may stray from round(mean) before the
	// employee is listed as unevenly distributed. Default: 1
	MaxDeviation int `yaml:"max_deviation"`
}

// ImportSettings controls the batch importer.
type ImportSettings struct {
	// Mode is "merge" or "overwrite". Default: "merge"
	Mode string `yaml:"mode"`

	// BatchSize is the number of records committed per transaction.
	// Default: 100
	BatchSize int `yaml:"batch_size"`

	// BlankPlaceholder is the shift code stored for accepted blank rows.
	// Empty means blank rows are not written. Default: "BLANK"
	BlankPlaceholder string `yaml:"blank_placeholder"`

	// DataVersion is recorded in the import log. Default: "current"
	DataVersion string `yaml:"data_version"`
}

// ShiftCodeSettings configures shift-code normalization and metadata.
type ShiftCodeSettings struct {
	// Mappings maps known compound codes to their canonical code.
	// Example: "FC/工程": "FC"
	Mappings map[string]string `yaml:"mappings"`

	// Metadata is the prefix table used to seed display metadata for
	// shift types created during import. First matching rule wins.
	Metadata []ShiftMetadataRule `yaml:"metadata"`

	// Seed is the list of shift types created by the seed command.
	Seed []SeedShiftType `yaml:"seed"`
}

// ShiftMetadataRule maps a code (exact or prefix) to display metadata.
type ShiftMetadataRule struct {
	// Codes lists exact codes this rule applies to.
	Codes []string `yaml:"codes,omitempty"`

	// Prefix applies the rule to every code starting with it.
	Prefix string `yaml:"prefix,omitempty"`

	// Name is a display-name template; "%s" is replaced by the code.
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Color string `yaml:"color"`
}

// SeedShiftType is one shift type created by the seed command.
type SeedShiftType struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Color string `yaml:"color"`
}

// =============================================================================
// GROUP CONFIGURATION STRUCTURE
// =============================================================================

// GroupConfig holds the configuration for one membership group.
type GroupConfig struct {
	// GroupName is the name callers select (e.g. "performance").
	GroupName string `yaml:"group_name"`

	// Members is the ordered list of employee display names in the group.
	Members []string `yaml:"members"`

	// FileMatchingPatterns is a list of glob patterns matched against
	// inbox file names by the process command.
	// Examples:
	//   - "perf_*.csv"
	//   - "*演出部*.xlsx"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// CSVSettings overrides the main CSV settings for this group's files.
	CSVSettings *CSVSettings `yaml:"csv_settings,omitempty"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *MainConfig {
	cfg := &MainConfig{}
	applyMainConfigDefaults(cfg)
	return cfg
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)
	config.applyEnvOverrides()

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads configPath, falling back to Default when the file
// does not exist.
func LoadOrDefault(configPath string) (*MainConfig, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		cfg.applyEnvOverrides()
		return cfg, validateMainConfig(cfg)
	}
	return LoadMainConfig(configPath)
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InboxDir == "" {
		config.InboxDir = "./inbox"
	}
	if config.ArchiveDir == "" {
		config.ArchiveDir = "./archive"
	}
	if config.ReportsDir == "" {
		config.ReportsDir = "./reports"
	}
	if config.GroupsDir == "" {
		config.GroupsDir = "./groups"
	}
	if config.DatabasePath == "" {
		config.DatabasePath = "./data/roster.db"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "console"
	}

	applyCSVDefaults(&config.CSVSettings)

	if config.Validation.CalendarSystem == "" {
		config.Validation.CalendarSystem = "auto"
	}

	if config.Audit.LeaveCodes == nil {
		config.Audit.LeaveCodes = []string{"OFF", "H0", "H1", "H2"}
	}
	if config.Audit.MaxSpread == 0 {
		config.Audit.MaxSpread = 2
	}
	if config.Audit.MaxDeviation == 0 {
		config.Audit.MaxDeviation = 1
	}

	if config.Import.Mode == "" {
		config.Import.Mode = "merge"
	}
	if config.Import.BatchSize == 0 {
		config.Import.BatchSize = 100
	}
	if config.Import.BlankPlaceholder == "" {
		config.Import.BlankPlaceholder = "BLANK"
	}
	if config.Import.DataVersion == "" {
		config.Import.DataVersion = "current"
	}

	if config.Groups == nil {
		config.Groups = make(map[string][]string)
	}
}

func applyCSVDefaults(s *CSVSettings) {
	if s.Delimiter == "" {
		s.Delimiter = ","
	}
	if s.HeaderRow == 0 {
		s.HeaderRow = 1
	}
	if s.Encoding == "" {
		s.Encoding = "UTF-8"
	}
}

// applyEnvOverrides lets deployment environments relocate the database and
// change verbosity without editing the file.
func (c *MainConfig) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("ROSTER_DB_PATH")); v != "" {
		c.DatabasePath = v
	}
	if v := strings.TrimSpace(os.Getenv("ROSTER_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	switch config.Import.Mode {
	case "merge", "overwrite":
	default:
		return fmt.Errorf("import.mode must be merge or overwrite, got %q", config.Import.Mode)
	}

	switch config.Validation.CalendarSystem {
	case "auto", "minguo", "gregorian":
	default:
		return fmt.Errorf("validation.calendar_system must be auto, minguo or gregorian, got %q",
			config.Validation.CalendarSystem)
	}

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", config.LogLevel)
	}

	if config.Import.BatchSize < 0 {
		return fmt.Errorf("import.batch_size must be positive, got %d", config.Import.BatchSize)
	}
	if config.Audit.MaxSpread < 0 || config.Audit.MaxDeviation < 0 {
		return fmt.Errorf("audit thresholds must not be negative")
	}

	return nil
}

// EnsureDirectories creates the working directories if they do not exist.
func (c *MainConfig) EnsureDirectories() error {
	dirs := []string{
		c.InboxDir,
		c.ArchiveDir,
		c.ReportsDir,
		filepath.Dir(c.DatabasePath),
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

// LoadGroupConfigs loads all group configurations from a directory.
// A missing directory yields no groups.
//
// RETURNS:
//   - A map of group configurations, keyed by group name.
//   - An error if any file cannot be parsed.
func LoadGroupConfigs(groupsDir string) (map[string]*GroupConfig, error) {
	configs := make(map[string]*GroupConfig)

	if _, err := os.Stat(groupsDir); errors.Is(err, os.ErrNotExist) {
		return configs, nil
	}

	files, err := filepath.Glob(filepath.Join(groupsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list group files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(groupsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list group files: %w", err)
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	for _, file := range files {
		group, err := loadGroupConfig(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		// Use the group name as the key; fall back to the file name.
		key := group.GroupName
		if key == "" {
			key = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			group.GroupName = key
		}

		configs[key] = group
	}

	return configs, nil
}

// loadGroupConfig loads a single group configuration file.
func loadGroupConfig(filePath string) (*GroupConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var group GroupConfig
	if err := yaml.Unmarshal(data, &group); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	if group.CSVSettings != nil {
		applyCSVDefaults(group.CSVSettings)
	}

	return &group, nil
}

// MergeGroups returns the inline groups overlaid with the loaded group files.
func (c *MainConfig) MergeGroups(loaded map[string]*GroupConfig) map[string][]string {
	merged := make(map[string][]string, len(c.Groups)+len(loaded))
	for name, members := range c.Groups {
		merged[name] = members
	}
	for name, group := range loaded {
		merged[name] = group.Members
	}
	return merged
}

// CSVFor returns the CSV settings for a group, falling back to the main
// settings.
func (c *MainConfig) CSVFor(group *GroupConfig) CSVSettings {
	if group != nil && group.CSVSettings != nil {
		return *group.CSVSettings
	}
	return c.CSVSettings
}
