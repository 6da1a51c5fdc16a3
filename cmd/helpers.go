// =============================================================================
// Roster Importer - Command Helpers
// =============================================================================
//
// Builders shared by the validate, import and process commands. They turn
// the loaded configuration into the options of the internal packages and
// run one roster file through the pipeline inside a store session.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ginjaninja78/roster-importer/internal/audit"
	"github.com/ginjaninja78/roster-importer/internal/csvparser"
	"github.com/ginjaninja78/roster-importer/internal/dates"
	"github.com/ginjaninja78/roster-importer/internal/importer"
	"github.com/ginjaninja78/roster-importer/internal/membership"
	"github.com/ginjaninja78/roster-importer/internal/pipeline"
	"github.com/ginjaninja78/roster-importer/internal/shiftcode"
	"github.com/ginjaninja78/roster-importer/internal/store"
	"github.com/ginjaninja78/roster-importer/internal/types"
	"github.com/ginjaninja78/roster-importer/internal/validation"
	"github.com/ginjaninja78/roster-importer/internal/xlsxparser"
	"github.com/ginjaninja78/roster-importer/pkg/utils"
)

// =============================================================================
// RUN SETTINGS
// =============================================================================

// runSettings are the per-invocation choices common to every command that
// reads a roster.
type runSettings struct {
	Group       string
	Force       bool
	Mode        string
	Calendar    string
	Importer    string
	DataVersion string
}

// fileReport is the YAML document written for each roster file.
type fileReport struct {
	Source     string                  `yaml:"source"`
	Group      string                  `yaml:"group"`
	Force      bool                    `yaml:"force"`
	Error      string                  `yaml:"error,omitempty"`
	Validation *types.ValidationReport `yaml:"validation,omitempty"`
	Import     *types.ImportResult     `yaml:"import,omitempty"`
}

func newFileReport(path string, settings runSettings, result *pipeline.Result, err error) fileReport {
	report := fileReport{
		Source: path,
		Group:  settings.Group,
		Force:  settings.Force,
	}
	if report.Group == "" {
		report.Group = membership.AllGroup
	}
	if result != nil {
		report.Validation = result.Report
		report.Import = result.Import
	}
	if err != nil {
		report.Error = err.Error()
	}
	return report
}

// =============================================================================
// OPTION BUILDERS
// =============================================================================

// validationOptions builds the validator options. A non-empty calendar
// overrides validation.calendar_system.
func validationOptions(calendar string) (validation.Options, error) {
	if calendar == "" {
		calendar = appConfig.Validation.CalendarSystem
	}
	cal, err := dates.ParseCalendarSystem(calendar)
	if err != nil {
		return validation.Options{}, err
	}

	var normalizer *shiftcode.Normalizer
	if len(appConfig.ShiftCodes.Mappings) > 0 {
		normalizer = shiftcode.NewNormalizer(appConfig.ShiftCodes.Mappings)
	}

	return validation.Options{
		AllowBlankShift: appConfig.Validation.AllowBlankShift,
		StripNameSpaces: appConfig.Validation.StripNameSpaces,
		Calendar:        cal,
		Audit: audit.Options{
			LeaveCodes:   appConfig.Audit.LeaveCodes,
			MaxSpread:    appConfig.Audit.MaxSpread,
			MaxDeviation: appConfig.Audit.MaxDeviation,
		},
		Normalizer: normalizer,
	}, nil
}

// importOptions builds the importer options. A non-empty mode overrides
// import.mode.
func importOptions(mode string) (importer.Options, error) {
	if mode == "" {
		mode = appConfig.Import.Mode
	}
	m, err := importer.ParseMode(mode)
	if err != nil {
		return importer.Options{}, err
	}
	return importer.Options{
		Mode:             m,
		BatchSize:        appConfig.Import.BatchSize,
		BlankPlaceholder: appConfig.Import.BlankPlaceholder,
	}, nil
}

// metadataTable converts shift_codes.metadata; an empty list selects the
// built-in rules.
func metadataTable() *shiftcode.MetadataTable {
	if len(appConfig.ShiftCodes.Metadata) == 0 {
		return shiftcode.NewMetadataTable(nil)
	}
	rules := make([]shiftcode.Rule, 0, len(appConfig.ShiftCodes.Metadata))
	for _, r := range appConfig.ShiftCodes.Metadata {
		rules = append(rules, shiftcode.Rule{
			Codes:  r.Codes,
			Prefix: r.Prefix,
			Name:   r.Name,
			Start:  r.Start,
			End:    r.End,
			Color:  r.Color,
		})
	}
	return shiftcode.NewMetadataTable(rules)
}

// seedShiftTypes converts shift_codes.seed; an empty list selects the
// built-in seed.
func seedShiftTypes() []types.ShiftType {
	var seed []types.ShiftType
	if len(appConfig.ShiftCodes.Seed) > 0 {
		for _, s := range appConfig.ShiftCodes.Seed {
			seed = append(seed, types.ShiftType{Code: s.Code, Name: s.Name, StartTime: s.Start, EndTime: s.End, Color: s.Color})
		}
		return seed
	}
	for _, s := range shiftcode.DefaultSeed() {
		seed = append(seed, types.ShiftType{Code: s.Code, Name: s.Name, StartTime: s.Start, EndTime: s.End, Color: s.Color})
	}
	return seed
}

func membershipProvider() membership.Provider {
	return membership.NewConfigProvider(appConfig.MergeGroups(groupConfigs))
}

// defaultImporter names the operator recorded in the import log.
func defaultImporter() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "cli"
}

// =============================================================================
// FILE HANDLING
// =============================================================================

// readTable parses a roster file with the settings of its group.
func readTable(path, group string) (*types.Table, error) {
	settings := appConfig.CSVFor(groupConfigs[group])
	if utils.IsSpreadsheet(path) {
		return xlsxparser.Parse(path, settings)
	}
	return csvparser.Parse(path, settings)
}

func openStore() (*store.Store, error) {
	st, err := store.New(appConfig.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", appConfig.DatabasePath, err)
	}
	return st, nil
}

// newPipeline builds a pipeline over one session.
func newPipeline(session *store.Session, calendar string) (*pipeline.Pipeline, error) {
	opts, err := validationOptions(calendar)
	if err != nil {
		return nil, err
	}
	return pipeline.New(session, membershipProvider(), opts, metadataTable(), logger), nil
}

// validateFile validates one roster file. Nothing is written: the session
// is rolled back on return.
func validateFile(ctx context.Context, st *store.Store, path string, settings runSettings) (*types.ValidationReport, error) {
	table, err := readTable(path, settings.Group)
	if err != nil {
		return nil, err
	}

	session, err := st.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	p, err := newPipeline(session, settings.Calendar)
	if err != nil {
		return nil, err
	}
	return p.Validate(ctx, pipeline.Request{Table: table, Group: settings.Group, Force: settings.Force})
}

// importFile validates and imports one roster file in its own session.
func importFile(ctx context.Context, st *store.Store, path string, settings runSettings) (*pipeline.Result, error) {
	table, err := readTable(path, settings.Group)
	if err != nil {
		return nil, err
	}

	opts, err := importOptions(settings.Mode)
	if err != nil {
		return nil, err
	}

	session, err := st.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	p, err := newPipeline(session, settings.Calendar)
	if err != nil {
		return nil, err
	}

	dataVersion := settings.DataVersion
	if dataVersion == "" {
		dataVersion = appConfig.Import.DataVersion
	}
	importerName := strings.TrimSpace(settings.Importer)
	if importerName == "" {
		importerName = defaultImporter()
	}

	logger.Info("importing roster",
		zap.String("file", path),
		zap.String("group", settings.Group),
		zap.Bool("force", settings.Force),
		zap.String("mode", string(opts.Mode)))

	return p.Run(ctx, pipeline.Request{
		Table:       table,
		Group:       settings.Group,
		Force:       settings.Force,
		Import:      opts,
		Importer:    importerName,
		Filename:    filepath.Base(path),
		DataVersion: dataVersion,
	})
}

// printImportResult prints the outcome of one import to stdout.
func printImportResult(result *pipeline.Result) {
	if result == nil {
		return
	}
	if result.Report != nil {
		fmt.Print(validation.FormatReport(result.Report))
	}
	if len(result.Stats.CodesRegistered) > 0 {
		fmt.Printf("Registered shift codes: %s\n", strings.Join(result.Stats.CodesRegistered, ", "))
	}
	if result.Import != nil {
		fmt.Printf("Batch %s: created %d, updated %d, skipped %d",
			result.Import.BatchID, result.Import.CreatedCount, result.Import.UpdatedCount, result.Import.SkippedCount)
		if result.Import.ClearedCount > 0 {
			fmt.Printf(", cleared %d", result.Import.ClearedCount)
		}
		fmt.Println()
	}
}
