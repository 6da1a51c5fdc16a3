// =============================================================================
// Roster Importer - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which runs the full validation
// of one roster file and prints the report. Nothing is written to the
// database.
//
// COMMAND USAGE:
//   roster validate --file roster.csv [flags]
//
// FLAGS:
//   --file      : The roster file (.csv, .tsv, .txt or .xlsx)
//   --group     : Membership group used to filter rows (default: all)
//   --force     : Validate as a forced import would (unknown codes accepted)
//   --report    : Also write the report as YAML to this path
//   --calendar  : Year reading: auto, minguo or gregorian
//
// EXIT STATUS:
//   Non-zero when the schema cannot be detected or the status is ERROR.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/roster-importer/internal/types"
	"github.com/ginjaninja78/roster-importer/internal/validation"
	"github.com/ginjaninja78/roster-importer/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	validateFilePath string
	validateReport   string
	validateSettings runSettings
)

// errValidationFailed is returned when the report status is ERROR.
var errValidationFailed = errors.New("validation status is ERROR")

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a roster file without importing it",
	Long: `The validate command detects the roster layout, checks every row and runs
the duplicate, single-staffing and balance checks. The report is printed and,
with --report, written as YAML.

Known shift codes are read from the database, so the verdict matches what
'roster import' would decide.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	// --file flag: The roster file to validate.
	validateCmd.Flags().StringVarP(&validateFilePath, "file", "f", "", "Path to the roster file")
	validateCmd.MarkFlagRequired("file")

	// --group flag: Only rows for members of this group are checked.
	validateCmd.Flags().StringVarP(&validateSettings.Group, "group", "g", "", "Membership group (default: all)")

	// --force flag: Unknown codes are accepted and registered.
	validateCmd.Flags().BoolVar(&validateSettings.Force, "force", false, "Validate as a forced import")

	// --report flag: Write the report as YAML.
	validateCmd.Flags().StringVar(&validateReport, "report", "", "Write the report as YAML to this path")

	// --calendar flag: Overrides validation.calendar_system.
	validateCmd.Flags().StringVar(&validateSettings.Calendar, "calendar", "", "Year reading: auto, minguo or gregorian")
}

// runValidate validates the file named by --file.
func runValidate(cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := validateFile(ctx, st, validateFilePath, validateSettings)
	if report != nil {
		fmt.Print(validation.FormatReport(report))
	}

	if validateReport != "" && (report != nil || err != nil) {
		doc := newFileReport(validateFilePath, validateSettings, nil, err)
		doc.Validation = report
		if werr := utils.WriteYAML(doc, validateReport); werr != nil {
			return werr
		}
		fmt.Printf("Report written to %s\n", validateReport)
	}

	if err != nil {
		return err
	}
	if report.OverallStatus == types.StatusError {
		return errValidationFailed
	}
	return nil
}
