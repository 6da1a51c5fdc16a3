// =============================================================================
// Roster Importer - Import Command
// =============================================================================
//
// This file defines the 'import' command, which validates one roster file
// and writes the accepted assignments to the database.
//
// COMMAND USAGE:
//   roster import --file roster.xlsx [flags]
//
// FLAGS:
//   --file          : The roster file (.csv, .tsv, .txt or .xlsx)
//   --group         : Membership group used to filter rows (default: all)
//   --force         : Import despite validation errors; register unknown codes
//   --mode          : merge (default) or overwrite
//   --importer      : Operator name recorded in the import log
//   --data-version  : Data version recorded in the import log
//   --calendar      : Year reading: auto, minguo or gregorian
//   --report        : Also write the report as YAML to this path
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/roster-importer/pkg/utils"
)

var (
	importFilePath string
	importReport   string
	importSettings runSettings
)

// importCmd represents the 'import' command.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Validate and import a roster file",
	Long: `The import command validates the roster and, unless the status is ERROR,
imports the accepted records. With --force the import runs regardless and
unknown shift codes are registered as new shift types.

In merge mode existing assignments are updated and new ones created. In
overwrite mode the assignments of the affected employees within the roster's
date range are cleared first.

Re-importing the same file is safe: unchanged assignments are skipped.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFilePath, "file", "f", "", "Path to the roster file")
	importCmd.MarkFlagRequired("file")

	importCmd.Flags().StringVarP(&importSettings.Group, "group", "g", "", "Membership group (default: all)")
	importCmd.Flags().BoolVar(&importSettings.Force, "force", false, "Import despite validation errors")

	// --mode flag: Overrides import.mode.
	importCmd.Flags().StringVar(&importSettings.Mode, "mode", "", "Import mode: merge or overwrite")

	importCmd.Flags().StringVar(&importSettings.Importer, "importer", "", "Operator name for the import log (default: current user)")
	importCmd.Flags().StringVar(&importSettings.DataVersion, "data-version", "", "Data version for the import log")
	importCmd.Flags().StringVar(&importSettings.Calendar, "calendar", "", "Year reading: auto, minguo or gregorian")
	importCmd.Flags().StringVar(&importReport, "report", "", "Write the report as YAML to this path")
}

// runImport imports the file named by --file.
func runImport(cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := importFile(ctx, st, importFilePath, importSettings)
	printImportResult(result)

	if importReport != "" {
		if werr := utils.WriteYAML(newFileReport(importFilePath, importSettings, result, err), importReport); werr != nil {
			return werr
		}
		fmt.Printf("Report written to %s\n", importReport)
	}

	return err
}
