// =============================================================================
// Roster Importer - Process Command
// =============================================================================
//
// This file defines the 'process' command, which imports every roster file
// waiting in the inbox directory.
//
// COMMAND USAGE:
//   roster process [flags]
//
// FLAGS:
//   --group     : Use this group for every file instead of pattern matching
//   --force     : Import despite validation errors
//   --mode      : merge (default) or overwrite
//   --dry-run   : Validate only; nothing is imported or archived
//
// PROCESSING PIPELINE:
//   1. Discover roster files in the inbox directory
//   2. Match each file to a group by its file_matching_patterns
//      (unmatched files use the group "all")
//   3. For each file, in name order:
//      a. Parse the roster
//      b. Validate and import it in its own transaction
//      c. Write the YAML report
//      d. Archive the file when the import succeeded
//   4. Write the processing summary
//
// Files are imported one after another: the database has a single writer
// and a later roster may depend on shift types registered by an earlier one.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/roster-importer/internal/membership"
	"github.com/ginjaninja78/roster-importer/internal/pipeline"
	"github.com/ginjaninja78/roster-importer/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	processSettings runSettings
	dryRun          bool
)

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Import every roster file in the inbox directory",
	Long: `The process command scans the inbox directory for roster files, matches
them to a membership group and imports them one by one.

On successful import:
  - The roster is moved to the archive directory
  - A YAML report is written to the reports directory

On refusal or error:
  - The report still records the validation result
  - The roster remains in the inbox
  - Processing continues with the next file`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&processSettings.Group, "group", "g", "", "Use this group for every file")
	processCmd.Flags().BoolVar(&processSettings.Force, "force", false, "Import despite validation errors")
	processCmd.Flags().StringVar(&processSettings.Mode, "mode", "", "Import mode: merge or overwrite")
	processCmd.Flags().StringVar(&processSettings.Importer, "importer", "", "Operator name for the import log")

	// --dry-run flag: Validate without importing or archiving.
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate only; do not import or archive")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess imports the inbox.
func runProcess(cmd *cobra.Command) error {
	ctx := cmd.Context()
	summary := utils.ProcessingSummary{StartTime: time.Now()}

	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	fm := utils.NewFileManager(appConfig.InboxDir, appConfig.ArchiveDir, appConfig.ReportsDir)
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	files, err := fm.DiscoverRosterFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No roster files found in the inbox directory.")
		return nil
	}
	fmt.Printf("Found %d file(s) to process\n", len(files))
	summary.TotalFiles = len(files)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	// =========================================================================
	// STEP 2: IMPORT EACH FILE
	// =========================================================================

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		settings := processSettings
		if settings.Group == "" {
			group, ok := utils.MatchGroup(path, groupConfigs)
			if !ok {
				group = membership.AllGroup
			}
			settings.Group = group
		}

		fileStart := time.Now()
		var (
			result *pipeline.Result
			runErr error
		)
		if dryRun {
			report, err := validateFile(ctx, st, path, settings)
			result, runErr = &pipeline.Result{Report: report}, err
		} else {
			result, runErr = importFile(ctx, st, path, settings)
		}

		reportPath, err := fm.WriteYAMLReport(newFileReport(path, settings, result, runErr), path)
		if err != nil {
			logger.Error("failed to write report", zap.String("file", path), zap.Error(err))
		}

		name := filepath.Base(path)
		if runErr != nil {
			if errors.Is(runErr, pipeline.ErrImportRefused) {
				summary.RefusedFiles++
			} else {
				summary.FailedFiles++
			}
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    name,
				ErrorMessage: runErr.Error(),
				ReportPath:   reportPath,
			})
			fmt.Printf("  ✗ %s [%s]: %v\n", name, settings.Group, runErr)
			continue
		}

		info := utils.ProcessedFileInfo{
			InputFile:   name,
			Group:       settings.Group,
			ReportPath:  reportPath,
			ProcessTime: time.Since(fileStart),
		}
		if result.Report != nil {
			info.Status = string(result.Report.OverallStatus)
		}
		if imported := result.Import; imported != nil {
			info.BatchID = imported.BatchID
			info.Created, info.Updated, info.Skipped = imported.CreatedCount, imported.UpdatedCount, imported.SkippedCount
			summary.Created += imported.CreatedCount
			summary.Updated += imported.UpdatedCount
			summary.Skipped += imported.SkippedCount
		}

		// =====================================================================
		// STEP 3: ARCHIVE
		// =====================================================================

		if !dryRun {
			archived, err := fm.ArchiveFile(path)
			if err != nil {
				logger.Error("failed to archive roster", zap.String("file", path), zap.Error(err))
			}
			info.ArchivePath = archived
		}

		summary.SuccessfulFiles++
		summary.ProcessedFiles = append(summary.ProcessedFiles, info)
		fmt.Printf("  ✓ %s [%s] %s: created %d, updated %d, skipped %d\n",
			name, settings.Group, info.Status, info.Created, info.Updated, info.Skipped)
	}

	// =========================================================================
	// STEP 4: SUMMARY
	// =========================================================================

	summary.EndTime = time.Now()
	summaryPath, err := fm.WriteSummaryLog(summary)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:  %d\n", summary.TotalFiles)
	fmt.Printf("Imported:     %d\n", summary.SuccessfulFiles)
	fmt.Printf("Refused:      %d\n", summary.RefusedFiles)
	fmt.Printf("Failed:       %d\n", summary.FailedFiles)
	fmt.Printf("Time elapsed: %s\n", summary.EndTime.Sub(summary.StartTime))
	fmt.Printf("Summary:      %s\n", summaryPath)

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d file(s) failed", summary.FailedFiles)
	}
	return nil
}
