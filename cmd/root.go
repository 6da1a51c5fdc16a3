// =============================================================================
// Roster Importer - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (roster)
//   ├── validateCmd (roster validate)
//   ├── importCmd   (roster import)
//   ├── processCmd  (roster process)
//   ├── seedCmd     (roster seed)
//   └── versionCmd  (roster version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads config.yaml (defaults apply when the file does not exist)
//   2. Loads the group files from groups_dir
//   3. Builds the zap logger
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/roster-importer/internal/config"
	"github.com/ginjaninja78/roster-importer/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// Loaded by loadEnvironment before every subcommand except version.
var (
	appConfig    *config.MainConfig
	groupConfigs map[string]*config.GroupConfig
	logger       = zap.NewNop()
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "roster",
	Short: "Roster Importer - Validate and import staff shift rosters",
	Long: `Roster Importer reads staff shift rosters exported from spreadsheets
(CSV or XLSX), validates them and imports the accepted assignments into the
schedule database.

Key Features:
  - Automatic layout detection (five-field and three-field)
  - Minguo and Gregorian year-month columns
  - Shift-code normalization and duplicate detection
  - Shift-balance audit across employees
  - Idempotent, batched imports with an audit log

Example Usage:
  roster validate --file roster.csv              # Report only, nothing written
  roster import --file roster.xlsx --group perf  # Validate and import
  roster process                                 # Import every file in the inbox
  roster seed                                    # Create the default shift types`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return loadEnvironment()
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// An interrupt cancels the context; an import in progress rolls back.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEnvironment loads the configuration and group files and builds the
// logger.
func loadEnvironment() error {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}

	groups, err := config.LoadGroupConfigs(cfg.GroupsDir)
	if err != nil {
		return fmt.Errorf("failed to load group configs: %w", err)
	}

	log, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Verbose: verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	appConfig = cfg
	groupConfigs = groups
	logger = log

	logger.Debug("configuration loaded",
		zap.String("config", cfgFile),
		zap.Int("group_files", len(groups)),
		zap.String("database", cfg.DatabasePath))
	return nil
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init sets up the global flags.
func init() {
	// ==========================================================================
	// PERSISTENT FLAGS
	// ==========================================================================
	// Persistent flags are available to this command and all subcommands.

	// --config flag: Allows the user to specify a custom configuration file.
	// A missing file is not an error; the built-in defaults are used.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	// --verbose flag: Enables debug logging.
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}
