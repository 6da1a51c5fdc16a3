// =============================================================================
// Roster Importer - Seed Command
// =============================================================================
//
// COMMAND USAGE:
//   roster seed [--list]
//
// Creates the database if needed and inserts the shift types listed under
// shift_codes.seed (or the built-in list). Existing codes are left as they
// are, so the command can be run repeatedly.
//
// =============================================================================

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedList bool

// seedCmd represents the 'seed' command.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the database and the default shift types",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		inserted, err := st.SeedShiftTypes(ctx, seedShiftTypes())
		if err != nil {
			return fmt.Errorf("failed to seed shift types: %w", err)
		}
		logger.Info("shift types seeded", zap.Int("inserted", inserted))
		fmt.Printf("Inserted %d shift type(s) into %s\n", inserted, appConfig.DatabasePath)

		if seedList {
			codes, err := st.ListKnownCodes(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Known codes (%d): %s\n", len(codes), strings.Join(codes, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	// --list flag: Print every known code afterwards.
	seedCmd.Flags().BoolVar(&seedList, "list", false, "List the known shift codes after seeding")
}
