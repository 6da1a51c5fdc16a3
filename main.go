// =============================================================================
// Roster Importer - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Roster Importer CLI application.
// It delegates command execution to the cmd package.
//
// USAGE:
//   roster validate --file F   - Validate a roster without importing it
//   roster import --file F     - Validate and import a roster
//   roster process             - Import every roster in the inbox directory
//   roster seed                - Create the default shift types
//   roster version             - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Core logic (parsing, validation, import, storage)
//   - pkg/       : Shared file utilities
//   - groups/    : Per-group YAML files (members, file patterns)
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/roster-importer/cmd"
)

func main() {
	cmd.Execute()
}
