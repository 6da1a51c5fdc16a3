// =============================================================================
// Roster Importer - Logging
// =============================================================================
//
// CUSTOMIZATION:
//   - log_level and log_format in config.yaml
//   - log_file adds a second output next to stderr
//   - --verbose forces debug level
//
// =============================================================================

// Package logging builds the zap logger shared by every command.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the level, encoding and destinations of the logger.
type Options struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string

	// Format is "json" or "console".
	Format string

	// File is an optional extra output path.
	File string

	// Verbose forces debug level.
	Verbose bool
}

// New builds a logger from a production config, switching the encoding to
// console output unless JSON is requested.
func New(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	switch strings.ToLower(opts.Format) {
	case "", "console":
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "json":
	default:
		return nil, fmt.Errorf("invalid log format %q (want json or console)", opts.Format)
	}

	config.OutputPaths = []string{"stderr"}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		config.OutputPaths = append(config.OutputPaths, opts.File)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
