// =============================================================================
// Roster Importer - Pipeline Module
// =============================================================================
//
// This module orchestrates the ingestion of a single roster table, from
// schema detection to the durable import and its audit log.
//
// PIPELINE:
//   1. Resolve the membership set and load the shift-code registry
//   2. Validate the table (detection, row checks, balance audit)
//   3. Refuse the import when validation failed and force is not set
//   4. Import the accepted records
//   5. Write the import log
//
// The ValidationReport is produced in every case, including refusals and
// schema failures, so callers can always show it.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/roster-importer/internal/importer"
	"github.com/ginjaninja78/roster-importer/internal/membership"
	"github.com/ginjaninja78/roster-importer/internal/shiftcode"
	"github.com/ginjaninja78/roster-importer/internal/store"
	"github.com/ginjaninja78/roster-importer/internal/types"
	"github.com/ginjaninja78/roster-importer/internal/validation"
)

// ErrImportRefused is returned when an import is requested for a table whose
// validation status is ERROR and force is not set.
var ErrImportRefused = errors.New("import refused: validation status is ERROR (use force to import anyway)")

// =============================================================================
// REQUEST AND RESULT
// =============================================================================

// Request describes one table to validate or import.
type Request struct {
	// Table is the parsed roster.
	Table *types.Table

	// Group selects the membership set. Empty or "all" disables filtering.
	Group string

	// Force tolerates unknown and blank codes and imports despite errors.
	Force bool

	// Import carries the importer settings. Its Force and Scope fields are
	// filled in by the pipeline.
	Import importer.Options

	// Importer, Filename and DataVersion are recorded in the import log.
	Importer    string
	Filename    string
	DataVersion string
}

// Result represents the outcome of processing a single table.
type Result struct {
	// Report is always set, except when the collaborators could not be
	// reached before validation started.
	Report *types.ValidationReport

	// Import is set when the import ran.
	Import *types.ImportResult

	// Log is the import log written for this request.
	Log *types.ImportLog

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RowsRead is the number of data rows in the table.
	RowsRead int

	// CodesRegistered lists the shift codes registered under force.
	CodesRegistered []string

	// ProcessingTime is the time taken to process the table.
	ProcessingTime time.Duration
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline validates and imports roster tables through one Repository.
type Pipeline struct {
	repo     store.Repository
	provider membership.Provider
	opts     validation.Options
	metadata *shiftcode.MetadataTable
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a new Pipeline.
//
// PARAMETERS:
//   - repo: The unit of work; it also lists the known shift codes.
//   - provider: The membership collaborator.
//   - opts: Validation options. Force is taken from each Request.
//   - metadata: Display metadata for created shift types (nil = defaults).
//   - logger: The logger (nil = discard).
func New(repo store.Repository, provider membership.Provider, opts validation.Options,
	metadata *shiftcode.MetadataTable, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if provider == nil {
		provider = membership.NewConfigProvider(nil)
	}
	return &Pipeline{
		repo:     repo,
		provider: provider,
		opts:     opts,
		metadata: metadata,
		logger:   logger,
		now:      time.Now,
	}
}

// Validate validates the table without writing anything.
//
// RETURNS:
//   - The report, also when the schema cannot be detected.
//   - *types.SchemaError, or a collaborator failure.
func (p *Pipeline) Validate(ctx context.Context, req Request) (*types.ValidationReport, error) {
	_, report, err := p.validate(ctx, req)
	return report, err
}

func (p *Pipeline) validate(ctx context.Context, req Request) (validation.Context, *types.ValidationReport, error) {
	opts := p.opts
	opts.Force = req.Force

	vctx, err := validation.NewContext(ctx, p.provider, p.repo, req.Group, opts)
	if err != nil {
		return vctx, nil, fmt.Errorf("failed to prepare validation: %w", err)
	}

	report, err := validation.NewValidator(vctx, p.logger).Validate(ctx, req.Table)
	return vctx, report, err
}

// Run validates the table and, when validation permits or force is set,
// imports the accepted records and writes an import log.
//
// RETURNS:
//   - A Result; Result.Report is set whenever validation ran.
//   - *types.SchemaError, ErrImportRefused, *types.InfrastructureError, or
//     a collaborator failure.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	startTime := p.now()
	result := &Result{}
	if req.Table != nil {
		result.Stats.RowsRead = len(req.Table.Rows)
	}

	// =========================================================================
	// STEP 1: VALIDATE
	// =========================================================================

	vctx, report, err := p.validate(ctx, req)
	result.Report = report
	if err != nil {
		return result, err
	}
	result.Stats.CodesRegistered = vctx.Registry.Added()

	// =========================================================================
	// STEP 2: GATE
	// =========================================================================

	if report.OverallStatus == types.StatusError && !req.Force {
		p.logger.Warn("import refused",
			zap.String("source", req.Table.Source),
			zap.Int("errors", report.ErrorCount))
		return result, ErrImportRefused
	}

	// =========================================================================
	// STEP 3: IMPORT
	// =========================================================================

	opts := req.Import
	opts.Force = req.Force
	opts.Scope = vctx.Membership.Names()

	imported, err := importer.New(p.repo, p.metadata, p.logger).Import(ctx, report.Records, opts)
	result.Import = imported
	if err != nil {
		return result, err
	}

	// =========================================================================
	// STEP 4: IMPORT LOG
	// =========================================================================

	log := &types.ImportLog{
		BatchID:          imported.BatchID,
		Importer:         req.Importer,
		Filename:         req.Filename,
		ImportedAt:       p.now().UTC(),
		DataVersion:      req.DataVersion,
		TargetGroup:      vctx.Membership.Group(),
		ValidationResult: report.OverallStatus,
		ForceImport:      req.Force,
		ErrorCount:       report.ErrorCount,
		WarningCount:     report.WarningCount,
		RecordsImported:  imported.Imported(),
		Messages:         report.Messages,
	}
	if log.DataVersion == "" {
		log.DataVersion = "current"
	}

	if err := p.writeLog(ctx, log); err != nil {
		return result, err
	}
	result.Log = log
	result.Stats.ProcessingTime = time.Since(startTime)

	p.logger.Info("import complete",
		zap.String("batch_id", log.BatchID),
		zap.String("status", string(report.OverallStatus)),
		zap.Int("imported", log.RecordsImported),
		zap.Duration("elapsed", result.Stats.ProcessingTime))

	return result, nil
}

func (p *Pipeline) writeLog(ctx context.Context, log *types.ImportLog) error {
	if err := p.repo.CreateImportLog(ctx, log); err != nil {
		if store.IsUnavailable(err) {
			_ = p.repo.Rollback(ctx)
			return &types.InfrastructureError{Op: "write import log", Err: err}
		}
		return fmt.Errorf("failed to write import log: %w", err)
	}
	if err := p.repo.Commit(ctx); err != nil {
		_ = p.repo.Rollback(ctx)
		return &types.InfrastructureError{Op: "commit import log", Err: err}
	}
	return nil
}
