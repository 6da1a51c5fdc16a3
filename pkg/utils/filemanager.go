// =============================================================================
// Roster Importer - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the importer, including:
//   - Roster discovery in the inbox directory
//   - Matching inbox files to membership groups
//   - File archival (moving imported rosters)
//   - Report and summary generation
//
// ARCHIVAL STRATEGY:
//   - Rosters are moved to the archive after a successful import
//   - Refused or failed rosters remain in the inbox
//   - Validation reports are written to the reports directory either way
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/roster-importer/internal/config"
)

// rosterExtensions are the inbox file types the importer can read.
var rosterExtensions = map[string]bool{
	".csv":  true,
	".tsv":  true,
	".txt":  true,
	".xlsx": true,
	".xlsm": true,
}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the importer.
type FileManager struct {
	// InboxDir is the directory scanned for roster files.
	InboxDir string

	// ArchiveDir receives imported roster files.
	ArchiveDir string

	// ReportsDir receives validation reports and summaries.
	ReportsDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: archive/2025/01/15/roster.csv
	UseTimestampSubdirs bool

	now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inboxDir, archiveDir, reportsDir string) *FileManager {
	return &FileManager{
		InboxDir:   inboxDir,
		ArchiveDir: archiveDir,
		ReportsDir: reportsDir,
		now:        time.Now,
	}
}

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InboxDir, fm.ArchiveDir, fm.ReportsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverRosterFiles lists the roster files in the inbox, sorted by name.
// Hidden files and office lock files ("~$...") are ignored.
func (fm *FileManager) DiscoverRosterFiles() ([]string, error) {
	entries, err := os.ReadDir(fm.InboxDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan inbox directory: %w", err)
	}

	var result []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if !rosterExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		result = append(result, filepath.Join(fm.InboxDir, name))
	}

	sort.Strings(result)
	return result, nil
}

// IsSpreadsheet reports whether path names a workbook rather than
// delimited text.
func IsSpreadsheet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// MatchGroup returns the first group, in name order, with a file matching
// pattern that matches the file's base name. Matching ignores case.
func MatchGroup(filePath string, groups map[string]*config.GroupConfig) (string, bool) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	base := strings.ToLower(filepath.Base(filePath))
	for _, name := range names {
		for _, pattern := range groups[name].FileMatchingPatterns {
			if ok, err := filepath.Match(strings.ToLower(pattern), base); err == nil && ok {
				return name, true
			}
		}
	}
	return "", false
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveFile moves a roster file to the archive directory. An existing
// archive file of the same name is never overwritten; a timestamp is added
// to the new name instead.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveFile(filePath string) (string, error) {
	archivePath := fm.getArchivePath(filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if FileExists(archivePath) {
		ext := filepath.Ext(archivePath)
		archivePath = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(archivePath, ext),
			fm.now().Format("20060102_150405"), ext)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// If rename fails (e.g., cross-device), try copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

func (fm *FileManager) getArchivePath(filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := fm.now()
		return filepath.Join(fm.ArchiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName)
	}

	return filepath.Join(fm.ArchiveDir, fileName)
}

// =============================================================================
// REPORTS
// =============================================================================

// ReportFileName builds a unique report name for a source file:
// "<source>_<timestamp>_<id>.<ext>", where id is the first block of a UUID.
func (fm *FileManager) ReportFileName(sourcePath, ext string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	if base == "" || base == "." {
		base = "roster"
	}
	id := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("%s_%s_%s.%s", base, fm.now().Format("20060102_150405"), id, strings.TrimPrefix(ext, "."))
}

// WriteYAMLReport marshals v to a YAML file in the reports directory.
//
// RETURNS:
//   - The path to the report file.
func (fm *FileManager) WriteYAMLReport(v interface{}, sourcePath string) (string, error) {
	path := filepath.Join(fm.ReportsDir, fm.ReportFileName(sourcePath, "yaml"))
	if err := WriteYAML(v, path); err != nil {
		return "", err
	}
	return path, nil
}

// WriteYAML marshals v to path, creating the parent directory.
func WriteYAML(v interface{}, path string) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	RefusedFiles    int
	FailedFiles     int
	Created         int
	Updated         int
	Skipped         int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully imported file.
type ProcessedFileInfo struct {
	InputFile   string
	Group       string
	BatchID     string
	Status      string
	ArchivePath string
	ReportPath  string
	Created     int
	Updated     int
	Skipped     int
	ProcessTime time.Duration
}

// FailedFileInfo contains information about a refused or failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ReportPath   string
}

// WriteSummaryLog writes a processing summary to the reports directory.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func (fm *FileManager) WriteSummaryLog(summary ProcessingSummary) (string, error) {
	summaryPath := filepath.Join(fm.ReportsDir,
		fmt.Sprintf("processing_summary_%s.txt", fm.now().Format("20060102_150405")))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "Roster Importer - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:   %d\n"+
		"  Imported:      %d\n"+
		"  Refused:       %d\n"+
		"  Failed:        %d\n"+
		"  Created:       %d\n"+
		"  Updated:       %d\n"+
		"  Skipped:       %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.RefusedFiles,
		summary.FailedFiles,
		summary.Created,
		summary.Updated,
		summary.Skipped)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Imported Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:    %s\n", pf.InputFile)
			fmt.Fprintf(writer, "  Group:    %s\n", pf.Group)
			fmt.Fprintf(writer, "  Batch:    %s (%s)\n", pf.BatchID, pf.Status)
			fmt.Fprintf(writer, "  Counts:   created %d, updated %d, skipped %d\n", pf.Created, pf.Updated, pf.Skipped)
			fmt.Fprintf(writer, "  Report:   %s\n", pf.ReportPath)
			fmt.Fprintf(writer, "  Archived: %s\n\n", pf.ArchivePath)
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:   %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Error:  %s\n", ff.ErrorMessage)
			if ff.ReportPath != "" {
				fmt.Fprintf(writer, "  Report: %s\n", ff.ReportPath)
			}
			writer.WriteString("\n")
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
