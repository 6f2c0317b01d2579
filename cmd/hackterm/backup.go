package main

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/wtfshenei/hacking-minigame/internal/config"
	"github.com/wtfshenei/hacking-minigame/internal/logging"
)

const backupLogLimit = 3

var (
	backupNowFn = func() time.Time {
		return time.Now().UTC()
	}
	backupGetwdFn = os.Getwd
)

func newBackupCommand(a *app) *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a tar.gz of the game data, redacted config and recent logs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, end := a.traced(cmd.Context(), "backup")
			defer end()

			a.logger.With("command", "backup").Info("collecting backup bundle")
			path, err := runBackup(a.cfg, a.runtime.Path(), outputDir)
			if err != nil {
				return err
			}
			a.logger.Info("backup written", "path", path)
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Backup written to: %s\n", path); err != nil {
				return fmt.Errorf("write backup output: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "output", "", "directory for the archive (default: current directory)")
	return cmd
}

type backupSummary struct {
	Timestamp string
	Version   string
	DataFiles []string
	LogFiles  []string
	RunID     string
	TraceID   string
	Warnings  []string
}

// runBackup stages the bundle in a temp directory and archives it. The log
// of the current run is skipped since it is still being written.
func runBackup(cfg *config.Config, currentLog, outputDir string) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("config is required")
	}
	if strings.TrimSpace(outputDir) == "" {
		cwd, err := backupGetwdFn()
		if err != nil {
			return "", fmt.Errorf("resolve current directory: %w", err)
		}
		outputDir = cwd
	}
	outputDir = filepath.Clean(outputDir)

	timestamp := backupNowFn().Format("20060102-150405")
	bundlePath := filepath.Join(outputDir, fmt.Sprintf("hackterm-backup-%s.tar.gz", timestamp))

	stagingDir, err := os.MkdirTemp("", "hackterm-backup-*")
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(stagingDir)
	}()

	summary := backupSummary{
		Timestamp: backupNowFn().Format(time.RFC3339),
		Version:   Version,
		Warnings:  make([]string, 0),
	}
	if err := stageDataFiles(cfg, stagingDir, &summary); err != nil {
		return "", err
	}
	if err := stageRedactedConfig(cfg, stagingDir); err != nil {
		return "", err
	}
	logFiles, warnings := stageRecentLogs(cfg.LogDir, currentLog, stagingDir, backupLogLimit)
	summary.LogFiles = logFiles
	summary.Warnings = append(summary.Warnings, warnings...)
	summary.RunID, summary.TraceID = extractLastCorrelation(logFiles)
	if summary.RunID == "" && summary.TraceID == "" && len(logFiles) > 0 {
		summary.Warnings = append(summary.Warnings, "no run_id/trace_id found in copied logs")
	}

	if err := writeBackupREADME(stagingDir, summary); err != nil {
		return "", err
	}
	if err := archiveDir(stagingDir, bundlePath); err != nil {
		return "", err
	}
	return bundlePath, nil
}

// stageDataFiles copies the game data. Both files are required: a backup
// without them is useless.
func stageDataFiles(cfg *config.Config, stagingDir string, summary *backupSummary) error {
	destDir := filepath.Join(stagingDir, "data")
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("create data staging directory: %w", err)
	}
	for _, source := range []string{cfg.SettingsPath(), cfg.CommandsPath()} {
		// #nosec G304 -- data paths come from operator configuration.
		data, err := os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("read game data %q: %w", source, err)
		}
		if err := os.WriteFile(filepath.Join(destDir, filepath.Base(source)), data, 0o600); err != nil {
			return fmt.Errorf("stage game data %q: %w", source, err)
		}
		summary.DataFiles = append(summary.DataFiles, source)
	}
	return nil
}

func stageRedactedConfig(cfg *config.Config, stagingDir string) error {
	redacted, err := cfg.Redacted()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(stagingDir, config.FileName), redacted, 0o600); err != nil {
		return fmt.Errorf("write redacted config: %w", err)
	}
	return nil
}

func stageRecentLogs(logDir, currentLog, stagingDir string, limit int) ([]string, []string) {
	files, err := logging.Files(logDir)
	if err != nil {
		return nil, []string{fmt.Sprintf("unable to read logs directory: %v", err)}
	}

	candidates := make([]string, 0, len(files))
	for idx := len(files) - 1; idx >= 0 && len(candidates) < limit; idx-- {
		if files[idx] == currentLog {
			continue
		}
		candidates = append(candidates, files[idx])
	}

	destDir := filepath.Join(stagingDir, "logs")
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, []string{fmt.Sprintf("unable to create logs staging directory: %v", err)}
	}

	warnings := make([]string, 0)
	copied := make([]string, 0, len(candidates))
	for _, file := range candidates {
		// #nosec G304 -- source path comes from the run log directory listing.
		data, readErr := os.ReadFile(file)
		if readErr != nil {
			warnings = append(warnings, fmt.Sprintf("unable to read log %s: %v", file, readErr))
			continue
		}
		if writeErr := os.WriteFile(filepath.Join(destDir, filepath.Base(file)), data, 0o600); writeErr != nil {
			warnings = append(warnings, fmt.Sprintf("unable to stage log %s: %v", file, writeErr))
			continue
		}
		copied = append(copied, file)
	}
	return copied, warnings
}

// extractLastCorrelation returns the ids of the newest record that has any.
// logPaths is ordered newest first.
func extractLastCorrelation(logPaths []string) (string, string) {
	for _, logPath := range logPaths {
		// #nosec G304 -- log paths come from the run log directory listing.
		data, err := os.ReadFile(logPath)
		if err != nil {
			continue
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			line := strings.TrimSpace(lines[i])
			if line == "" {
				continue
			}
			record := map[string]any{}
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				continue
			}
			runID := asString(record["run_id"])
			traceID := asString(record["trace_id"])
			if runID == "" && traceID == "" {
				continue
			}
			return runID, traceID
		}
	}
	return "", ""
}

func writeBackupREADME(stagingDir string, summary backupSummary) error {
	builder := strings.Builder{}
	builder.WriteString("hackterm backup\n")
	builder.WriteString("===============\n\n")
	builder.WriteString(fmt.Sprintf("Generated: %s\n", summary.Timestamp))
	builder.WriteString(fmt.Sprintf("Version: %s\n", summary.Version))
	builder.WriteString(fmt.Sprintf("run_id: %s\n", summary.RunID))
	builder.WriteString(fmt.Sprintf("trace_id: %s\n\n", summary.TraceID))
	builder.WriteString("Included artifacts:\n")
	for _, file := range summary.DataFiles {
		builder.WriteString(fmt.Sprintf("- data/%s (from %s)\n", filepath.Base(file), file))
	}
	builder.WriteString(fmt.Sprintf("- %s (admin token redacted)\n", config.FileName))
	builder.WriteString(fmt.Sprintf("- logs/ (up to last %d run logs)\n\n", backupLogLimit))
	builder.WriteString("Restore:\n")
	builder.WriteString("- Copy data/*.json back into the data directory; a running terminal reloads them.\n")
	if len(summary.Warnings) > 0 {
		builder.WriteString("\nWarnings:\n")
		for _, warning := range summary.Warnings {
			builder.WriteString("- " + warning + "\n")
		}
	}

	if err := os.WriteFile(filepath.Join(stagingDir, "README.txt"), []byte(builder.String()), 0o600); err != nil {
		return fmt.Errorf("write README.txt: %w", err)
	}
	return nil
}

func archiveDir(stagingDir, destination string) (err error) {
	// #nosec G304 -- destination is an operator-chosen directory with a generated file name.
	archiveFile, err := os.OpenFile(destination, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", destination, err)
	}
	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)
	defer func() {
		for _, closer := range []io.Closer{tarWriter, gzipWriter, archiveFile} {
			if closeErr := closer.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("finish archive %s: %w", destination, closeErr)
			}
		}
	}()

	walkErr := filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("read file info for %s: %w", path, err)
		}

		relPath, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return fmt.Errorf("compute archive path for %s: %w", path, err)
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("create tar header for %s: %w", path, err)
		}
		header.Name = filepath.ToSlash(relPath)

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("write tar header for %s: %w", path, err)
		}

		// #nosec G304 -- walk paths originate from controlled staging directory.
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s for archive: %w", path, err)
		}
		if _, err := io.Copy(tarWriter, file); err != nil {
			_ = file.Close()
			return fmt.Errorf("copy %s into archive: %w", path, err)
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("archive backup: %w", walkErr)
	}

	return nil
}

func asString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	default:
		return ""
	}
}
