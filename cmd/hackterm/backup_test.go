package main

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wtfshenei/hacking-minigame/internal/config"
)

func TestRunBackupArchivesDataConfigAndLogs(t *testing.T) {
	restore := snapshotBackupHooks()
	defer restore()

	root := t.TempDir()
	cfg := backupConfig(t, root)
	logDir := cfg.LogDir
	for idx := 1; idx <= 4; idx++ {
		name := fmt.Sprintf("hackterm-2026021%d-100000-run-%d.log", idx, idx)
		record := fmt.Sprintf(`{"msg":"terminal started","run_id":"run-%d","trace_id":"trace-%d"}`+"\n", idx, idx)
		writeTestFile(t, filepath.Join(logDir, name), record)
	}
	current := filepath.Join(logDir, "hackterm-20260219-100000-run-current.log")
	writeTestFile(t, current, `{"msg":"backup","run_id":"run-current"}`+"\n")

	backupNowFn = func() time.Time { return time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC) }
	outputDir := filepath.Join(root, "out")
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	path, err := runBackup(cfg, current, outputDir)
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	if path != filepath.Join(outputDir, "hackterm-backup-20260220-100000.tar.gz") {
		t.Fatalf("archive path = %q", path)
	}

	contents := extractTarballTextFiles(t, path)
	for _, name := range []string{"data/settings.json", "data/commands.json", "config.toml", "README.txt"} {
		if _, ok := contents[name]; !ok {
			t.Fatalf("archive missing %s; have %v", name, keys(contents))
		}
	}
	if !strings.Contains(contents["data/settings.json"], "QR-7781") {
		t.Fatalf("settings not copied: %q", contents["data/settings.json"])
	}
	if strings.Contains(contents["config.toml"], "opensesame") {
		t.Fatalf("config should be redacted: %q", contents["config.toml"])
	}

	logCount := 0
	for name := range contents {
		if strings.HasPrefix(name, "logs/") {
			logCount++
			if strings.Contains(name, "run-current") {
				t.Fatal("the log of the running command must be skipped")
			}
			if strings.Contains(name, "run-1.log") {
				t.Fatal("only the three most recent logs are kept")
			}
		}
	}
	if logCount != 3 {
		t.Fatalf("log file count = %d, want 3", logCount)
	}
	if !strings.Contains(contents["README.txt"], "run_id: run-4") || !strings.Contains(contents["README.txt"], "trace_id: trace-4") {
		t.Fatalf("README missing newest correlation ids: %q", contents["README.txt"])
	}
}

func TestRunBackupDefaultsToWorkingDirectoryAndWarnsWithoutLogs(t *testing.T) {
	restore := snapshotBackupHooks()
	defer restore()

	root := t.TempDir()
	cfg := backupConfig(t, root)
	cfg.LogDir = filepath.Join(root, "no-logs")
	work := filepath.Join(root, "work")
	if err := os.MkdirAll(work, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	backupGetwdFn = func() (string, error) { return work, nil }
	backupNowFn = func() time.Time { return time.Date(2026, 2, 20, 11, 0, 0, 0, time.UTC) }

	path, err := runBackup(cfg, "", "")
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	if filepath.Dir(path) != work {
		t.Fatalf("archive written to %q, want %q", filepath.Dir(path), work)
	}
	contents := extractTarballTextFiles(t, path)
	if !strings.Contains(contents["README.txt"], "unable to read logs directory") {
		t.Fatalf("README should warn about missing logs: %q", contents["README.txt"])
	}
}

func TestRunBackupRequiresDataFiles(t *testing.T) {
	restore := snapshotBackupHooks()
	defer restore()

	root := t.TempDir()
	cfg := backupConfig(t, root)
	if err := os.Remove(cfg.CommandsPath()); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := runBackup(cfg, "", root); err == nil || !strings.Contains(err.Error(), "read game data") {
		t.Fatalf("error = %v, want missing data failure", err)
	}
}

func backupConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	dataDir := filepath.Join(root, "data")
	writeTestFile(t, filepath.Join(dataDir, "settings.json"), fastSettings)
	writeTestFile(t, filepath.Join(dataDir, "commands.json"), fastCommands)
	logDir := filepath.Join(root, "logs")
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	return &config.Config{
		DataDir:         dataDir,
		SettingsFile:    "settings.json",
		CommandsFile:    "commands.json",
		AdminToken:      "opensesame",
		InactivityGrace: 3 * time.Second,
		LogDir:          logDir,
		LogLevel:        "info",
		LogMaxFiles:     10,
		WatchFiles:      true,
	}
}

func snapshotBackupHooks() func() {
	previousNow := backupNowFn
	previousGetwd := backupGetwdFn
	return func() {
		backupNowFn = previousNow
		backupGetwdFn = previousGetwd
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func extractTarballTextFiles(t *testing.T, archivePath string) map[string]string {
	t.Helper()
	// #nosec G304 -- test archive path is generated inside a temp directory.
	file, err := os.Open(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("open gzip: %v", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	contents := map[string]string{}
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read tar: %v", err)
		}
		data, err := io.ReadAll(tarReader)
		if err != nil {
			t.Fatalf("read %s: %v", header.Name, err)
		}
		contents[header.Name] = string(data)
	}
	return contents
}

func keys(values map[string]string) []string {
	out := make([]string, 0, len(values))
	for key := range values {
		out = append(out, key)
	}
	return out
}
