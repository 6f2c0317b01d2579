package logging

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	records := make([]map[string]any, 0)
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		record := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &record), "line %q", line)
		records = append(records, record)
	}
	return records
}

func TestNewWritesJSONRecordsToDir(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(context.Background(), WithDir(dir), WithRunID("run-42"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	assert.Equal(t, dir, filepath.Dir(logger.Path()))
	assert.True(t, strings.HasPrefix(filepath.Base(logger.Path()), "hackterm-"))
	assert.True(t, strings.HasSuffix(logger.Path(), "-run-42.log"))

	logger.Logger.Info("terminal started", "session_id", "s-1")
	logger.Logger.Debug("hidden at info level")

	records := readRecords(t, logger.Path())
	require.Len(t, records, 2)
	assert.Equal(t, "logger initialized", records[0]["msg"])
	assert.Equal(t, "terminal started", records[1]["msg"])
	assert.Equal(t, "run-42", records[1]["run_id"])
	assert.Equal(t, "s-1", records[1]["session_id"])
}

func TestWithLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(context.Background(), WithDir(dir), WithLevel("debug"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	logger.Logger.Debug("debug record")
	records := readRecords(t, logger.Path())
	require.Len(t, records, 2)
	assert.Equal(t, "debug record", records[1]["msg"])

	quiet, err := New(context.Background(), WithDir(t.TempDir()), WithLevel("nonsense"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = quiet.Close() })
	quiet.Logger.Debug("dropped")
	assert.Len(t, readRecords(t, quiet.Path()), 1, "unknown levels keep info")
}

func TestNewTakesTraceIDsFromContext(t *testing.T) {
	provider := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	ctx, span := provider.Tracer("test/logging").Start(context.Background(), "startup")
	defer span.End()

	logger, err := New(ctx, WithDir(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	records := readRecords(t, logger.Path())
	require.NotEmpty(t, records)
	assert.Equal(t, span.SpanContext().TraceID().String(), records[0]["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), records[0]["span_id"])
}

func TestRuntimeLoggerFieldUpdates(t *testing.T) {
	logger, err := New(context.Background(), WithDir(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	logger.WithRunID("run-7").WithTraceID("trace-1").WithSpanID("span-1")
	logger.Logger.Info("after update")

	records := readRecords(t, logger.Path())
	last := records[len(records)-1]
	assert.Equal(t, "run-7", last["run_id"])
	assert.Equal(t, "trace-1", last["trace_id"])
	assert.Equal(t, "span-1", last["span_id"])

	_, err = logger.Writer().Write([]byte("plain line\n"))
	require.NoError(t, err)
	data, err := os.ReadFile(logger.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "plain line\n"))

	var nilLogger *RuntimeLogger
	assert.Equal(t, io.Discard, nilLogger.Writer())
	assert.Nil(t, nilLogger.WithRunID("x"))
	assert.NoError(t, nilLogger.Close())
	assert.Empty(t, nilLogger.Path())
}

func TestWithMaxFilesPrunesOldestLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"hackterm-20260101-000000.log",
		"hackterm-20260102-000000.log",
		"hackterm-20260103-000000.log",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0o600))
	}

	logger, err := New(context.Background(), WithDir(dir), WithMaxFiles(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	files, err := Files(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "hackterm-20260103-000000.log"),
		logger.Path(),
	}, files)
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err, "unrelated files are kept")
}
