// Package test provides shared fixtures and fakes for hackterm tests.
package test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wtfshenei/hacking-minigame/internal/clock"
	"github.com/wtfshenei/hacking-minigame/internal/terminal"
)

// SettingsJSON is a complete settings file: sequence scan, bypass, unlock and
// an error budget of two.
const SettingsJSON = `{
  "sequence": {"description": "Solution path", "value": ["scan", "bypass", "unlock"]},
  "max_errors": {"description": "Error budget", "value": 2},
  "alarm_duration": {"description": "Alarm seconds", "value": 3},
  "block_time_on_alarm": {"description": "Lockout seconds", "value": 5},
  "global_timer": {"description": "Global timer seconds", "value": 0},
  "victory_display_time": {"description": "Victory hold seconds", "value": 10},
  "victory_code": {"description": "Code shown on success", "value": "QR-7781"},
  "inactivity_timeout": {"description": "Idle reset seconds", "value": 60}
}
`

// CommandsJSON is the command table matching SettingsJSON. The admin token
// agartha is hidden and listed last.
const CommandsJSON = `{
  "commands": {
    "scan": {"description": "Scan the network", "delay": 2},
    "bypass": {"description": "Bypass the firewall", "delay": 1},
    "unlock": {"description": "Unlock the vault"},
    "ls": {"description": "List files", "delay": 4},
    "agartha": {"description": "Operator console", "hidden": true}
  }
}
`

// Context returns a context canceled when the test completes.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// TempDir creates a temporary directory removed when the test completes.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "hackterm-test-*")
	require.NoError(t, err, "failed to create temp dir")
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// WriteGameData writes settings and commands files into dir and returns
// their paths.
func WriteGameData(t *testing.T, dir, settings, commands string) (string, string) {
	t.Helper()
	settingsPath := filepath.Join(dir, "settings.json")
	commandsPath := filepath.Join(dir, "commands.json")
	require.NoError(t, os.WriteFile(settingsPath, []byte(settings), 0o600), "failed to write settings")
	require.NoError(t, os.WriteFile(commandsPath, []byte(commands), 0o600), "failed to write commands")
	return settingsPath, commandsPath
}

// Chdir changes to dir for the duration of the test.
func Chdir(t *testing.T, dir string) {
	t.Helper()
	original, err := os.Getwd()
	require.NoError(t, err, "failed to get working directory")

	err = os.Chdir(dir)
	require.NoError(t, err, "failed to change directory")

	t.Cleanup(func() {
		err := os.Chdir(original)
		assert.NoError(t, err, "failed to restore working directory")
	})
}

// AssertFileExists checks if a file exists.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.NoError(t, err, "file should exist: %s", path)
}

// ScriptedLine is one scripted ReadLine result. After is the time the
// player takes before the line completes.
type ScriptedLine struct {
	Text     string
	TimedOut bool
	Err      error
	After    time.Duration
}

// Typed returns scripted lines for each text.
func Typed(texts ...string) []ScriptedLine {
	lines := make([]ScriptedLine, 0, len(texts))
	for _, text := range texts {
		lines = append(lines, ScriptedLine{Text: text})
	}
	return lines
}

// ScriptedReader replays lines in order. Once the script is exhausted it
// reports closed input wrapping io.EOF.
type ScriptedReader struct {
	mu        sync.Mutex
	lines     []ScriptedLine
	clock     *clock.Fake
	deadlines []time.Duration
}

// NewScriptedReader returns a reader over lines. When fake is non-nil each
// line advances it by its After duration, or by the deadline on timeout.
func NewScriptedReader(fake *clock.Fake, lines ...ScriptedLine) *ScriptedReader {
	return &ScriptedReader{lines: append([]ScriptedLine(nil), lines...), clock: fake}
}

// Push appends lines to the script.
func (r *ScriptedReader) Push(lines ...ScriptedLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, lines...)
}

// ReadLine implements the game and admin line reader contract.
func (r *ScriptedReader) ReadLine(ctx context.Context, deadline time.Duration) (terminal.Line, error) {
	if err := ctx.Err(); err != nil {
		return terminal.Line{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadlines = append(r.deadlines, deadline)
	if len(r.lines) == 0 {
		return terminal.Line{}, fmt.Errorf("%w: %w", terminal.ErrClosed, io.EOF)
	}
	next := r.lines[0]
	r.lines = r.lines[1:]

	if r.clock != nil {
		elapsed := next.After
		if next.TimedOut && deadline > 0 {
			elapsed = deadline
		}
		r.clock.Advance(elapsed)
	}
	if next.Err != nil {
		return terminal.Line{}, next.Err
	}
	return terminal.Line{Text: next.Text, TimedOut: next.TimedOut}, nil
}

// Deadlines returns the deadline passed to every ReadLine call.
func (r *ScriptedReader) Deadlines() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.deadlines))
	copy(out, r.deadlines)
	return out
}

// Remaining reports how many scripted lines have not been read.
func (r *ScriptedReader) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}
