package admin

import (
	"bytes"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wtfshenei/hacking-minigame/internal/store"
	"github.com/wtfshenei/hacking-minigame/internal/terminal"
	"github.com/wtfshenei/hacking-minigame/test"
)

func newTestConsole(t *testing.T, lines ...string) (*Console, *store.Store, *bytes.Buffer) {
	t.Helper()
	settingsPath, commandsPath := test.WriteGameData(t, t.TempDir(), test.SettingsJSON, test.CommandsJSON)
	gameStore, err := store.Open(settingsPath, commandsPath)
	require.NoError(t, err)

	output := &bytes.Buffer{}
	reader := test.NewScriptedReader(nil, test.Typed(lines...)...)
	console, err := NewConsole(reader, output, gameStore, "agartha", log.New(io.Discard))
	require.NoError(t, err)
	return console, gameStore, output
}

func TestEditNumericSetting(t *testing.T) {
	t.Parallel()

	console, gameStore, output := newTestConsole(t, "1", "2", "5", "9", "6")
	signal, err := console.Open(test.Context(t))
	require.NoError(t, err)

	assert.Equal(t, SignalNone, signal)
	assert.Equal(t, 5, gameStore.Current().Config.MaxErrors)
	assert.Contains(t, output.String(), "2. Error budget (current: 2)")
	assert.Contains(t, output.String(), "Value updated.")
}

func TestEditSequenceSetting(t *testing.T) {
	t.Parallel()

	console, gameStore, _ := newTestConsole(t, "1", "1", "Scan, LS", "9", "6")
	_, err := console.Open(test.Context(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"scan", "ls"}, gameStore.Current().Config.Sequence)
}

func TestInvalidSettingIsReportedAndKept(t *testing.T) {
	t.Parallel()

	console, gameStore, output := newTestConsole(t, "1", "2", "0", "2", "", "abc", "42", "9", "6")
	_, err := console.Open(test.Context(t))
	require.NoError(t, err)

	assert.Equal(t, 2, gameStore.Current().Config.MaxErrors)
	assert.Contains(t, output.String(), "Update failed: max_errors: must be > 0")
	assert.Contains(t, output.String(), "Unchanged.")
	assert.Contains(t, output.String(), "Invalid input.")
	assert.Contains(t, output.String(), "Invalid choice.")
}

func TestEditCommandDelay(t *testing.T) {
	t.Parallel()

	console, gameStore, output := newTestConsole(t, "2", "4", "-1", "4", "7", "6", "6")
	_, err := console.Open(test.Context(t))
	require.NoError(t, err)

	command, ok := gameStore.Current().Commands.Lookup("ls")
	require.True(t, ok)
	assert.Equal(t, 7, command.Delay)
	assert.Contains(t, output.String(), "4. ls (delay: 4s)")
	assert.Contains(t, output.String(), "Delay must be a whole number of seconds, 0 or more.")
}

func TestToggleCommandVisibility(t *testing.T) {
	t.Parallel()

	console, gameStore, output := newTestConsole(t, "3", "5", "6", "6")
	_, err := console.Open(test.Context(t))
	require.NoError(t, err)

	command, ok := gameStore.Current().Commands.Lookup("agartha")
	require.True(t, ok)
	assert.False(t, command.Hidden)
	assert.Contains(t, output.String(), "5. agartha [hidden]")
	assert.Contains(t, output.String(), "5. agartha [visible]")
}

func TestShuffleKeepsAdminTokenLast(t *testing.T) {
	t.Parallel()

	console, gameStore, output := newTestConsole(t, "4", "6")
	_, err := console.Open(test.Context(t))
	require.NoError(t, err)

	entries := gameStore.Current().Commands.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, "agartha", entries[len(entries)-1].Token)
	assert.Contains(t, output.String(), "Commands shuffled.")
}

func TestResetRequiresConfirmation(t *testing.T) {
	t.Parallel()

	console, _, output := newTestConsole(t, "5", "no", "5", "OUI")
	signal, err := console.Open(test.Context(t))
	require.NoError(t, err)

	assert.Equal(t, SignalReset, signal)
	assert.Equal(t, "reset", signal.String())
	assert.Contains(t, output.String(), "Reset cancelled.")
}

func TestInputFailureEndsMenu(t *testing.T) {
	t.Parallel()

	console, _, output := newTestConsole(t, "x")
	signal, err := console.Open(test.Context(t))

	require.ErrorIs(t, err, terminal.ErrClosed)
	assert.Equal(t, SignalNone, signal)
	assert.Contains(t, output.String(), "Invalid choice.")
}

func TestNewConsoleValidatesDependencies(t *testing.T) {
	t.Parallel()

	reader := test.NewScriptedReader(nil)
	_, err := NewConsole(nil, io.Discard, nil, "agartha", nil)
	require.Error(t, err)
	_, err = NewConsole(reader, nil, nil, "agartha", nil)
	require.Error(t, err)
	_, err = NewConsole(reader, io.Discard, nil, "agartha", nil)
	require.Error(t, err)
}
