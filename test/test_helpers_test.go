package test

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wtfshenei/hacking-minigame/internal/clock"
	"github.com/wtfshenei/hacking-minigame/internal/terminal"
)

func TestScriptedReaderReplaysAndAdvancesClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	fake := clock.NewFake(start)
	reader := NewScriptedReader(fake,
		ScriptedLine{Text: "scan", After: 2 * time.Second},
		ScriptedLine{TimedOut: true},
	)
	reader.Push(Typed("bypass")...)
	ctx := Context(t)

	line, err := reader.ReadLine(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "scan", line.Text)

	line, err = reader.ReadLine(ctx, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, line.TimedOut)

	line, err = reader.ReadLine(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "bypass", line.Text)
	assert.Equal(t, start.Add(32*time.Second), fake.Now())

	_, err = reader.ReadLine(ctx, 0)
	assert.True(t, errors.Is(err, terminal.ErrClosed) && errors.Is(err, io.EOF), "error = %v", err)
	assert.Equal(t, []time.Duration{0, 30 * time.Second, 0, 0}, reader.Deadlines())
	assert.Zero(t, reader.Remaining())
}

func TestWriteGameData(t *testing.T) {
	t.Parallel()

	settingsPath, commandsPath := WriteGameData(t, TempDir(t), SettingsJSON, CommandsJSON)
	AssertFileExists(t, settingsPath)
	AssertFileExists(t, commandsPath)
}
