// Package admin is the operator menu reached by typing the admin token at the
// game prompt. It edits the data files through the store and tells the game
// whether the session should be reset.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/wtfshenei/hacking-minigame/internal/store"
	"github.com/wtfshenei/hacking-minigame/internal/terminal"
)

// Signal is what the console asks of the game on return.
type Signal int

const (
	// SignalNone keeps the current session.
	SignalNone Signal = iota
	// SignalReset resets the session.
	SignalReset
)

func (s Signal) String() string {
	if s == SignalReset {
		return "reset"
	}
	return "none"
}

// LineReader reads one operator line.
type LineReader interface {
	ReadLine(ctx context.Context, deadline time.Duration) (terminal.Line, error)
}

// Editor is the subset of the store the console mutates.
type Editor interface {
	Current() *store.Snapshot
	SetSetting(key string, value any) error
	SetCommandDelay(token string, delay int) error
	SetCommandHidden(token string, hidden bool) error
	ShuffleCommands(keepLast string) error
}

// Console is the blocking operator menu.
type Console struct {
	reader     LineReader
	output     io.Writer
	editor     Editor
	adminToken string
	logger     *log.Logger
}

// NewConsole builds a Console. adminToken is kept last when commands are
// shuffled.
func NewConsole(reader LineReader, output io.Writer, editor Editor, adminToken string, logger *log.Logger) (*Console, error) {
	if reader == nil {
		return nil, errors.New("admin line reader is required")
	}
	if output == nil {
		return nil, errors.New("admin output is required")
	}
	if editor == nil {
		return nil, errors.New("admin editor is required")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Console{
		reader:     reader,
		output:     output,
		editor:     editor,
		adminToken: store.NormalizeToken(adminToken),
		logger:     logger,
	}, nil
}

// Open runs the menu until the operator returns or confirms a reset. Input
// failures end the menu with SignalNone and the error.
func (c *Console) Open(ctx context.Context) (Signal, error) {
	if c == nil {
		return SignalNone, errors.New("admin console is nil")
	}
	c.logger.Info("admin console opened")
	for {
		writeln(c.output, "")
		writeln(c.output, "=== ADMIN MENU ===")
		writeln(c.output, "1. Edit settings")
		writeln(c.output, "2. Edit command delays")
		writeln(c.output, "3. Toggle command visibility")
		writeln(c.output, "4. Shuffle commands")
		writeln(c.output, "5. Reset hacking session")
		writeln(c.output, "6. Return to game")

		choice, err := c.ask(ctx, "> ")
		if err != nil {
			return SignalNone, err
		}
		switch choice {
		case "1":
			err = c.editSettings(ctx)
		case "2":
			err = c.editDelays(ctx)
		case "3":
			err = c.toggleVisibility(ctx)
		case "4":
			c.shuffle()
		case "5":
			confirmed, confirmErr := c.confirmReset(ctx)
			if confirmErr != nil {
				return SignalNone, confirmErr
			}
			if confirmed {
				c.logger.Info("admin console closed", "signal", SignalReset)
				return SignalReset, nil
			}
		case "6":
			c.logger.Info("admin console closed", "signal", SignalNone)
			return SignalNone, nil
		default:
			writeln(c.output, "Invalid choice.")
		}
		if err != nil {
			return SignalNone, err
		}
	}
}

func (c *Console) editSettings(ctx context.Context) error {
	for {
		settings := c.editor.Current().Settings.All()
		writeln(c.output, "")
		writeln(c.output, "--- Settings ---")
		for idx, setting := range settings {
			writef(c.output, "%d. %s (current: %s)\n", idx+1, setting.Label(), setting.FormatValue())
		}
		writef(c.output, "%d. Back\n", len(settings)+1)

		index, back, err := c.pick(ctx, len(settings))
		if err != nil || back {
			return err
		}
		if index < 0 {
			continue
		}

		setting := settings[index]
		raw, err := c.ask(ctx, fmt.Sprintf("New value for '%s': ", setting.Key))
		if err != nil {
			return err
		}
		if raw == "" {
			writeln(c.output, "Unchanged.")
			continue
		}
		if err := c.editor.SetSetting(setting.Key, store.ParseSettingInput(setting.Key, raw)); err != nil {
			c.logger.Warn("setting update rejected", "key", setting.Key, "error", err)
			writef(c.output, "Update failed: %v\n", err)
			continue
		}
		c.logger.Info("setting updated", "key", setting.Key, "value", raw)
		writeln(c.output, "Value updated.")
	}
}

func (c *Console) editDelays(ctx context.Context) error {
	for {
		entries := c.editor.Current().Commands.Entries()
		writeln(c.output, "")
		writeln(c.output, "--- Command delays ---")
		for idx, entry := range entries {
			writef(c.output, "%d. %s (delay: %ds)\n", idx+1, entry.Token, entry.Delay)
		}
		writef(c.output, "%d. Back\n", len(entries)+1)

		index, back, err := c.pick(ctx, len(entries))
		if err != nil || back {
			return err
		}
		if index < 0 {
			continue
		}

		entry := entries[index]
		raw, err := c.ask(ctx, fmt.Sprintf("New delay in seconds for '%s': ", entry.Token))
		if err != nil {
			return err
		}
		delay, convErr := strconv.Atoi(raw)
		if convErr != nil || delay < 0 {
			writeln(c.output, "Delay must be a whole number of seconds, 0 or more.")
			continue
		}
		if err := c.editor.SetCommandDelay(entry.Token, delay); err != nil {
			writef(c.output, "Update failed: %v\n", err)
			continue
		}
		c.logger.Info("command delay updated", "command", entry.Token, "delay", delay)
		writeln(c.output, "Delay updated.")
	}
}

func (c *Console) toggleVisibility(ctx context.Context) error {
	for {
		entries := c.editor.Current().Commands.Entries()
		writeln(c.output, "")
		writeln(c.output, "--- Command visibility ---")
		for idx, entry := range entries {
			state := "visible"
			if entry.Hidden {
				state = "hidden"
			}
			writef(c.output, "%d. %s [%s]\n", idx+1, entry.Token, state)
		}
		writef(c.output, "%d. Back\n", len(entries)+1)

		index, back, err := c.pick(ctx, len(entries))
		if err != nil || back {
			return err
		}
		if index < 0 {
			continue
		}

		entry := entries[index]
		if err := c.editor.SetCommandHidden(entry.Token, !entry.Hidden); err != nil {
			writef(c.output, "Update failed: %v\n", err)
			continue
		}
		c.logger.Info("command visibility updated", "command", entry.Token, "hidden", !entry.Hidden)
	}
}

func (c *Console) shuffle() {
	if err := c.editor.ShuffleCommands(c.adminToken); err != nil {
		c.logger.Warn("command shuffle failed", "error", err)
		writef(c.output, "Shuffle failed: %v\n", err)
		return
	}
	c.logger.Info("commands shuffled")
	writeln(c.output, "Commands shuffled.")
}

func (c *Console) confirmReset(ctx context.Context) (bool, error) {
	answer, err := c.ask(ctx, "Confirm session reset? (yes/no): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "yes", "y", "oui", "o":
		return true, nil
	default:
		writeln(c.output, "Reset cancelled.")
		return false, nil
	}
}

// pick reads a 1-based menu choice over count items plus a trailing Back
// entry. index is -1 when the input was invalid.
func (c *Console) pick(ctx context.Context, count int) (index int, back bool, err error) {
	raw, err := c.ask(ctx, "> ")
	if err != nil {
		return -1, false, err
	}
	choice, convErr := strconv.Atoi(raw)
	switch {
	case convErr != nil:
		writeln(c.output, "Invalid input.")
		return -1, false, nil
	case choice == count+1:
		return -1, true, nil
	case choice < 1 || choice > count:
		writeln(c.output, "Invalid choice.")
		return -1, false, nil
	}
	return choice - 1, false, nil
}

func (c *Console) ask(ctx context.Context, prompt string) (string, error) {
	write(c.output, prompt)
	line, err := c.reader.ReadLine(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("read admin input: %w", err)
	}
	return strings.TrimSpace(line.Text), nil
}

func write(output io.Writer, text string) {
	if output == nil {
		return
	}
	if _, err := io.WriteString(output, text); err != nil {
		return
	}
}

func writeln(output io.Writer, text string) {
	write(output, text+"\n")
}

func writef(output io.Writer, format string, values ...any) {
	if output == nil {
		return
	}
	if _, err := fmt.Fprintf(output, format, values...); err != nil {
		return
	}
}
