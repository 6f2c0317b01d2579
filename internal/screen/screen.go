// Package screen draws everything the player sees outside of typed input:
// banners, notices, the help listing, loading bars and the victory code.
package screen

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/muesli/termenv"
	"github.com/wtfshenei/hacking-minigame/internal/clock"
	"github.com/wtfshenei/hacking-minigame/internal/store"
	"github.com/wtfshenei/hacking-minigame/internal/theme"
)

const (
	// DefaultTitle is the banner shown when no title is configured.
	DefaultTitle = "*** SYDNEY-S7E35810 VAULT TERMINAL ***"
	// BarCells is the number of cells a loading bar fills.
	BarCells = 30
	// PromptText precedes every input line.
	PromptText = "> "
)

// Tone selects the styling of a notice.
type Tone int

const (
	// ToneInfo is a neutral notice.
	ToneInfo Tone = iota
	// ToneSuccess marks accepted input.
	ToneSuccess
	// ToneError marks rejected input.
	ToneError
	// ToneWarning marks resets and lockouts.
	ToneWarning
)

// Option configures a Screen.
type Option func(*Screen)

// WithClock overrides the clock used to pace loading bars.
func WithClock(c clock.Clock) Option {
	return func(s *Screen) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithTitle sets the intro banner title.
func WithTitle(title string) Option {
	return func(s *Screen) {
		if strings.TrimSpace(title) != "" {
			s.title = title
		}
	}
}

// WithAlarmSound sets an external player command started once per alarm, for
// example "aplay /opt/prop/siren.wav". The terminal bell is always rung.
func WithAlarmSound(command string) Option {
	return func(s *Screen) {
		s.soundCmd = strings.Fields(command)
	}
}

// Screen writes presentation output to a terminal.
type Screen struct {
	out      io.Writer
	output   *termenv.Output
	clock    clock.Clock
	title    string
	soundCmd []string
	bar      progress.Model
}

// New returns a Screen writing to out.
func New(out io.Writer, options ...Option) *Screen {
	s := &Screen{
		out:    out,
		output: termenv.NewOutput(out),
		clock:  clock.System{},
		title:  DefaultTitle,
		bar:    newBarModel(),
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(s)
	}
	return s
}

func newBarModel() progress.Model {
	return progress.New(
		progress.WithWidth(BarCells),
		progress.WithoutPercentage(),
		progress.WithFillCharacters('█', ' '),
		progress.WithSolidFill(theme.Phosphor),
	)
}

// Clear wipes the screen and homes the cursor.
func (s *Screen) Clear() {
	s.output.ClearScreen()
}

// Intro prints the banner and the help hint.
func (s *Screen) Intro() {
	s.writeln("")
	s.writeln(theme.BannerBorder.Render(s.title))
	s.writef("Type %s to list the available commands.\n\n", theme.PromptStyle.Render("help"))
}

// Prompt prints the input prompt without a newline.
func (s *Screen) Prompt() {
	s.write(theme.PromptStyle.Render(PromptText))
}

// Notice prints one styled line.
func (s *Screen) Notice(tone Tone, text string) {
	switch tone {
	case ToneSuccess:
		s.writeln(theme.SuccessStyle.Render(theme.IconOK + " " + text))
	case ToneError:
		s.writeln(theme.ErrorStyle.Render(theme.IconFail + " " + text))
	case ToneWarning:
		s.writeln(theme.WarningStyle.Render(theme.IconWarn + " " + text))
	default:
		s.writeln(theme.InfoStyle.Render(theme.IconInfo + " " + text))
	}
}

// Help lists the given commands in order.
func (s *Screen) Help(entries []store.CommandEntry) {
	s.writeln("")
	s.writeln(theme.InfoStyle.Render("Available commands:"))
	if len(entries) == 0 {
		s.writeln(theme.MutedStyle.Render("  (none)"))
	}
	for _, entry := range entries {
		s.writef("  - %s : %s\n", theme.PromptStyle.Render(entry.Token), theme.MutedStyle.Render(entry.Description))
	}
	s.writeln("")
}

// Banner prints a framed alarm message.
func (s *Screen) Banner(text string) {
	s.writeln("")
	s.writeln(theme.AlarmBorder.Render(text))
}

// Victory prints the framed victory code.
func (s *Screen) Victory(code string) {
	s.writeln("")
	s.writeln(theme.SuccessStyle.Render("--- HACK SUCCESSFUL ---"))
	s.writeln(theme.VictoryBorder.Render(code))
}

// Bar fills a loading bar over d, redrawing it in place. A non-positive d
// draws nothing.
func (s *Screen) Bar(ctx context.Context, label string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	interval := d / BarCells
	s.drawBar(label, 0)
	for cell := 1; cell <= BarCells; cell++ {
		wait := interval
		if cell == BarCells {
			wait = d - interval*(BarCells-1)
		}
		if err := s.clock.Sleep(ctx, wait); err != nil {
			s.writeln("")
			return err
		}
		s.drawBar(label, float64(cell)/BarCells)
	}
	s.writeln("")
	return nil
}

func (s *Screen) drawBar(label string, fraction float64) {
	prefix := ""
	if label != "" {
		prefix = theme.MutedStyle.Render(label) + " "
	}
	s.writef("\r%s[%s]", prefix, s.bar.ViewAs(fraction))
}

// Bell rings the terminal bell.
func (s *Screen) Bell() {
	s.write("\a")
}

// PlaySound starts the configured sound command in the background, killed
// once limit elapses or stop is called. Without a command, or with a
// non-positive limit, nothing starts.
func (s *Screen) PlaySound(ctx context.Context, limit time.Duration) (stop func(), err error) {
	if len(s.soundCmd) == 0 || limit <= 0 {
		return func() {}, nil
	}
	soundCtx, cancel := context.WithTimeout(ctx, limit)
	cmd := exec.CommandContext(soundCtx, s.soundCmd[0], s.soundCmd[1:]...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		cancel()
		return func() {}, fmt.Errorf("start alarm sound %q: %w", s.soundCmd[0], err)
	}
	go func() {
		_ = cmd.Wait()
		cancel()
	}()
	return cancel, nil
}

func (s *Screen) write(text string) {
	if s == nil || s.out == nil {
		return
	}
	if _, err := io.WriteString(s.out, text); err != nil {
		return
	}
}

func (s *Screen) writeln(text string) {
	s.write(text + "\n")
}

func (s *Screen) writef(format string, args ...any) {
	s.write(fmt.Sprintf(format, args...))
}
