// Package alarm runs the lockout that follows an exhausted error budget or an
// expired global timer.
package alarm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/wtfshenei/hacking-minigame/internal/clock"
	"github.com/wtfshenei/hacking-minigame/internal/screen"
)

const tick = time.Second

// Display is the presentation surface the alarm draws on.
type Display interface {
	Bell()
	PlaySound(ctx context.Context, limit time.Duration) (stop func(), err error)
	Banner(text string)
	Notice(tone screen.Tone, text string)
	Bar(ctx context.Context, label string, d time.Duration) error
}

// Params are the alarm timings taken from the current configuration.
type Params struct {
	AlarmDuration time.Duration
	BlockDuration time.Duration
}

// Handler plays the alarm countdown and then holds the lockout.
type Handler struct {
	display Display
	clock   clock.Clock
	logger  *log.Logger
}

// NewHandler returns a Handler. A nil clock uses the wall clock.
func NewHandler(display Display, c clock.Clock, logger *log.Logger) (*Handler, error) {
	if display == nil {
		return nil, errors.New("alarm display is required")
	}
	if c == nil {
		c = clock.System{}
	}
	return &Handler{display: display, clock: c, logger: logger}, nil
}

// Run blocks for the whole alarm and lockout. No input is read while it runs.
// It returns early only when ctx is canceled.
func (h *Handler) Run(ctx context.Context, params Params) error {
	if h == nil {
		return errors.New("alarm handler is nil")
	}
	h.display.Banner("!!! INTRUSION DETECTED !!!")

	stopSound, err := h.display.PlaySound(ctx, params.AlarmDuration)
	if err != nil && h.logger != nil {
		h.logger.With("error", err).Warn("alarm sound failed")
	}
	if stopSound == nil {
		stopSound = func() {}
	}

	remaining := params.AlarmDuration
	for remaining > 0 {
		h.display.Bell()
		h.display.Notice(screen.ToneError, fmt.Sprintf("... %d", secondsLeft(remaining)))
		wait := min(tick, remaining)
		if err := h.clock.Sleep(ctx, wait); err != nil {
			stopSound()
			return err
		}
		remaining -= wait
	}
	stopSound()

	h.display.Banner("ALARM TRIGGERED")
	if params.BlockDuration <= 0 {
		return nil
	}
	h.display.Notice(screen.ToneWarning, fmt.Sprintf("Terminal locked for %d seconds. Rebooting...", secondsLeft(params.BlockDuration)))
	return h.display.Bar(ctx, "lockout", params.BlockDuration)
}

func secondsLeft(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
