// Package game is the terminal's session state machine. Transition decides
// what one input line does; Runner reads lines and carries out the effects.
package game

import (
	"fmt"
	"time"
)

// Session is the progress of the current player.
type Session struct {
	Step   int
	Errors int
	Alarm  bool
	Start  time.Time
}

// Started reports whether the player has typed a gameplay line yet.
func (s Session) Started() bool {
	return !s.Start.IsZero()
}

// Phase is the coarse lifecycle state of the terminal.
type Phase string

const (
	// PhaseIdle waits for the first gameplay line.
	PhaseIdle Phase = "idle"
	// PhaseActive has a session in progress.
	PhaseActive Phase = "active"
	// PhaseAlarmPending has exhausted its budget and alarms on the next line.
	PhaseAlarmPending Phase = "alarm_pending"
	// PhaseLocked is running the alarm and lockout.
	PhaseLocked Phase = "locked"
	// PhaseWon is showing the victory code.
	PhaseWon Phase = "won"
)

var allowedPhases = map[Phase]map[Phase]struct{}{
	PhaseIdle: {
		PhaseActive: {},
	},
	PhaseActive: {
		PhaseIdle:         {},
		PhaseAlarmPending: {},
		PhaseLocked:       {},
		PhaseWon:          {},
	},
	PhaseAlarmPending: {
		PhaseIdle:   {},
		PhaseActive: {},
		PhaseLocked: {},
	},
	PhaseLocked: {
		PhaseIdle: {},
	},
	PhaseWon: {
		PhaseIdle: {},
	},
}

// IllegalTransitionError is returned for a disallowed phase change.
type IllegalTransitionError struct {
	From Phase
	To   Phase
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot move terminal from %q to %q", e.From, e.To)
}

// Is enables errors.Is checks for illegal transition failures.
func (e *IllegalTransitionError) Is(target error) bool {
	_, ok := target.(*IllegalTransitionError)
	return ok
}

// CheckPhase returns an IllegalTransitionError when from cannot move to to.
// Staying in the same phase is always allowed.
func CheckPhase(from, to Phase) error {
	if from == to {
		return nil
	}
	if _, ok := allowedPhases[from][to]; ok {
		return nil
	}
	return &IllegalTransitionError{From: from, To: to}
}

// phaseOf derives the resting phase of a session between lines.
func phaseOf(s Session, maxErrors int) Phase {
	switch {
	case s.Alarm || (s.Started() && maxErrors > 0 && s.Errors >= maxErrors):
		return PhaseAlarmPending
	case s.Started():
		return PhaseActive
	default:
		return PhaseIdle
	}
}
