package game

import (
	"fmt"
	"time"

	"github.com/wtfshenei/hacking-minigame/internal/alarm"
	"github.com/wtfshenei/hacking-minigame/internal/screen"
	"github.com/wtfshenei/hacking-minigame/internal/store"
)

const (
	// CommandHelp lists the visible commands.
	CommandHelp = "help"
	// CommandReset starts a new session.
	CommandReset = "reset"
	// DefaultAdminToken opens the admin console.
	DefaultAdminToken = "agartha"
	// DefaultInactivityGrace is the pause between the inactivity notice and
	// the reset.
	DefaultInactivityGrace = 3 * time.Second
)

// Input is one completed read.
type Input struct {
	Text     string
	TimedOut bool
	// Failed marks a read that errored; it is handled like a timeout.
	Failed bool
	At     time.Time
}

// EffectKind enumerates what the runner must do.
type EffectKind int

const (
	// EffectNotice prints one line.
	EffectNotice EffectKind = iota
	// EffectHelp lists commands.
	EffectHelp
	// EffectDelay shows a loading bar for a command delay.
	EffectDelay
	// EffectAlarm runs the alarm and lockout.
	EffectAlarm
	// EffectVictory shows the code and holds.
	EffectVictory
	// EffectAdmin opens the admin console.
	EffectAdmin
	// EffectGrace pauses before an inactivity reset.
	EffectGrace
	// EffectIntro clears the screen and shows the banner of a fresh session.
	EffectIntro
)

// Effect is one step for the runner. Only the fields relevant to Kind are set.
type Effect struct {
	Kind     EffectKind
	Tone     screen.Tone
	Text     string
	Duration time.Duration
	Alarm    alarm.Params
	Entries  []store.CommandEntry
}

// Verdict classifies what a line did.
type Verdict string

const (
	VerdictIgnored  Verdict = "ignored"
	VerdictHelp     Verdict = "help"
	VerdictAdmin    Verdict = "admin"
	VerdictReset    Verdict = "reset"
	VerdictInactive Verdict = "inactive"
	VerdictAccepted Verdict = "accepted"
	VerdictRejected Verdict = "rejected"
	VerdictAlarm    Verdict = "alarm"
	VerdictVictory  Verdict = "victory"
)

// Outcome is the result of one transition.
type Outcome struct {
	Session Session
	Effects []Effect
	Verdict Verdict
	// Command is the normalized line, empty for timeouts.
	Command string
	// Reason explains rejections, alarms and resets.
	Reason string
	// Started is true when this line started the session.
	Started bool
	// Progress is the session as it stood when the verdict was reached,
	// before any reset.
	Progress Session
}

// Rules are the runtime settings that are not part of the data files.
type Rules struct {
	AdminToken      string
	InactivityGrace time.Duration
}

func (r Rules) adminToken() string {
	if token := store.NormalizeToken(r.AdminToken); token != "" {
		return token
	}
	return DefaultAdminToken
}

// Transition applies one input to a session. It is pure: every side effect is
// described in the returned Effects, in order.
func Transition(s Session, in Input, snapshot *store.Snapshot, rules Rules) Outcome {
	if snapshot == nil {
		return Outcome{Session: s, Progress: s, Verdict: VerdictIgnored}
	}
	cfg := snapshot.Config

	if in.Failed {
		return resetOutcome(s, VerdictInactive, "input failure",
			notice(screen.ToneWarning, "Input error. Terminal restarting."),
			Effect{Kind: EffectGrace, Duration: rules.InactivityGrace},
		)
	}
	if in.TimedOut {
		if !s.Started() || cfg.InactivityTimeout <= 0 {
			return Outcome{Session: s, Progress: s, Verdict: VerdictIgnored}
		}
		return resetOutcome(s, VerdictInactive, "inactivity timeout",
			notice(screen.ToneWarning, "No activity detected. Session reset."),
			Effect{Kind: EffectGrace, Duration: rules.InactivityGrace},
		)
	}

	command := store.NormalizeToken(in.Text)
	switch command {
	case "":
		return Outcome{Session: s, Progress: s, Verdict: VerdictIgnored}
	case CommandHelp:
		return Outcome{
			Session:  s,
			Progress: s,
			Verdict:  VerdictHelp,
			Command:  command,
			Effects:  []Effect{{Kind: EffectHelp, Entries: snapshot.Commands.Visible()}},
		}
	case rules.adminToken():
		return Outcome{
			Session:  s,
			Progress: s,
			Verdict:  VerdictAdmin,
			Command:  command,
			Effects:  []Effect{{Kind: EffectAdmin}},
		}
	case CommandReset:
		out := resetOutcome(s, VerdictReset, "reset command", notice(screen.ToneWarning, "*** TERMINAL RESET ***"))
		out.Command = command
		return out
	}

	if s.Step >= len(cfg.Sequence) {
		out := resetOutcome(s, VerdictReset, "sequence changed", notice(screen.ToneWarning, "The sequence has changed. Session reset."))
		out.Command = command
		return out
	}

	out := Outcome{Command: command}
	if !s.Started() {
		s.Start = in.At
		out.Started = true
	}
	if cfg.GlobalTimer > 0 && in.At.Sub(s.Start) >= cfg.GlobalTimer {
		s.Alarm = true
		out.Reason = "global timer expired"
	}
	if !s.Alarm && s.Errors >= cfg.MaxErrors {
		s.Alarm = true
		out.Reason = "error budget exhausted"
	}
	if s.Alarm {
		out.Session = s
		return alarmOutcome(out, cfg)
	}

	entry, known := snapshot.Commands.Lookup(command)
	if !known {
		s.Errors++
		out.Session, out.Progress = s, s
		out.Verdict = VerdictRejected
		out.Reason = "unknown command"
		out.Effects = append(out.Effects, notice(screen.ToneError, "Unknown command. Type 'help' if needed."))
		return overBudget(out, cfg)
	}

	if entry.Delay > 0 {
		out.Effects = append(out.Effects, Effect{
			Kind:     EffectDelay,
			Text:     command,
			Duration: time.Duration(entry.Delay) * time.Second,
		})
	}

	if command != cfg.Sequence[s.Step] {
		s.Errors++
		out.Session, out.Progress = s, s
		out.Verdict = VerdictRejected
		out.Reason = "wrong stage"
		out.Effects = append(out.Effects, notice(screen.ToneError, fmt.Sprintf("Incorrect command at this stage (%s).", command)))
		return overBudget(out, cfg)
	}

	s.Step++
	out.Session, out.Progress = s, s
	out.Verdict = VerdictAccepted
	out.Effects = append(out.Effects, notice(screen.ToneSuccess,
		fmt.Sprintf("Command accepted (%s). Progress: %d/%d", command, s.Step, len(cfg.Sequence))))
	if s.Step < len(cfg.Sequence) {
		return out
	}

	out.Verdict = VerdictVictory
	out.Session = Session{}
	out.Effects = append(out.Effects,
		Effect{Kind: EffectVictory, Text: cfg.VictoryCode, Duration: cfg.VictoryDisplayTime},
		Effect{Kind: EffectIntro},
	)
	return out
}

// AdminReturned decides what follows the admin console. snapshot is the
// configuration reloaded after the console closed.
func AdminReturned(s Session, reset bool, snapshot *store.Snapshot) Outcome {
	if reset {
		return resetOutcome(s, VerdictReset, "admin reset", notice(screen.ToneWarning, "*** SESSION RESET BY OPERATOR ***"))
	}
	if snapshot != nil && s.Step >= len(snapshot.Config.Sequence) {
		return resetOutcome(s, VerdictReset, "sequence changed", notice(screen.ToneWarning, "The sequence has changed. Session reset."))
	}
	return Outcome{
		Session:  s,
		Progress: s,
		Verdict:  VerdictIgnored,
		Effects:  []Effect{notice(screen.ToneInfo, "Back to the terminal.")},
	}
}

func overBudget(out Outcome, cfg store.Config) Outcome {
	if out.Session.Errors < cfg.MaxErrors {
		return out
	}
	out.Session.Alarm = true
	out.Reason = "error budget exhausted"
	return alarmOutcome(out, cfg)
}

func alarmOutcome(out Outcome, cfg store.Config) Outcome {
	out.Verdict = VerdictAlarm
	out.Progress = out.Session
	out.Session = Session{}
	out.Effects = append(out.Effects,
		Effect{Kind: EffectAlarm, Alarm: alarm.Params{
			AlarmDuration: cfg.AlarmDuration,
			BlockDuration: cfg.BlockTimeOnAlarm,
		}},
		notice(screen.ToneWarning, "The terminal is restarting..."),
		Effect{Kind: EffectIntro},
	)
	return out
}

func resetOutcome(previous Session, verdict Verdict, reason string, effects ...Effect) Outcome {
	return Outcome{
		Session:  Session{},
		Progress: previous,
		Verdict:  verdict,
		Reason:   reason,
		Effects:  append(effects, Effect{Kind: EffectIntro}),
	}
}

func notice(tone screen.Tone, text string) Effect {
	return Effect{Kind: EffectNotice, Tone: tone, Text: text}
}
