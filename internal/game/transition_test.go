package game

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wtfshenei/hacking-minigame/internal/screen"
	"github.com/wtfshenei/hacking-minigame/internal/store"
)

var epoch = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func newSnapshot(t *testing.T, mutate func(*store.Config)) *store.Snapshot {
	t.Helper()
	table, err := store.NewCommandTable(
		store.CommandEntry{Token: "scan", Command: store.Command{Description: "Scan the network", Delay: 2}},
		store.CommandEntry{Token: "bypass", Command: store.Command{Description: "Bypass the firewall"}},
		store.CommandEntry{Token: "unlock", Command: store.Command{Description: "Unlock the vault"}},
		store.CommandEntry{Token: "ls", Command: store.Command{Description: "List files", Delay: 4}},
		store.CommandEntry{Token: "agartha", Command: store.Command{Description: "Operator", Hidden: true}},
	)
	require.NoError(t, err)
	cfg := store.Config{
		Sequence:           []string{"scan", "bypass", "unlock"},
		MaxErrors:          2,
		AlarmDuration:      3 * time.Second,
		BlockTimeOnAlarm:   5 * time.Second,
		VictoryDisplayTime: 10 * time.Second,
		InactivityTimeout:  60 * time.Second,
		VictoryCode:        "QR-7781",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &store.Snapshot{Config: cfg, Commands: table, LoadedAt: epoch}
}

func typed(text string, at time.Time) Input {
	return Input{Text: text, At: at}
}

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, 0, len(effects))
	for _, effect := range effects {
		out = append(out, effect.Kind)
	}
	return out
}

func notices(effects []Effect) []string {
	out := make([]string, 0)
	for _, effect := range effects {
		if effect.Kind == EffectNotice {
			out = append(out, effect.Text)
		}
	}
	return out
}

func TestTransitionWalkthroughEndsInAlarm(t *testing.T) {
	snapshot := newSnapshot(t, nil)
	rules := Rules{}
	s := Session{}

	out := Transition(s, typed("SCAN", epoch), snapshot, rules)
	assert.Equal(t, VerdictAccepted, out.Verdict)
	assert.True(t, out.Started)
	assert.Equal(t, "scan", out.Command)
	assert.Equal(t, []EffectKind{EffectDelay, EffectNotice}, kinds(out.Effects))
	assert.Equal(t, 2*time.Second, out.Effects[0].Duration)
	assert.Equal(t, []string{"Command accepted (scan). Progress: 1/3"}, notices(out.Effects))
	assert.Equal(t, Session{Step: 1, Start: epoch}, out.Session)
	s = out.Session

	out = Transition(s, typed("rm -rf", epoch.Add(5*time.Second)), snapshot, rules)
	assert.Equal(t, VerdictRejected, out.Verdict)
	assert.Equal(t, "unknown command", out.Reason)
	assert.Equal(t, []string{"Unknown command. Type 'help' if needed."}, notices(out.Effects))
	assert.Equal(t, 1, out.Session.Errors)
	assert.Equal(t, 1, out.Session.Step)
	s = out.Session

	out = Transition(s, typed("bypass", epoch.Add(10*time.Second)), snapshot, rules)
	assert.Equal(t, VerdictAccepted, out.Verdict)
	assert.Equal(t, []string{"Command accepted (bypass). Progress: 2/3"}, notices(out.Effects))
	s = out.Session

	out = Transition(s, typed("scan", epoch.Add(15*time.Second)), snapshot, rules)
	assert.Equal(t, VerdictAlarm, out.Verdict)
	assert.Equal(t, "error budget exhausted", out.Reason)
	assert.Equal(t, []EffectKind{EffectDelay, EffectNotice, EffectAlarm, EffectNotice, EffectIntro}, kinds(out.Effects))
	assert.Equal(t, "Incorrect command at this stage (scan).", out.Effects[1].Text)
	assert.Equal(t, 3*time.Second, out.Effects[2].Alarm.AlarmDuration)
	assert.Equal(t, 5*time.Second, out.Effects[2].Alarm.BlockDuration)
	assert.Equal(t, Session{}, out.Session)
	assert.Equal(t, 2, out.Progress.Step)
	assert.Equal(t, 2, out.Progress.Errors)
	assert.True(t, out.Progress.Alarm)
}

func TestTransitionVictory(t *testing.T) {
	snapshot := newSnapshot(t, nil)
	s := Session{}
	var out Outcome
	for idx, command := range []string{"scan", "bypass", "unlock"} {
		out = Transition(s, typed(command, epoch.Add(time.Duration(idx)*time.Second)), snapshot, Rules{})
		s = out.Session
	}

	assert.Equal(t, VerdictVictory, out.Verdict)
	assert.Equal(t, Session{}, out.Session)
	assert.Equal(t, 3, out.Progress.Step)
	assert.Equal(t, []EffectKind{EffectNotice, EffectVictory, EffectIntro}, kinds(out.Effects))
	assert.Equal(t, "Command accepted (unlock). Progress: 3/3", out.Effects[0].Text)
	assert.Equal(t, "QR-7781", out.Effects[1].Text)
	assert.Equal(t, 10*time.Second, out.Effects[1].Duration)
}

func TestTransitionReachesVictoryDespiteDetours(t *testing.T) {
	snapshot := newSnapshot(t, func(cfg *store.Config) {
		cfg.Sequence = []string{"scan", "ls", "bypass", "ls", "unlock"}
		cfg.MaxErrors = 3
	})
	lines := []string{"", "help", "scan", "nmap", "ls", "   ", "bypass", "scan", "HELP", "ls", "unlock"}

	s := Session{}
	accepted := 0
	var out Outcome
	for idx, line := range lines {
		out = Transition(s, typed(line, epoch.Add(time.Duration(idx)*time.Second)), snapshot, Rules{})
		if out.Verdict == VerdictAccepted || out.Verdict == VerdictVictory {
			accepted++
		}
		require.NotEqual(t, VerdictAlarm, out.Verdict, "line %q", line)
		s = out.Session
	}

	assert.Equal(t, len(snapshot.Config.Sequence), accepted)
	assert.Equal(t, VerdictVictory, out.Verdict)
	assert.Equal(t, 2, out.Progress.Errors)
}

func TestTransitionIgnoresNonGameplayLines(t *testing.T) {
	snapshot := newSnapshot(t, nil)
	s := Session{Step: 1, Errors: 1, Start: epoch}

	tests := []struct {
		name    string
		input   Input
		verdict Verdict
		effects []EffectKind
	}{
		{name: "blank", input: typed("  ", epoch), verdict: VerdictIgnored},
		{name: "help", input: typed(" Help ", epoch), verdict: VerdictHelp, effects: []EffectKind{EffectHelp}},
		{name: "admin token", input: typed("AGARTHA", epoch), verdict: VerdictAdmin, effects: []EffectKind{EffectAdmin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Transition(s, tt.input, snapshot, Rules{})
			assert.Equal(t, tt.verdict, out.Verdict)
			assert.Equal(t, s, out.Session)
			if len(tt.effects) == 0 {
				assert.Empty(t, out.Effects)
				return
			}
			assert.Equal(t, tt.effects, kinds(out.Effects))
		})
	}
}

func TestTransitionHelpListsVisibleCommandsOnly(t *testing.T) {
	out := Transition(Session{}, typed("help", epoch), newSnapshot(t, nil), Rules{})
	require.Len(t, out.Effects, 1)

	tokens := make([]string, 0)
	for _, entry := range out.Effects[0].Entries {
		tokens = append(tokens, entry.Token)
	}
	assert.Equal(t, []string{"scan", "bypass", "unlock", "ls"}, tokens)
	assert.False(t, out.Started)
}

func TestTransitionCustomAdminToken(t *testing.T) {
	snapshot := newSnapshot(t, nil)
	rules := Rules{AdminToken: " Opensesame "}

	out := Transition(Session{}, typed("opensesame", epoch), snapshot, rules)
	assert.Equal(t, VerdictAdmin, out.Verdict)

	out = Transition(Session{}, typed("agartha", epoch), snapshot, rules)
	assert.Equal(t, VerdictRejected, out.Verdict, "the default token falls through to gameplay once overridden")
}

func TestTransitionResetIsIdempotent(t *testing.T) {
	snapshot := newSnapshot(t, nil)
	s := Session{Step: 2, Errors: 1, Start: epoch}

	first := Transition(s, typed("reset", epoch), snapshot, Rules{})
	assert.Equal(t, VerdictReset, first.Verdict)
	assert.Equal(t, Session{}, first.Session)
	assert.Equal(t, s, first.Progress)
	assert.Equal(t, []string{"*** TERMINAL RESET ***"}, notices(first.Effects))
	assert.Equal(t, EffectIntro, first.Effects[len(first.Effects)-1].Kind)

	second := Transition(first.Session, typed("RESET", epoch), snapshot, Rules{})
	assert.Equal(t, first.Session, second.Session)
	assert.Equal(t, kinds(first.Effects), kinds(second.Effects))
}

func TestTransitionDelayAppliesToWrongKnownCommand(t *testing.T) {
	snapshot := newSnapshot(t, nil)
	out := Transition(Session{Step: 1, Start: epoch}, typed("ls", epoch), snapshot, Rules{})

	assert.Equal(t, VerdictRejected, out.Verdict)
	assert.Equal(t, "wrong stage", out.Reason)
	require.Equal(t, []EffectKind{EffectDelay, EffectNotice}, kinds(out.Effects))
	assert.Equal(t, "ls", out.Effects[0].Text)
	assert.Equal(t, 4*time.Second, out.Effects[0].Duration)
	assert.Equal(t, screen.ToneError, out.Effects[1].Tone)
}

func TestTransitionUnknownCommandHasNoDelay(t *testing.T) {
	out := Transition(Session{Step: 1, Start: epoch}, typed("nmap", epoch), newSnapshot(t, nil), Rules{})
	assert.Equal(t, []EffectKind{EffectNotice}, kinds(out.Effects))
}

func TestTransitionInactivity(t *testing.T) {
	grace := Rules{InactivityGrace: 3 * time.Second}
	started := Session{Step: 1, Errors: 1, Start: epoch}

	t.Run("resets a started session", func(t *testing.T) {
		out := Transition(started, Input{TimedOut: true, At: epoch}, newSnapshot(t, nil), grace)
		assert.Equal(t, VerdictInactive, out.Verdict)
		assert.Equal(t, Session{}, out.Session)
		assert.Equal(t, []EffectKind{EffectNotice, EffectGrace, EffectIntro}, kinds(out.Effects))
		assert.Equal(t, "No activity detected. Session reset.", out.Effects[0].Text)
		assert.Equal(t, 3*time.Second, out.Effects[1].Duration)
	})

	t.Run("ignored before the first line", func(t *testing.T) {
		out := Transition(Session{}, Input{TimedOut: true, At: epoch}, newSnapshot(t, nil), grace)
		assert.Equal(t, VerdictIgnored, out.Verdict)
		assert.Empty(t, out.Effects)
	})

	t.Run("ignored when disabled", func(t *testing.T) {
		snapshot := newSnapshot(t, func(cfg *store.Config) { cfg.InactivityTimeout = 0 })
		out := Transition(started, Input{TimedOut: true, At: epoch}, snapshot, grace)
		assert.Equal(t, VerdictIgnored, out.Verdict)
		assert.Equal(t, started, out.Session)
	})
}

func TestTransitionFailedInputResets(t *testing.T) {
	out := Transition(Session{Step: 2, Start: epoch}, Input{Failed: true, At: epoch}, newSnapshot(t, nil), Rules{InactivityGrace: time.Second})
	assert.Equal(t, VerdictInactive, out.Verdict)
	assert.Equal(t, "input failure", out.Reason)
	assert.Equal(t, []EffectKind{EffectNotice, EffectGrace, EffectIntro}, kinds(out.Effects))
}

func TestTransitionGlobalTimer(t *testing.T) {
	snapshot := newSnapshot(t, func(cfg *store.Config) { cfg.GlobalTimer = 30 * time.Second })
	s := Session{Step: 1, Start: epoch}

	out := Transition(s, typed("bypass", epoch.Add(29*time.Second)), snapshot, Rules{})
	assert.Equal(t, VerdictAccepted, out.Verdict)

	out = Transition(out.Session, typed("unlock", epoch.Add(30*time.Second)), snapshot, Rules{})
	assert.Equal(t, VerdictAlarm, out.Verdict)
	assert.Equal(t, "global timer expired", out.Reason)
	assert.Equal(t, []EffectKind{EffectAlarm, EffectNotice, EffectIntro}, kinds(out.Effects), "the line itself is not evaluated")
	assert.Equal(t, 2, out.Progress.Step)
}

func TestTransitionGlobalTimerStartsOnFirstLine(t *testing.T) {
	snapshot := newSnapshot(t, func(cfg *store.Config) { cfg.GlobalTimer = 30 * time.Second })
	out := Transition(Session{}, typed("scan", epoch.Add(time.Hour)), snapshot, Rules{})
	assert.Equal(t, VerdictAccepted, out.Verdict)
	assert.Equal(t, epoch.Add(time.Hour), out.Session.Start)
}

func TestTransitionLoweredBudgetAlarmsOnNextLine(t *testing.T) {
	snapshot := newSnapshot(t, func(cfg *store.Config) { cfg.MaxErrors = 1 })
	s := Session{Step: 1, Errors: 1, Start: epoch}

	out := Transition(s, typed("bypass", epoch), snapshot, Rules{})
	assert.Equal(t, VerdictAlarm, out.Verdict)
	assert.Equal(t, "error budget exhausted", out.Reason)
	assert.Equal(t, 1, out.Progress.Step, "the pending alarm preempts the line")
}

func TestTransitionRaisedBudgetPreservesProgress(t *testing.T) {
	s := Session{Step: 1, Errors: 1, Start: epoch}

	back := AdminReturned(s, false, newSnapshot(t, func(cfg *store.Config) { cfg.MaxErrors = 5 }))
	assert.Equal(t, VerdictIgnored, back.Verdict)
	assert.Equal(t, s, back.Session)
	assert.Equal(t, []string{"Back to the terminal."}, notices(back.Effects))

	snapshot := newSnapshot(t, func(cfg *store.Config) { cfg.MaxErrors = 5 })
	for _, line := range []string{"nmap", "whoami", "sudo"} {
		out := Transition(s, typed(line, epoch), snapshot, Rules{})
		require.Equal(t, VerdictRejected, out.Verdict)
		s = out.Session
	}
	assert.Equal(t, 4, s.Errors)
	assert.Equal(t, 1, s.Step)
}

func TestTransitionSequenceShrunkBelowStep(t *testing.T) {
	snapshot := newSnapshot(t, func(cfg *store.Config) { cfg.Sequence = []string{"scan"} })
	s := Session{Step: 2, Start: epoch}

	out := Transition(s, typed("unlock", epoch), snapshot, Rules{})
	assert.Equal(t, VerdictReset, out.Verdict)
	assert.Equal(t, "sequence changed", out.Reason)
	assert.Equal(t, Session{}, out.Session)

	back := AdminReturned(s, false, snapshot)
	assert.Equal(t, VerdictReset, back.Verdict)
	assert.Equal(t, []string{"The sequence has changed. Session reset."}, notices(back.Effects))
}

func TestAdminReturnedOperatorReset(t *testing.T) {
	out := AdminReturned(Session{Step: 1, Start: epoch}, true, newSnapshot(t, nil))
	assert.Equal(t, VerdictReset, out.Verdict)
	assert.Equal(t, Session{}, out.Session)
	assert.Equal(t, []string{"*** SESSION RESET BY OPERATOR ***"}, notices(out.Effects))
	assert.Equal(t, EffectIntro, out.Effects[len(out.Effects)-1].Kind)
}

func TestTransitionWithoutSnapshotIsIgnored(t *testing.T) {
	out := Transition(Session{Step: 1}, typed("scan", epoch), nil, Rules{})
	assert.Equal(t, VerdictIgnored, out.Verdict)
	assert.Equal(t, Session{Step: 1}, out.Session)
}

func TestCheckPhase(t *testing.T) {
	tests := []struct {
		from, to Phase
		legal    bool
	}{
		{PhaseIdle, PhaseActive, true},
		{PhaseIdle, PhaseIdle, true},
		{PhaseActive, PhaseLocked, true},
		{PhaseActive, PhaseWon, true},
		{PhaseAlarmPending, PhaseLocked, true},
		{PhaseAlarmPending, PhaseActive, true},
		{PhaseLocked, PhaseIdle, true},
		{PhaseWon, PhaseIdle, true},
		{PhaseIdle, PhaseWon, false},
		{PhaseLocked, PhaseActive, false},
		{PhaseWon, PhaseLocked, false},
	}

	for _, tt := range tests {
		err := CheckPhase(tt.from, tt.to)
		if tt.legal {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
			continue
		}
		assert.True(t, errors.Is(err, &IllegalTransitionError{}), "%s -> %s: %v", tt.from, tt.to, err)
	}
}

func TestPhaseOf(t *testing.T) {
	assert.Equal(t, PhaseIdle, phaseOf(Session{}, 2))
	assert.Equal(t, PhaseActive, phaseOf(Session{Step: 1, Start: epoch}, 2))
	assert.Equal(t, PhaseAlarmPending, phaseOf(Session{Errors: 2, Start: epoch}, 2))
}
