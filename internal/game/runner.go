package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/wtfshenei/hacking-minigame/internal/admin"
	"github.com/wtfshenei/hacking-minigame/internal/alarm"
	"github.com/wtfshenei/hacking-minigame/internal/clock"
	"github.com/wtfshenei/hacking-minigame/internal/events"
	"github.com/wtfshenei/hacking-minigame/internal/screen"
	"github.com/wtfshenei/hacking-minigame/internal/store"
	"github.com/wtfshenei/hacking-minigame/internal/telemetry/invariants"
	"github.com/wtfshenei/hacking-minigame/internal/terminal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LineReader reads one player line with an optional deadline.
type LineReader interface {
	ReadLine(ctx context.Context, deadline time.Duration) (terminal.Line, error)
}

// SnapshotSource serves the current configuration and reloads it.
type SnapshotSource interface {
	Current() *store.Snapshot
	Reload() (*store.Snapshot, error)
}

// Display is the presentation surface of the game.
type Display interface {
	Clear()
	Intro()
	Prompt()
	Notice(tone screen.Tone, text string)
	Help(entries []store.CommandEntry)
	Victory(code string)
	Bar(ctx context.Context, label string, d time.Duration) error
}

// AlarmRunner runs the alarm and lockout.
type AlarmRunner interface {
	Run(ctx context.Context, params alarm.Params) error
}

// AdminConsole is the blocking operator menu.
type AdminConsole interface {
	Open(ctx context.Context) (admin.Signal, error)
}

// discarder drops keys typed while no read was in progress.
type discarder interface {
	Discard()
}

// Deps are the collaborators of a Runner. Clock, Bus and Logger are optional.
type Deps struct {
	Reader  LineReader
	Source  SnapshotSource
	Display Display
	Alarm   AlarmRunner
	Admin   AdminConsole
	Clock   clock.Clock
	Bus     events.Bus
	Logger  *log.Logger
}

// Option configures Runner construction.
type Option func(*Runner)

// WithTracer configures the tracer used for line spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(runner *Runner) {
		if tracer != nil {
			runner.tracer = tracer
		}
	}
}

// WithSessionIDs overrides the session id generator.
func WithSessionIDs(next func() string) Option {
	return func(runner *Runner) {
		if next != nil {
			runner.newID = next
		}
	}
}

// Runner owns the session and executes transition effects. It is not safe
// for concurrent use; one line is processed to completion before the next
// read.
type Runner struct {
	reader  LineReader
	source  SnapshotSource
	display Display
	alarm   AlarmRunner
	admin   AdminConsole
	clock   clock.Clock
	bus     events.Bus
	logger  *log.Logger
	tracer  trace.Tracer
	newID   func() string
	rules   Rules

	session   Session
	sessionID string
	phase     Phase
}

// NewRunner validates deps and returns a Runner in the idle phase.
func NewRunner(deps Deps, rules Rules, options ...Option) (*Runner, error) {
	if deps.Reader == nil {
		return nil, errors.New("line reader is required")
	}
	if deps.Source == nil {
		return nil, errors.New("snapshot source is required")
	}
	if deps.Source.Current() == nil {
		return nil, errors.New("configuration must be loaded before the game starts")
	}
	if deps.Display == nil {
		return nil, errors.New("display is required")
	}
	if deps.Alarm == nil {
		return nil, errors.New("alarm handler is required")
	}
	if deps.Admin == nil {
		return nil, errors.New("admin console is required")
	}
	if rules.InactivityGrace < 0 {
		rules.InactivityGrace = 0
	}

	runner := &Runner{
		reader:  deps.Reader,
		source:  deps.Source,
		display: deps.Display,
		alarm:   deps.Alarm,
		admin:   deps.Admin,
		clock:   deps.Clock,
		bus:     deps.Bus,
		logger:  deps.Logger,
		tracer:  otel.Tracer("hackterm/game"),
		newID:   uuid.NewString,
		rules:   rules,
		phase:   PhaseIdle,
	}
	if runner.clock == nil {
		runner.clock = clock.System{}
	}
	if runner.logger == nil {
		runner.logger = log.New(io.Discard)
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(runner)
	}
	runner.sessionID = runner.newID()
	return runner, nil
}

// Session returns the current session.
func (r *Runner) Session() Session {
	return r.session
}

// Phase returns the current lifecycle phase.
func (r *Runner) Phase() Phase {
	return r.phase
}

// SessionID identifies the current session in events and logs.
func (r *Runner) SessionID() string {
	return r.sessionID
}

// Run shows the intro and processes lines until the input closes or ctx is
// canceled. Both end the loop cleanly; Ctrl-C in raw mode is returned as
// terminal.ErrInterrupted.
func (r *Runner) Run(ctx context.Context) error {
	r.display.Clear()
	r.display.Intro()
	r.logger.Info("terminal started", "session_id", r.sessionID)
	for {
		err := r.Next(ctx)
		switch {
		case err == nil:
			continue
		case ctx.Err() != nil:
			r.logger.Info("terminal stopped", "reason", ctx.Err())
			return nil
		case errors.Is(err, io.EOF):
			r.logger.Info("terminal stopped", "reason", "input closed")
			return nil
		default:
			return err
		}
	}
}

// Next reads one line and processes it. Closed input and interrupts are
// returned. A failed read (terminal.ErrInput) or any other read error is
// processed as failed input, which resets the session.
func (r *Runner) Next(ctx context.Context) error {
	snapshot := r.source.Current()
	r.display.Prompt()
	line, err := r.reader.ReadLine(ctx, r.inactivityDeadline(snapshot))
	in := Input{Text: line.Text, TimedOut: line.TimedOut, At: r.clock.Now()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, terminal.ErrClosed) || errors.Is(err, terminal.ErrInterrupted) {
			return err
		}
		r.logger.Warn("read line failed", "error", err)
		in = Input{Failed: true, At: in.At}
	}
	return r.Process(ctx, in)
}

// inactivityDeadline arms the read deadline only for a started session with
// a positive inactivity timeout. Blocking flows never read, so they are never
// interrupted by it.
func (r *Runner) inactivityDeadline(snapshot *store.Snapshot) time.Duration {
	if snapshot == nil || !r.session.Started() || r.session.Alarm {
		return 0
	}
	return max(snapshot.Config.InactivityTimeout, 0)
}

// Process applies one input and runs its effects to completion.
func (r *Runner) Process(ctx context.Context, in Input) error {
	snapshot := r.source.Current()
	ctx, span := r.tracer.Start(ctx, "game.line", trace.WithAttributes(
		attribute.String("session_id", r.sessionID),
		attribute.Bool("timed_out", in.TimedOut),
		attribute.Bool("failed", in.Failed),
		attribute.String("phase_before", string(r.phase)),
	))
	defer span.End()

	before := r.session
	outcome := Transition(before, in, snapshot, r.rules)
	command := outcome.Command
	if outcome.Verdict == VerdictAdmin {
		command = "[admin]"
	}
	span.SetAttributes(
		attribute.String("verdict", string(outcome.Verdict)),
		attribute.String("command", command),
		attribute.Int("step", outcome.Progress.Step),
		attribute.Int("errors", outcome.Progress.Errors),
	)
	if outcome.Reason != "" {
		span.SetAttributes(attribute.String("reason", outcome.Reason))
	}
	r.session = outcome.Session

	if outcome.Started {
		r.setPhase(ctx, PhaseActive)
		r.publish(events.TypeSessionStarted, events.SeverityInfo, outcome.Progress, outcome.Command, "")
	}
	switch {
	case outcome.Progress.Step > before.Step:
		r.publish(events.TypeCommandAccepted, events.SeverityInfo, outcome.Progress, outcome.Command, "")
	case outcome.Progress.Errors > before.Errors:
		r.publish(events.TypeCommandRejected, events.SeverityWarn, outcome.Progress, outcome.Command, outcome.Reason)
	}

	if err := r.apply(ctx, outcome); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	r.settle(ctx)
	span.SetAttributes(attribute.String("phase_after", string(r.phase)))
	span.SetStatus(codes.Ok, "line processed")
	return nil
}

func (r *Runner) apply(ctx context.Context, outcome Outcome) error {
	for _, effect := range outcome.Effects {
		switch effect.Kind {
		case EffectNotice:
			r.display.Notice(effect.Tone, effect.Text)
		case EffectHelp:
			r.display.Help(effect.Entries)
		case EffectDelay:
			if err := r.display.Bar(ctx, effect.Text, effect.Duration); err != nil {
				return err
			}
			r.discard()
		case EffectGrace:
			if err := r.clock.Sleep(ctx, effect.Duration); err != nil {
				return err
			}
		case EffectAlarm:
			r.setPhase(ctx, PhaseLocked)
			r.publish(events.TypeAlarmTriggered, events.SeverityWarn, outcome.Progress, outcome.Command, outcome.Reason)
			r.logger.Warn("alarm triggered", "session_id", r.sessionID, "reason", outcome.Reason)
			err := r.alarm.Run(ctx, effect.Alarm)
			r.discard()
			if err != nil {
				return err
			}
		case EffectVictory:
			r.setPhase(ctx, PhaseWon)
			r.publish(events.TypeVictory, events.SeverityInfo, outcome.Progress, outcome.Command, "")
			r.display.Victory(effect.Text)
			r.display.Notice(screen.ToneInfo, fmt.Sprintf("Reset in %d seconds...", int(effect.Duration/time.Second)))
			err := r.clock.Sleep(ctx, effect.Duration)
			r.discard()
			if err != nil {
				return err
			}
		case EffectAdmin:
			if err := r.openAdmin(ctx); err != nil {
				return err
			}
		case EffectIntro:
			r.reset(ctx, outcome)
		}
	}
	return nil
}

func (r *Runner) openAdmin(ctx context.Context) error {
	r.publish(events.TypeAdminOpened, events.SeverityInfo, r.session, "", "")
	signal, err := r.admin.Open(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, terminal.ErrClosed) || errors.Is(err, terminal.ErrInterrupted) {
			return err
		}
		r.logger.Warn("admin console failed", "error", err)
	}

	reloaded, reloadErr := r.source.Reload()
	r.ReportReload(reloaded, reloadErr)
	if reloadErr != nil {
		r.display.Notice(screen.ToneWarning, "Configuration reload failed. Previous settings kept.")
	}

	follow := AdminReturned(r.session, signal == admin.SignalReset, reloaded)
	r.session = follow.Session
	return r.apply(ctx, follow)
}

// ReportReload publishes and logs the outcome of a configuration reload.
// It is also the callback for file-triggered reloads, so it may run on
// another goroutine and touches no session state.
func (r *Runner) ReportReload(snapshot *store.Snapshot, err error) {
	if err != nil {
		r.logger.Warn("configuration reload failed", "error", err)
		r.publishReload(events.SeverityWarn, err.Error())
		return
	}
	fields := []any{}
	if snapshot != nil {
		fields = append(fields, "loaded_at", snapshot.LoadedAt, "sequence_length", len(snapshot.Config.Sequence))
		if problems := snapshot.Problems(); len(problems) > 0 {
			fields = append(fields, "problems", problems)
		}
	}
	r.logger.Info("configuration reloaded", fields...)
	r.publishReload(events.SeverityInfo, nil)
}

func (r *Runner) reset(ctx context.Context, outcome Outcome) {
	previous := r.sessionID
	r.sessionID = r.newID()
	invariants.CheckResetIsClean(ctx, "game.reset", r.session.Step, r.session.Errors, r.session.Alarm, r.session.Started())
	r.setPhase(ctx, PhaseIdle)
	if r.bus != nil {
		r.bus.Publish(events.Event{
			Type:      events.TypeSessionReset,
			Timestamp: r.clock.Now().UTC(),
			SessionID: previous,
			Severity:  events.SeverityInfo,
			Payload:   r.progress(outcome.Progress, outcome.Command, outcome.Reason),
		})
	}
	r.display.Clear()
	r.display.Intro()
}

func (r *Runner) settle(ctx context.Context) {
	snapshot := r.source.Current()
	r.setPhase(ctx, phaseOf(r.session, snapshot.Config.MaxErrors))
	invariants.CheckStepInRange(ctx, "game.process", r.session.Step, len(snapshot.Config.Sequence))
	invariants.CheckProgressImpliesStart(ctx, "game.process", r.session.Step, r.session.Errors, r.session.Started())
}

func (r *Runner) setPhase(ctx context.Context, to Phase) {
	if err := CheckPhase(r.phase, to); err != nil {
		invariants.CheckPhaseTransitionLegal(ctx, "game.setPhase", string(r.phase), string(to), false)
		r.logger.Error("illegal phase transition", "error", err)
	}
	r.phase = to
}

func (r *Runner) discard() {
	if d, ok := r.reader.(discarder); ok {
		d.Discard()
	}
}

func (r *Runner) progress(s Session, command, reason string) events.Progress {
	snapshot := r.source.Current()
	return events.Progress{
		Step:      s.Step,
		Total:     len(snapshot.Config.Sequence),
		Errors:    s.Errors,
		MaxErrors: snapshot.Config.MaxErrors,
		Command:   command,
		Reason:    reason,
	}
}

func (r *Runner) publish(eventType, severity string, s Session, command, reason string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.Event{
		Type:      eventType,
		Timestamp: r.clock.Now().UTC(),
		SessionID: r.sessionID,
		Severity:  severity,
		Payload:   r.progress(s, command, reason),
	})
}

func (r *Runner) publishReload(severity string, payload any) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.Event{
		Type:      events.TypeConfigReloaded,
		Timestamp: r.clock.Now().UTC(),
		Severity:  severity,
		Payload:   payload,
	})
}
