// Package invariants reports game-state invariant violations as span events.
package invariants

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// InvariantStepInRange requires 0 <= step <= len(sequence).
	InvariantStepInRange = "step_in_range"
	// InvariantProgressImpliesStart requires a start time once any step is taken.
	InvariantProgressImpliesStart = "progress_implies_start"
	// InvariantResetIsClean requires a reset session to carry no progress.
	InvariantResetIsClean = "reset_is_clean"
	// InvariantPhaseTransitionLegal requires phase changes to follow the session lifecycle.
	InvariantPhaseTransitionLegal = "phase_transition_legal"
)

const (
	// SeverityWarn is used for non-fatal invariant violations.
	SeverityWarn = "warn"
	// SeverityError is used for fatal invariant violations.
	SeverityError = "error"
)

var invariantChecksEnabled atomic.Bool

func init() {
	invariantChecksEnabled.Store(true)
}

// ViolationDetails captures invariant violation context for telemetry events.
type ViolationDetails struct {
	WhatInvariant string
	WhereDetected string
	WhyViolated   string
	StackTrace    string
	Additional    map[string]string
}

// SetEnabled globally enables or disables invariant checks.
func SetEnabled(enabled bool) {
	invariantChecksEnabled.Store(enabled)
}

// Enabled reports whether invariant checks are currently enabled.
func Enabled() bool {
	return invariantChecksEnabled.Load()
}

// InvariantViolation emits an invariant.violation telemetry event on the active span.
// If the context has no active span, a short synthetic span is created for observability.
func InvariantViolation(
	ctx context.Context,
	invariantName string,
	severity string,
	details ViolationDetails,
) {
	if !Enabled() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	invariantName = strings.TrimSpace(invariantName)
	if invariantName == "" {
		invariantName = "unknown_invariant"
	}
	severity = normalizeSeverity(severity)

	attrs := []attribute.KeyValue{
		attribute.String("invariant_name", invariantName),
		attribute.String("severity", severity),
		attribute.String("what_invariant", strings.TrimSpace(details.WhatInvariant)),
		attribute.String("where_detected", strings.TrimSpace(details.WhereDetected)),
		attribute.String("why_violated", strings.TrimSpace(details.WhyViolated)),
	}
	if stack := strings.TrimSpace(details.StackTrace); stack != "" {
		attrs = append(attrs, attribute.String("stack_trace", stack))
	}

	if len(details.Additional) > 0 {
		keys := make([]string, 0, len(details.Additional))
		for key := range details.Additional {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := strings.TrimSpace(details.Additional[key])
			if value == "" {
				continue
			}
			attrs = append(attrs, attribute.String("context."+key, value))
		}
	}

	span := trace.SpanFromContext(ctx)
	if span != nil && span.SpanContext().IsValid() {
		span.AddEvent("invariant.violation", trace.WithAttributes(attrs...))
		return
	}

	tracedCtx, temporarySpan := otel.Tracer("hackterm/invariants").Start(ctx, "invariant.violation")
	defer temporarySpan.End()
	temporarySpan.AddEvent("invariant.violation", trace.WithAttributes(attrs...))
	_ = tracedCtx
}

// CheckStepInRange validates the step_in_range invariant.
func CheckStepInRange(ctx context.Context, whereDetected string, step, sequenceLength int) bool {
	if step >= 0 && step <= sequenceLength {
		return true
	}
	InvariantViolation(ctx, InvariantStepInRange, SeverityError, ViolationDetails{
		WhatInvariant: "session step stays within the configured sequence",
		WhereDetected: whereDetected,
		WhyViolated:   fmt.Sprintf("step=%d outside [0,%d]", step, sequenceLength),
		Additional: map[string]string{
			"step":            strconv.Itoa(step),
			"sequence_length": strconv.Itoa(sequenceLength),
		},
	})
	return false
}

// CheckProgressImpliesStart validates the progress_implies_start invariant.
func CheckProgressImpliesStart(ctx context.Context, whereDetected string, step, errorCount int, started bool) bool {
	if started || (step == 0 && errorCount == 0) {
		return true
	}
	InvariantViolation(ctx, InvariantProgressImpliesStart, SeverityWarn, ViolationDetails{
		WhatInvariant: "a session with progress or errors has a start time",
		WhereDetected: whereDetected,
		WhyViolated:   fmt.Sprintf("step=%d errors=%d without session start", step, errorCount),
	})
	return false
}

// CheckResetIsClean validates the reset_is_clean invariant.
func CheckResetIsClean(ctx context.Context, whereDetected string, step, errorCount int, alarm, started bool) bool {
	if step == 0 && errorCount == 0 && !alarm && !started {
		return true
	}
	InvariantViolation(ctx, InvariantResetIsClean, SeverityError, ViolationDetails{
		WhatInvariant: "reset yields an empty session",
		WhereDetected: whereDetected,
		WhyViolated:   fmt.Sprintf("step=%d errors=%d alarm=%t started=%t after reset", step, errorCount, alarm, started),
	})
	return false
}

// CheckPhaseTransitionLegal validates the phase_transition_legal invariant.
func CheckPhaseTransitionLegal(
	ctx context.Context,
	whereDetected string,
	fromPhase string,
	toPhase string,
	legal bool,
) bool {
	if legal {
		return true
	}
	InvariantViolation(ctx, InvariantPhaseTransitionLegal, SeverityError, ViolationDetails{
		WhatInvariant: "session phase transition is legal",
		WhereDetected: whereDetected,
		WhyViolated:   fmt.Sprintf("illegal phase transition from=%s to=%s", fromPhase, toPhase),
		Additional: map[string]string{
			"from_phase": strings.TrimSpace(fromPhase),
			"to_phase":   strings.TrimSpace(toPhase),
		},
	})
	return false
}

func normalizeSeverity(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case SeverityWarn:
		return SeverityWarn
	case SeverityError:
		return SeverityError
	default:
		return SeverityError
	}
}
