package events

import (
	"github.com/charmbracelet/log"
)

// AuditHandler returns a handler that writes every event to logger. Warn and
// error severities keep their level.
func AuditHandler(logger *log.Logger) Handler {
	return func(event Event) {
		if logger == nil {
			return
		}
		entry := logger.With(
			"event", event.Type,
			"session_id", event.SessionID,
			"at", event.Timestamp,
		)
		if progress, ok := event.Payload.(Progress); ok {
			entry = entry.With(
				"step", progress.Step,
				"total", progress.Total,
				"errors", progress.Errors,
				"max_errors", progress.MaxErrors,
			)
			if progress.Command != "" {
				entry = entry.With("command", progress.Command)
			}
			if progress.Reason != "" {
				entry = entry.With("reason", progress.Reason)
			}
		} else if event.Payload != nil {
			entry = entry.With("payload", event.Payload)
		}

		switch event.Severity {
		case SeverityError:
			entry.Error("game event")
		case SeverityWarn:
			entry.Warn("game event")
		default:
			entry.Info("game event")
		}
	}
}
