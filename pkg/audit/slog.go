package audit

import (
	"context"
	"errors"
	"log/slog"
)

// ErrQueryUnsupported is returned by loggers without a queryable backing store.
var ErrQueryUnsupported = errors.New("audit logger does not support queries")

// SlogLogger writes audit events to a structured logger. It is the default
// audit backend when no database is configured.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a Logger that writes events via slog.
// If logger is nil, slog.Default() is used.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Log writes the event as a structured log record.
func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	attrs := []slog.Attr{
		slog.String("event_id", event.ID),
		slog.String("request_id", event.RequestID),
		slog.String("tool_name", event.ToolName),
		slog.Bool("success", event.Success),
		slog.Int64("duration_ms", event.DurationMS),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.ToolkitKind != "" {
		attrs = append(attrs,
			slog.String("toolkit_kind", event.ToolkitKind),
			slog.String("toolkit_name", event.ToolkitName))
	}
	if event.Connection != "" {
		attrs = append(attrs, slog.String("connection", event.Connection))
	}
	if event.Parameters != nil {
		attrs = append(attrs, slog.Any("parameters", event.Parameters))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.ErrorMessage))
	}

	l.logger.LogAttrs(ctx, level, "tool_call", attrs...)
	return nil
}

// Query is not supported without a backing store.
func (l *SlogLogger) Query(_ context.Context, _ QueryFilter) ([]Event, error) {
	return nil, ErrQueryUnsupported
}

// Close is a no-op.
func (l *SlogLogger) Close() error {
	return nil
}

// Verify interface compliance.
var _ Logger = (*SlogLogger)(nil)
