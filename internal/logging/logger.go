// Package logging defines the structured-logging interface used by the
// mapper, the stores and the commands. Implementations wrap slog.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key-value pairs, e.g.:
//
//	log.Debug(ctx, "message built", "entity", meta.Name, "message", name)
type Logger interface {
	// Debug logs conversion traces.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs tolerated anomalies, such as a dangling reference left unset.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs failures, such as a rolled back save.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}
