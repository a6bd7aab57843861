// Package logging defines the structured logger every StaffKeeper component
// takes. The only implementation wraps log/slog.
package logging

import "context"

// Logger is a context-aware, structured logger. Args are key/value pairs:
//
//	log.Info(ctx, "login", "username", name, "outcome", "ok")
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every record.
	With(args ...any) Logger
}
