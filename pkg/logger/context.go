package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// With returns a context whose logger carries fields on every line.
func With(ctx context.Context, fields ...any) context.Context {
	return context.WithValue(ctx, ctxKey{}, From(ctx).With(fields...))
}

// WithTrace tags the request logger with the trace id echoed to clients.
func WithTrace(ctx context.Context, traceID string) context.Context {
	return With(ctx, "trace_id", traceID)
}

// WithUser tags the request logger with the authenticated user.
func WithUser(ctx context.Context, userID string) context.Context {
	return With(ctx, "user_id", userID)
}

// From returns the logger stored in ctx, or the process logger.
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return LoggerWrapper()
}
