package logging

import (
	"context"

	"go.uber.org/zap"
)

type contextKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext retrieves the logger stored by WithLogger, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// ForInvocation derives the logger of one orchestration call from base and
// stores it in ctx, so every component below logs the same invocation id.
func ForInvocation(ctx context.Context, base *zap.Logger, invocationID, action, hostname string) (context.Context, *zap.Logger) {
	logger := base.With(
		zap.String(FieldInvocationID, invocationID),
		zap.String(FieldAction, action),
		zap.String(FieldHostname, hostname),
	)
	return WithLogger(ctx, logger), logger
}
