package util

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	verboseKey contextKey = "verbose"
	loggerKey  contextKey = "logger"
)

// WithVerbose adds the verbose flag to the context
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, verboseKey, verbose)
}

// IsVerbose returns true if verbose mode is enabled in the context
func IsVerbose(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := ctx.Value(verboseKey).(bool)
	return ok && v
}

// WithLogger stores logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFrom returns the logger stored in ctx, or a no-op logger.
func LoggerFrom(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.NewNop()
}
