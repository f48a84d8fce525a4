package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	runIDKey  contextKey = "run_id"
	storeKey  contextKey = "store"
)

// WithContext attaches logger to ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the attached logger or a no-op one
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRunID tags ctx and logger with the id of one pipeline run
func WithRunID(ctx context.Context, logger *zap.Logger, runID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, runIDKey, runID)
	enriched := logger.With(zap.String("run_id", runID))
	return WithContext(ctx, enriched), enriched
}

// WithStore tags ctx and logger with the store being processed
func WithStore(ctx context.Context, logger *zap.Logger, storeCode string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, storeKey, storeCode)
	enriched := logger.With(zap.String("store", storeCode))
	return WithContext(ctx, enriched), enriched
}

// GetRunID returns the run id carried by ctx
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(runIDKey).(string); ok {
		return runID
	}
	return ""
}

// GetStore returns the store code carried by ctx
func GetStore(ctx context.Context) string {
	if store, ok := ctx.Value(storeKey).(string); ok {
		return store
	}
	return ""
}
