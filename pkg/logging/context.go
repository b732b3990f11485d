package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const (
	loggerKey contextKey = iota
	runIDKey
)

// WithLogger stores logger in ctx. A nil logger stores the default one.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return Default()
}

// WithRunID tags ctx and its logger with the identifier of one build run.
func WithRunID(ctx context.Context, runID string) context.Context {
	ctx = context.WithValue(ctx, runIDKey, runID)
	return withStr(ctx, "run_id", runID)
}

// RunID returns the run identifier of ctx, empty outside a run.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithRelease adds the release name to the context logger.
func WithRelease(ctx context.Context, release string) context.Context {
	return withStr(ctx, "release", release)
}

// WithDivision adds the division name to the context logger.
func WithDivision(ctx context.Context, division string) context.Context {
	return withStr(ctx, "division", division)
}

// WithStage adds the build stage (acquire, geometry, enrich, export, report, merge).
func WithStage(ctx context.Context, stage string) context.Context {
	return withStr(ctx, "stage", stage)
}

func withStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, &logger)
}
