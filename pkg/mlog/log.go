// Package mlog defines the logging interface shared by every package in
// this module. Concrete loggers (mzap.Logger, NoneLogger) implement it;
// callers should depend on the interface, never on zap directly.
package mlog

import "context"

// Logger is the common interface for log implementations used across the
// event pipeline. It intentionally mirrors the subset of zap's sugared API
// the pipeline actually calls, so a concrete implementation is a thin
// adapter rather than a reinvention.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)
	Infow(msg string, keysAndValues ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)
	Warnw(msg string, keysAndValues ...any)

	Error(args ...any)
	Errorf(format string, args ...any)
	Errorw(msg string, keysAndValues ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)
	Debugw(msg string, keysAndValues ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// WithFields returns a new Logger that attaches the given key-value
	// pairs to every subsequent record. The original logger is unchanged.
	WithFields(fields ...any) Logger

	Sync() error
}

type loggerContextKey struct{}

// ContextWithLogger returns a context carrying logger as the active Logger.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// FromContext extracts the Logger carried by ctx, or a NoneLogger if none
// was attached.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(Logger); ok && l != nil {
		return l
	}

	return &NoneLogger{}
}
