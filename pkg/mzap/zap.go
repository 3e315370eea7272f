// Package mzap adapts go.uber.org/zap to the mlog.Logger interface, the way
// the teacher codebase wraps zap behind its own mlog/mzap split.
package mzap

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rustokhq/eventpipeline/pkg/mlog"
)

// Logger wraps a zap.SugaredLogger and satisfies mlog.Logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a production zap logger at the given level ("debug", "info",
// "warn", "error") and wraps it.
func New(level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg.Level = lvl

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{sugar: z.Sugar()}, nil
}

func (l *Logger) Info(args ...any)                        { l.sugar.Info(args...) }
func (l *Logger) Infof(format string, args ...any)         { l.sugar.Infof(format, args...) }
func (l *Logger) Infow(msg string, kv ...any)              { l.sugar.Infow(msg, kv...) }
func (l *Logger) Warn(args ...any)                         { l.sugar.Warn(args...) }
func (l *Logger) Warnf(format string, args ...any)         { l.sugar.Warnf(format, args...) }
func (l *Logger) Warnw(msg string, kv ...any)              { l.sugar.Warnw(msg, kv...) }
func (l *Logger) Error(args ...any)                        { l.sugar.Error(args...) }
func (l *Logger) Errorf(format string, args ...any)        { l.sugar.Errorf(format, args...) }
func (l *Logger) Errorw(msg string, kv ...any)             { l.sugar.Errorw(msg, kv...) }
func (l *Logger) Debug(args ...any)                        { l.sugar.Debug(args...) }
func (l *Logger) Debugf(format string, args ...any)        { l.sugar.Debugf(format, args...) }
func (l *Logger) Debugw(msg string, kv ...any)             { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Fatal(args ...any)                        { l.sugar.Fatal(args...) }
func (l *Logger) Fatalf(format string, args ...any)        { l.sugar.Fatalf(format, args...) }

// WithFields returns a new Logger with the given key-value pairs attached
// to every subsequent record.
//
//nolint:ireturn
func (l *Logger) WithFields(fields ...any) mlog.Logger {
	return &Logger{sugar: l.sugar.With(fields...)}
}

func (l *Logger) Sync() error { return l.sugar.Sync() }

// FromSpanContext enriches logger with the trace/span IDs active on ctx, if
// any, so log lines correlate with the span an operator is looking at.
// Logger itself adds no trace fields; a caller opts in by wrapping its
// logger with this function.
//
//nolint:ireturn
func FromSpanContext(ctx context.Context, logger mlog.Logger) mlog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}

	return logger.WithFields("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}
