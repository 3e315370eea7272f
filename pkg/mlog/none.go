package mlog

// NoneLogger discards everything. It is the zero-value Logger used in
// tests and anywhere no logger was explicitly wired.
type NoneLogger struct{}

func (l *NoneLogger) Info(args ...any)                         {}
func (l *NoneLogger) Infof(format string, args ...any)         {}
func (l *NoneLogger) Infow(msg string, keysAndValues ...any)   {}
func (l *NoneLogger) Warn(args ...any)                         {}
func (l *NoneLogger) Warnf(format string, args ...any)         {}
func (l *NoneLogger) Warnw(msg string, keysAndValues ...any)   {}
func (l *NoneLogger) Error(args ...any)                        {}
func (l *NoneLogger) Errorf(format string, args ...any)        {}
func (l *NoneLogger) Errorw(msg string, keysAndValues ...any)  {}
func (l *NoneLogger) Debug(args ...any)                        {}
func (l *NoneLogger) Debugf(format string, args ...any)        {}
func (l *NoneLogger) Debugw(msg string, keysAndValues ...any)  {}
func (l *NoneLogger) Fatal(args ...any)                        {}
func (l *NoneLogger) Fatalf(format string, args ...any)        {}

//nolint:ireturn
func (l *NoneLogger) WithFields(fields ...any) Logger { return l }

func (l *NoneLogger) Sync() error { return nil }
