package log

import "go.uber.org/zap"

// Logger is the leveled key/value logging surface handed to components that
// should not reach for the package-level functions directly (the store, the
// session). Keys and values alternate as in Info.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Error(msg string, err error, kv ...any)
}

// Default returns a Logger backed by the package-level logger.
func Default() Logger { return global{} }

// Nop returns a Logger that discards everything.
func Nop() Logger { return zapLogger{s: zap.NewNop().Sugar()} }

// New wraps an existing zap logger, e.g. zaptest or an observer core.
func New(z *zap.Logger) Logger {
	if z == nil {
		return Nop()
	}
	return zapLogger{s: z.Sugar()}
}

// With returns a Logger that adds kv to every entry.
func With(l Logger, kv ...any) Logger {
	if len(kv) == 0 {
		return l
	}
	return withLogger{base: l, kv: kv}
}

type global struct{}

// global calls logWithLevel directly so it has the same depth as the
// package-level functions and the caller skip stays correct.
func (global) Debug(msg string, kv ...any) { logWithLevel(LevelDebug, msg, kv...) }
func (global) Info(msg string, kv ...any)  { logWithLevel(LevelInfo, msg, kv...) }
func (global) Error(msg string, err error, kv ...any) {
	logWithLevel(LevelError, msg, withErr(err, kv)...)
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (z zapLogger) Debug(msg string, kv ...any) { z.s.Debugw(msg, kv...) }
func (z zapLogger) Info(msg string, kv ...any)  { z.s.Infow(msg, kv...) }
func (z zapLogger) Error(msg string, err error, kv ...any) {
	z.s.Errorw(msg, append([]any{"err", err}, kv...)...)
}

type withLogger struct {
	base Logger
	kv   []any
}

func (w withLogger) Debug(msg string, kv ...any) { w.base.Debug(msg, w.merge(kv)...) }
func (w withLogger) Info(msg string, kv ...any)  { w.base.Info(msg, w.merge(kv)...) }
func (w withLogger) Error(msg string, err error, kv ...any) {
	w.base.Error(msg, err, w.merge(kv)...)
}

func (w withLogger) merge(kv []any) []any {
	out := make([]any, 0, len(w.kv)+len(kv))
	out = append(out, w.kv...)
	return append(out, kv...)
}
