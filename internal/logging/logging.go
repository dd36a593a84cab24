// Package logging provides structured logging for a single build run: a
// JSON/RFC3339Nano/lowercase-level encoder configuration, a Logger/
// SugaredLogger split, and a run context (run_id, side, plies) attached to
// every line.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RunContext carries the fields attached to every log line for a build run.
type RunContext struct {
	RunID string
	Side  string
	Plies uint32
}

// Logger wraps a run-scoped *zap.Logger.
type Logger struct {
	zap *zap.Logger
	ctx RunContext
}

// SugaredLogger wraps a run-scoped *zap.SugaredLogger for printf-style
// convenience logging, used at the CLI surface.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a run-scoped logger writing JSON to os.Stderr.
func New(ctx RunContext) *Logger {
	return newWithWriter(ctx, os.Stderr)
}

// WithOutput returns a new logger with a different output writer and the
// same run context fields. Used by tests to capture log output.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return newWithWriter(l.ctx, w)
}

func newWithWriter(ctx RunContext, w io.Writer) *Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(w), zapcore.DebugLevel)
	fields := []zap.Field{
		zap.String("run_id", ctx.RunID),
		zap.String("side", ctx.Side),
		zap.Uint32("plies", ctx.Plies),
	}
	return &Logger{zap: zap.New(core).With(fields...), ctx: ctx}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

// Debug logs a debug message with structured fields.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message with structured fields.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message with structured fields.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message with structured fields.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}
