package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// StandardLogger writes formatted entries to a single writer. Loggers
// derived with With share the writer and its lock.
type StandardLogger struct {
	mu        *sync.Mutex
	level     Level
	output    io.Writer
	formatter Formatter
	fields    []Field
}

// Option configures a StandardLogger.
type Option func(*StandardLogger)

// WithLevel sets the minimum level written.
func WithLevel(level Level) Option {
	return func(l *StandardLogger) {
		l.level = level
	}
}

// WithOutput redirects entries to w.
func WithOutput(w io.Writer) Option {
	return func(l *StandardLogger) {
		l.output = w
	}
}

// WithFormatter replaces the plain text formatter.
func WithFormatter(formatter Formatter) Option {
	return func(l *StandardLogger) {
		l.formatter = formatter
	}
}

// NewStandardLogger returns an info-level logger writing plain text to
// stdout unless options say otherwise.
func NewStandardLogger(options ...Option) *StandardLogger {
	l := &StandardLogger{
		mu:    &sync.Mutex{},
		level: LevelInfo,
	}
	for _, opt := range options {
		if opt != nil {
			opt(l)
		}
	}
	if l.output == nil {
		l.output = os.Stdout
	}
	if l.formatter == nil {
		l.formatter = &TextFormatter{}
	}
	return l
}

func (l *StandardLogger) Debug(format string, args ...interface{}) {
	l.printf(LevelDebug, format, args...)
}

func (l *StandardLogger) Info(format string, args ...interface{}) {
	l.printf(LevelInfo, format, args...)
}

func (l *StandardLogger) Warn(format string, args ...interface{}) {
	l.printf(LevelWarn, format, args...)
}

func (l *StandardLogger) Error(format string, args ...interface{}) {
	l.printf(LevelError, format, args...)
}

func (l *StandardLogger) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, LevelDebug, msg, fields)
}

func (l *StandardLogger) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, LevelInfo, msg, fields)
}

func (l *StandardLogger) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, LevelWarn, msg, fields)
}

func (l *StandardLogger) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.emit(ctx, LevelError, msg, fields)
}

func (l *StandardLogger) With(fields ...Field) Logger {
	child := *l
	child.fields = append(append([]Field{}, l.fields...), fields...)
	return &child
}

func (l *StandardLogger) printf(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.write(&Entry{
		Time:    time.Now(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		Fields:  l.fields,
	})
}

func (l *StandardLogger) emit(ctx context.Context, level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	all := make([]Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)
	l.write(&Entry{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Fields:  all,
		Trace:   TraceFromContext(ctx),
	})
}

func (l *StandardLogger) write(entry *Entry) {
	out, err := l.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to format log entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.output.Write(out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write log entry: %v\n", err)
	}
}
