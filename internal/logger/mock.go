package logger

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockLogger records entries in memory. Loggers derived with With record
// into the same store.
type MockLogger struct {
	store  *mockStore
	fields []Field
}

// MockEntry is one recorded emission. TraceID is set for Context calls
// made under a trace.
type MockEntry struct {
	Level   Level
	Message string
	Fields  []Field
	TraceID string
}

type mockStore struct {
	mu      sync.Mutex
	entries []MockEntry
}

func NewMockLogger() *MockLogger {
	return &MockLogger{store: &mockStore{}}
}

func (m *MockLogger) Debug(format string, args ...interface{}) {
	m.record(context.Background(), LevelDebug, fmt.Sprintf(format, args...), nil)
}

func (m *MockLogger) Info(format string, args ...interface{}) {
	m.record(context.Background(), LevelInfo, fmt.Sprintf(format, args...), nil)
}

func (m *MockLogger) Warn(format string, args ...interface{}) {
	m.record(context.Background(), LevelWarn, fmt.Sprintf(format, args...), nil)
}

func (m *MockLogger) Error(format string, args ...interface{}) {
	m.record(context.Background(), LevelError, fmt.Sprintf(format, args...), nil)
}

func (m *MockLogger) DebugContext(ctx context.Context, msg string, fields ...Field) {
	m.record(ctx, LevelDebug, msg, fields)
}

func (m *MockLogger) InfoContext(ctx context.Context, msg string, fields ...Field) {
	m.record(ctx, LevelInfo, msg, fields)
}

func (m *MockLogger) WarnContext(ctx context.Context, msg string, fields ...Field) {
	m.record(ctx, LevelWarn, msg, fields)
}

func (m *MockLogger) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	m.record(ctx, LevelError, msg, fields)
}

func (m *MockLogger) With(fields ...Field) Logger {
	return &MockLogger{
		store:  m.store,
		fields: append(append([]Field{}, m.fields...), fields...),
	}
}

func (m *MockLogger) record(ctx context.Context, level Level, msg string, fields []Field) {
	entry := MockEntry{
		Level:   level,
		Message: msg,
		TraceID: TraceFromContext(ctx).TraceID,
	}
	if len(m.fields)+len(fields) > 0 {
		entry.Fields = append(append([]Field{}, m.fields...), fields...)
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.entries = append(m.store.entries, entry)
}

// GetEntries returns a copy of everything recorded so far.
func (m *MockLogger) GetEntries() []MockEntry {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return append([]MockEntry(nil), m.store.entries...)
}

// HasEntry reports whether a message at level contains substring.
func (m *MockLogger) HasEntry(level Level, substring string) bool {
	for _, entry := range m.GetEntries() {
		if entry.Level == level && strings.Contains(entry.Message, substring) {
			return true
		}
	}
	return false
}

func (m *MockLogger) CountEntries(level Level) int {
	count := 0
	for _, entry := range m.GetEntries() {
		if entry.Level == level {
			count++
		}
	}
	return count
}

func (m *MockLogger) Reset() {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.entries = nil
}
