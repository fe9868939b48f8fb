package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewStandardLogger(WithOutput(&buf), WithLevel(LevelWarn))

	log.Info("hidden %d", 1)
	log.Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, " WARN  shown 2\n")
}

func TestJSONFormatterIncludesTraceFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewStandardLogger(WithOutput(&buf), WithFormatter(&JSONFormatter{}))

	ctx := ContextWithTrace(context.Background(), TraceContext{TraceID: "run-1", Command: "upgrade"})
	log.InfoContext(ctx, "downloading", String("asset", "Xray-linux-64.zip"))

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "downloading", record["msg"])
	assert.Equal(t, "run-1", record["trace_id"])
	assert.Equal(t, "upgrade", record["command"])
	assert.Equal(t, "Xray-linux-64.zip", record["asset"])
}

func TestWithAddsConstantFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewStandardLogger(WithOutput(&buf))

	base.With(String("proxy", "xray")).Info("restarting")

	assert.True(t, strings.Contains(buf.String(), "proxy=xray"), buf.String())
}

func TestTextFormatterShowsCommandAndRun(t *testing.T) {
	var buf bytes.Buffer
	log := NewColoredLogger(WithOutput(&buf), WithLevel(LevelDebug))

	ctx := ContextWithTrace(context.Background(), TraceContext{
		TraceID: "1a2b3c4d-0000-4000-8000-000000000000",
		Command: "restart",
	})
	log.With(String("proxy", "xray")).WarnContext(ctx, "failed to stop daemon", String("daemon", "wxray"))
	log.Info("Already latest version.")

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "WARN  [restart] failed to stop daemon proxy=xray daemon=wxray run=1a2b3c4d")
	assert.NotContains(t, lines[0], "\x1b[", "a buffer is not a terminal")
	assert.True(t, strings.HasSuffix(lines[1], "INFO  Already latest version."), lines[1])
}

func TestJSONFieldsCannotShadowEnvelope(t *testing.T) {
	var buf bytes.Buffer
	log := NewStandardLogger(WithOutput(&buf), WithFormatter(&JSONFormatter{}))

	log.ErrorContext(context.Background(), "restart failed", String("msg", "shadow"), String("level", "x"))

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "restart failed", record["msg"])
	assert.Equal(t, "ERROR", record["level"])
	assert.NotContains(t, record, "trace_id")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"":        LevelInfo,
		"WARNING": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestMockLoggerRecordsEntries(t *testing.T) {
	m := NewMockLogger()
	m.Info("Already latest version %s", "1.8.4")
	m.WarnContext(context.Background(), "kill failed")

	ctx := ContextWithTrace(context.Background(), TraceContext{TraceID: "run-7"})
	m.With(String("proxy", "xray")).DebugContext(ctx, "executable not found")

	assert.True(t, m.HasEntry(LevelInfo, "Already latest"))
	assert.Equal(t, 1, m.CountEntries(LevelWarn))

	entries := m.GetEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "run-7", entries[2].TraceID)
	assert.Equal(t, []Field{String("proxy", "xray")}, entries[2].Fields)

	m.Reset()
	assert.Empty(t, m.GetEntries())
}

func TestSpinnerProgressRestarts(t *testing.T) {
	var buf syncBuffer
	p := NewSpinnerProgress(&buf)

	p.Start("Restarting wxray")
	p.Stop("Restarting wxray")
	p.Start("Refreshing rules")
	p.Fail("Refreshing rules")

	out := buf.String()
	assert.Contains(t, out, "✓ Restarting wxray\n")
	assert.Contains(t, out, "✗ Refreshing rules\n")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
