package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
)

// Formatter renders one entry, including its trailing newline.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Entry is a single log record.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
	Fields  []Field
	Trace   TraceContext
}

// shortRunLen is how much of the run ID text lines show.
const shortRunLen = 8

var (
	levelColors = map[Level]*color.Color{
		LevelDebug: color.New(color.FgCyan),
		LevelInfo:  color.New(color.FgBlue),
		LevelWarn:  color.New(color.FgYellow),
		LevelError: color.New(color.FgRed),
	}
	fieldColor = color.New(color.Faint)
)

// TextFormatter renders
//
//	15:04:05 INFO  [upgrade] message key=value run=1a2b3c4d
//
// The command tag and run ID appear only for entries logged with a trace.
type TextFormatter struct {
	TimestampFormat string
	Colors          bool
}

func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	layout := f.TimestampFormat
	if layout == "" {
		layout = "15:04:05"
	}

	var buf bytes.Buffer
	buf.WriteString(entry.Time.Format(layout))
	buf.WriteByte(' ')
	buf.WriteString(f.paint(levelColors[entry.Level], fmt.Sprintf("%-5s", entry.Level)))
	if cmd := entry.Trace.Command; cmd != "" {
		buf.WriteString(" [")
		buf.WriteString(cmd)
		buf.WriteByte(']')
	}
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)

	for _, field := range entry.Fields {
		buf.WriteByte(' ')
		buf.WriteString(f.paint(fieldColor, fmt.Sprintf("%s=%v", field.Key, field.Value)))
	}
	if id := entry.Trace.TraceID; id != "" {
		if len(id) > shortRunLen {
			id = id[:shortRunLen]
		}
		buf.WriteByte(' ')
		buf.WriteString(f.paint(fieldColor, "run="+id))
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (f *TextFormatter) paint(c *color.Color, text string) string {
	if !f.Colors || c == nil {
		return text
	}
	return c.Sprint(text)
}

// JSONFormatter renders one JSON object per line. Fields never override
// the time, level, msg, trace_id or command keys.
type JSONFormatter struct {
	TimestampFormat string
}

func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	layout := f.TimestampFormat
	if layout == "" {
		layout = time.RFC3339
	}

	data := make(map[string]interface{}, len(entry.Fields)+5)
	for _, field := range entry.Fields {
		data[field.Key] = field.Value
	}
	data["time"] = entry.Time.Format(layout)
	data["level"] = entry.Level.String()
	data["msg"] = entry.Message
	if entry.Trace.TraceID != "" {
		data["trace_id"] = entry.Trace.TraceID
	}
	if entry.Trace.Command != "" {
		data["command"] = entry.Trace.Command
	}

	out, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
