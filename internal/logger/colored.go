package logger

import (
	"io"
	"os"

	"golang.org/x/term"
)

// NewColoredLogger returns the text logger used on an operator's terminal.
// Levels and fields are coloured only when the output is a TTY and
// NO_COLOR is unset.
func NewColoredLogger(options ...Option) *StandardLogger {
	l := NewStandardLogger(options...)
	if tf, ok := l.formatter.(*TextFormatter); ok {
		tf.Colors = supportsColor(l.output)
	}
	return l
}

func supportsColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if file, ok := w.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	return false
}
