package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	runewidth "github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"proxyup/internal/history"
)

// InstallState is a coarse view of the managed proxy.
type InstallState string

const (
	StateInstalled    InstallState = "installed"
	StateNotInstalled InstallState = "not-installed"
	StateUnknown      InstallState = "unknown"
)

// StatusView summarises the managed proxy for display.
type StatusView struct {
	Variant   string
	Version   string
	State     InstallState
	Dir       string
	Daemon    string
	AssetName string
}

// Printer renders rich terminal UI fragments used by the CLI.
type Printer struct {
	out     io.Writer
	success *color.Color
	info    *color.Color
	warn    *color.Color
	error   *color.Color
	faint   *color.Color
}

// NewPrinter constructs a Printer writing to stdout with colour enabled for TTYs.
func NewPrinter() *Printer {
	return NewPrinterTo(os.Stdout, supportsColor(os.Stdout) && os.Getenv("NO_COLOR") == "")
}

// NewPrinterTo constructs a Printer writing to w.
func NewPrinterTo(w io.Writer, colorEnabled bool) *Printer {
	p := &Printer{
		out:     w,
		success: color.New(color.FgGreen, color.Bold),
		info:    color.New(color.FgBlue, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		error:   color.New(color.FgRed, color.Bold),
		faint:   color.New(color.Faint),
	}

	for _, c := range []*color.Color{p.success, p.info, p.warn, p.error, p.faint} {
		if colorEnabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return p
}

// PrintBanner renders the application banner.
func (p *Printer) PrintBanner() {
	lines := []string{
		"=========================================================",
		"   ___  _______ __ ____ _____  _____ ",
		"  / _ \\/ __/ _ \\\\ \\ / / // / / / / _ \\",
		" / ___/ / / // / > </ _  / /_/ / ___/",
		"/_/  /_/  \\___/_/|_/_//_/\\____/_/    ",
		"",
		"Proxy rule refresh, upgrade and restart",
		"=========================================================",
	}

	for _, line := range lines {
		p.success.Fprintln(p.out, line)
	}
}

// PrintSeparator prints a repeated character separator.
func (p *Printer) PrintSeparator(char string, length int) {
	if length <= 0 {
		return
	}
	fmt.Fprintln(p.out, strings.Repeat(char, length))
}

// PrintStatus renders the installed proxy summary.
func (p *Printer) PrintStatus(view StatusView) {
	var mark string
	switch view.State {
	case StateInstalled:
		mark = p.success.Sprint("✓")
	case StateNotInstalled:
		mark = p.warn.Sprint("!")
	default:
		mark = p.error.Sprint("?")
	}

	p.PrintSeparator("-", 50)
	fmt.Fprintf(p.out, "[ %s ] %s %s\n", mark, view.Variant, view.Version)
	p.printField("Directory:", view.Dir)
	p.printField("Daemon:", view.Daemon)
	p.printField("Asset:", view.AssetName)
	p.PrintSeparator("-", 50)
}

func (p *Printer) printField(label, value string) {
	fmt.Fprintf(p.out, "%s %s\n", p.info.Sprint(runewidth.FillRight(label, 12)), p.warn.Sprint(value))
}

// PrintHistory renders ledger rows newest first, relative to now.
func (p *Printer) PrintHistory(records []history.Record, now time.Time) {
	if len(records) == 0 {
		p.faint.Fprintln(p.out, "No runs recorded yet.")
		return
	}

	for _, rec := range records {
		status := string(rec.Status)
		switch rec.Status {
		case history.StatusOK:
			status = p.success.Sprint(status)
		case history.StatusFailed:
			status = p.error.Sprint(status)
		default:
			status = p.warn.Sprint(status)
		}

		detail := rec.Detail
		if rec.Version != "" {
			detail = strings.TrimSpace(rec.Version + " " + detail)
		}

		fmt.Fprintf(p.out, "%s  %s  %s  %s  %s\n",
			runewidth.FillRight(humanize.RelTime(rec.At, now, "ago", "from now"), 16),
			runewidth.FillRight(string(rec.Action), 8),
			status,
			p.faint.Sprint(shortID(rec.RunID)),
			runewidth.Truncate(detail, 60, "…"),
		)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func supportsColor(w *os.File) bool {
	return term.IsTerminal(int(w.Fd()))
}
