package downloader

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
)

// Progress is the (downloaded, total) pair reported after every chunk.
type Progress struct {
	Downloaded int64
	Total      int64
}

// Percent returns the completed share in the range [0, 100].
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 100
	}
	return float64(p.Downloaded) / float64(p.Total) * 100
}

// ProgressReporter receives download progress updates.
type ProgressReporter interface {
	OnStart(name string, total int64)
	OnProgress(name string, progress Progress)
	OnComplete(name string, total int64, elapsed time.Duration)
}

// NoopProgressReporter discards all progress events.
type NoopProgressReporter struct{}

func (NoopProgressReporter) OnStart(string, int64)                   {}
func (NoopProgressReporter) OnProgress(string, Progress)             {}
func (NoopProgressReporter) OnComplete(string, int64, time.Duration) {}

// progressTracker advances the byte counter for one download, never past
// the declared total.
type progressTracker struct {
	total      int64
	downloaded int64
}

func (t *progressTracker) advance(n int) Progress {
	next := t.downloaded + int64(n)
	if next > t.total {
		next = t.total
	}
	t.downloaded = next
	return Progress{Downloaded: t.downloaded, Total: t.total}
}

const (
	barWidth      = 30
	nameWidth     = 24
	redrawLatency = 200 * time.Millisecond
)

// ConsoleProgressReporter renders a single-line progress bar to a writer.
type ConsoleProgressReporter struct {
	mu         sync.Mutex
	writer     io.Writer
	lastUpdate time.Time
}

// NewConsoleProgressReporter constructs a ConsoleProgressReporter writing to w,
// or stdout when w is nil.
func NewConsoleProgressReporter(w io.Writer) *ConsoleProgressReporter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleProgressReporter{writer: w}
}

func (c *ConsoleProgressReporter) OnStart(name string, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.writer, "  %s: starting download (%s total)\n", displayName(name), humanize.IBytes(uint64(total)))
	c.lastUpdate = time.Now()
}

func (c *ConsoleProgressReporter) OnProgress(name string, progress Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if progress.Downloaded < progress.Total && now.Sub(c.lastUpdate) < redrawLatency {
		return
	}
	c.lastUpdate = now

	fmt.Fprintf(c.writer, "\r  %s: [%s] %5.1f%% (%s/%s)",
		displayName(name),
		renderBar(progress.Percent()),
		progress.Percent(),
		humanize.IBytes(uint64(progress.Downloaded)),
		humanize.IBytes(uint64(progress.Total)),
	)
}

func (c *ConsoleProgressReporter) OnComplete(name string, total int64, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate := "n/a"
	if secs := elapsed.Seconds(); secs > 0 {
		rate = humanize.IBytes(uint64(float64(total)/secs)) + "/s"
	}
	fmt.Fprintf(c.writer, "\r  %s: [%s] 100.0%% (%s) %s\n",
		displayName(name),
		strings.Repeat("=", barWidth),
		humanize.IBytes(uint64(total)),
		rate,
	)
}

func renderBar(percent float64) string {
	filled := int(float64(barWidth) * percent / 100)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-filled-1)
	}
	return bar
}

func displayName(name string) string {
	if runewidth.StringWidth(name) <= nameWidth {
		return runewidth.FillRight(name, nameWidth)
	}
	return runewidth.Truncate(name, nameWidth, "…")
}
