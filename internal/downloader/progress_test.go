package downloader

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTrackerClamps(t *testing.T) {
	tr := &progressTracker{total: 10}

	assert.Equal(t, Progress{Downloaded: 6, Total: 10}, tr.advance(6))
	assert.Equal(t, Progress{Downloaded: 10, Total: 10}, tr.advance(6))
	assert.Equal(t, Progress{Downloaded: 10, Total: 10}, tr.advance(1))
}

func TestProgressPercent(t *testing.T) {
	assert.InDelta(t, 50.0, Progress{Downloaded: 5, Total: 10}.Percent(), 0.001)
	assert.InDelta(t, 100.0, Progress{Total: 0}.Percent(), 0.001)
}

func TestConsoleProgressReporterRendersFinalLine(t *testing.T) {
	var buf bytes.Buffer
	rep := NewConsoleProgressReporter(&buf)

	rep.OnStart("Xray-linux-64.zip", 2048)
	rep.OnProgress("Xray-linux-64.zip", Progress{Downloaded: 2048, Total: 2048})
	rep.OnComplete("Xray-linux-64.zip", 2048, time.Second)

	out := buf.String()
	assert.Contains(t, out, "starting download (2.0 KiB total)")
	assert.Contains(t, out, "100.0%")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestDisplayNameTruncatesLongNames(t *testing.T) {
	name := displayName(strings.Repeat("n", 40))
	assert.LessOrEqual(t, len([]rune(name)), nameWidth)
	assert.Len(t, []rune(displayName("geoip.dat")), nameWidth)
}
