// Package dashboard draws live pipeline statistics on a terminal.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"

	"streamsynth/internal/model"
)

// --- ANSI color codes ---
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	clearScreen  = "\033[H\033[2J"
)

// StatsSource provides the numbers to draw. pipeline.Tracker implements it.
type StatsSource interface {
	Snapshot() model.RunStats
}

// Dashboard redraws the statistics of a StatsSource every interval.
type Dashboard struct {
	stats    StatsSource
	buffered func() int
	interval time.Duration
	clock    clock.Clock
	// Color disables ANSI sequences when false.
	Color bool

	mu  sync.Mutex
	out io.Writer
}

// New returns a dashboard drawing to out. buffered may be nil.
func New(stats StatsSource, buffered func() int, out io.Writer, interval time.Duration) *Dashboard {
	if interval <= 0 {
		interval = time.Second
	}
	return &Dashboard{
		stats:    stats,
		buffered: buffered,
		interval: interval,
		clock:    clock.New(),
		Color:    true,
		out:      out,
	}
}

// WithClock replaces the clock driving redraws.
func (d *Dashboard) WithClock(c clock.Clock) *Dashboard {
	d.clock = c
	return d
}

// Run draws immediately and then on every tick until ctx is done.
func (d *Dashboard) Run(ctx context.Context) {
	d.Draw()
	ticker := d.clock.Ticker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Draw()
		}
	}
}

// Draw clears the screen and renders the current snapshot.
func (d *Dashboard) Draw() {
	s := d.stats.Snapshot()
	if d.buffered != nil {
		s.BufferedEvents = d.buffered()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Color {
		io.WriteString(d.out, clearScreen)
	}
	d.Render(d.out, s)
}

// Render writes one frame for s.
func (d *Dashboard) Render(w io.Writer, s model.RunStats) {
	var b strings.Builder
	line := func(color, label, value string) {
		fmt.Fprintf(&b, "%s: %s\n", d.paint(color, label), value)
	}

	b.WriteString(d.paint(colorBold, "=== StreamSynth Dashboard ===") + "\n")
	line(colorBlue, "Status", s.Status)
	line(colorBlue, "Runtime", s.Duration.Truncate(time.Second).String())
	line(colorGreen, "Events Processed", humanize.Comma(s.Processed))
	line(colorYellow, "Events Filtered", humanize.Comma(s.Filtered))
	line(colorCyan, "Processing Rate", humanize.FormatFloat("#,###.##", s.EventsPerSecond)+" events/sec")
	line(colorRed, "Errors", humanize.Comma(s.Errors))
	line(colorMagenta, "Spillovers", fmt.Sprintf("%s (%s events)", humanize.Comma(s.Spillovers), humanize.Comma(s.SpilledEvents)))
	line(colorCyan, "Buffered", humanize.Comma(int64(s.BufferedEvents)))
	if s.SourceFinished {
		line(colorYellow, "Source", "finished")
	}
	b.WriteString(d.paint(colorBold, "=============================") + "\n")
	b.WriteString("Press Ctrl+C to stop\n")

	io.WriteString(w, b.String())
}

func (d *Dashboard) paint(color, s string) string {
	if !d.Color {
		return s
	}
	return color + s + colorReset
}
