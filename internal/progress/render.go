package progress

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"upscaler/internal/logging"
)

// Render styles accepted by NewRenderer.
const (
	StyleAuto = "auto"
	StyleBar  = "bar"
	StyleLog  = "log"
)

// NewRenderer picks a renderer for style. "auto" draws a bar when out is a
// terminal and falls back to sampled log lines otherwise.
func NewRenderer(style string, out io.Writer, logger *slog.Logger, label string) Renderer {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case StyleBar:
		return NewBarRenderer(out, label)
	case StyleLog:
		return NewLogRenderer(logger, label)
	default:
		if IsTerminal(out) {
			return NewBarRenderer(out, label)
		}
		return NewLogRenderer(logger, label)
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// BarRenderer draws a terminal progress bar. The bar is sized on the first
// sample, since the total is only known once the monitor starts.
type BarRenderer struct {
	out   io.Writer
	label string
	bar   *progressbar.ProgressBar
}

// NewBarRenderer returns a bar renderer writing to out.
func NewBarRenderer(out io.Writer, label string) *BarRenderer {
	if out == nil {
		out = os.Stderr
	}
	return &BarRenderer{out: out, label: label}
}

func (r *BarRenderer) ensure(total int) {
	if r.bar != nil {
		return
	}
	limit := total
	if limit <= 0 {
		limit = -1 // spinner
	}
	r.bar = progressbar.NewOptions(limit,
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionSetDescription(r.label),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Render moves the bar to s.Done.
func (r *BarRenderer) Render(s Sample) {
	r.ensure(s.Total)
	_ = r.bar.Set(s.Done)
}

// Finish draws the final state and ends the bar line.
func (r *BarRenderer) Finish(final Sample, completed bool) {
	r.ensure(final.Total)
	_ = r.bar.Set(final.Done)
	if completed {
		_ = r.bar.Finish()
	} else {
		_ = r.bar.Exit()
	}
	fmt.Fprintln(r.out)
}

// LogRenderer emits progress as structured log lines, sampled to 5% buckets.
type LogRenderer struct {
	logger  *slog.Logger
	label   string
	sampler *logging.ProgressSampler
	started time.Time
}

// NewLogRenderer returns a log renderer. A nil logger discards output.
func NewLogRenderer(logger *slog.Logger, label string) *LogRenderer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogRenderer{
		logger:  logger,
		label:   label,
		sampler: logging.NewProgressSampler(5),
		started: time.Now(),
	}
}

// Render logs s when it crosses into a new percentage bucket.
func (r *LogRenderer) Render(s Sample) {
	if !r.sampler.ShouldLog(s.Percent(), r.label) {
		return
	}
	r.logger.Info(r.label+" progress",
		logging.Int("done", s.Done),
		logging.Int("total", s.Total),
		logging.String("percent", fmt.Sprintf("%.1f%%", s.Percent())),
		logging.String(logging.FieldEventType, "progress"),
	)
}

// Finish always logs the final state.
func (r *LogRenderer) Finish(final Sample, completed bool) {
	msg := r.label + " progress complete"
	event := "progress_complete"
	if !completed {
		msg = r.label + " progress stopped"
		event = "progress_stopped"
	}
	r.logger.Info(msg,
		logging.Int("done", final.Done),
		logging.Int("total", final.Total),
		logging.String("percent", fmt.Sprintf("%.1f%%", final.Percent())),
		logging.Duration("elapsed", time.Since(r.started).Round(time.Second)),
		logging.String(logging.FieldEventType, event),
	)
}
