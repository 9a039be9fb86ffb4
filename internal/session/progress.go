package session

import (
	"fmt"
	"io"
	"sync"
	"time"

	"codedrop/internal/engine"

	"github.com/schollz/progressbar/v3"
)

// renderInterval bounds how often the reporter redraws, independent of
// how fast samples arrive.
const renderInterval = 100 * time.Millisecond

// ProgressReporter renders transfer progress on a bounded cadence. It
// is the sole consumer of the engine's sample stream and only ever
// writes to the terminal. Displayed progress is monotonic: samples
// carry absolute byte counts and stale ones are ignored.
type ProgressReporter struct {
	out   io.Writer
	label string // "Sending" or "Receiving"

	bar        *progressbar.ProgressBar
	total      int64
	current    int64
	lastRender time.Time

	closing sync.Once
}

// NewProgressReporter creates a reporter writing to out.
func NewProgressReporter(label string, out io.Writer) *ProgressReporter {
	return &ProgressReporter{out: out, label: label}
}

// Run consumes samples until the stream closes. It never blocks the
// producer: the controller feeds it over a buffered channel with a
// drop-stale policy.
func (r *ProgressReporter) Run(samples <-chan engine.ProgressSample) {
	for s := range samples {
		r.observe(s)
	}
}

// Current reports the authoritative displayed byte count.
func (r *ProgressReporter) Current() int64 {
	return r.current
}

func (r *ProgressReporter) observe(s engine.ProgressSample) {
	// Stale or duplicate sample: the absolute count already displayed
	// is newer, so there is nothing to render.
	if s.Bytes < r.current {
		return
	}
	r.current = s.Bytes

	if r.bar == nil {
		r.initBar(s.Total)
	}

	now := time.Now()
	complete := s.Total > 0 && s.Bytes >= s.Total
	if !complete && now.Sub(r.lastRender) < renderInterval {
		return
	}
	r.lastRender = now

	_ = r.bar.Set64(s.Bytes)
}

// initBar builds the bar lazily on the first sample. A zero total means
// the size is unknown (directory streams) and the bar runs as a
// spinner.
func (r *ProgressReporter) initBar(total int64) {
	r.total = total
	max := total
	if max <= 0 {
		max = -1
	}

	r.bar = progressbar.NewOptions64(max,
		progressbar.OptionSetDescription(r.label),
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(renderInterval),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
}

// Finish renders the closing frame exactly once: a full bar on success,
// a frozen partial bar otherwise. Safe to call even if no sample ever
// arrived.
func (r *ProgressReporter) Finish(outcome engine.Outcome) {
	r.closing.Do(func() {
		if r.bar == nil {
			return
		}
		if outcome == engine.OutcomeSuccess {
			_ = r.bar.Finish()
		} else {
			_ = r.bar.Exit()
		}
		fmt.Fprintln(r.out)
	})
}
