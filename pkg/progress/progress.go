// Package progress counts finished candidates against a known total and
// forwards every change to a display.
package progress

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Display receives (completed, total) updates. Implementations must be safe
// for concurrent use and must not block for long.
type Display interface {
	Update(completed, total int64)
	Close() error
}

// State is a point-in-time view of the counter
type State struct {
	StartedAt time.Time
	Completed int64
	Total     int64
}

// Done reports whether every candidate has been accounted for
func (s State) Done() bool {
	return s.Completed == s.Total
}

// Reporter tracks how many candidates have finished
type Reporter struct {
	display   Display
	startedAt time.Time
	total     int64
	completed atomic.Int64
}

// New creates a reporter for total candidates. A nil display discards updates.
func New(total int64, display Display) *Reporter {
	if total < 0 {
		total = 0
	}
	if display == nil {
		display = NopDisplay{}
	}
	return &Reporter{
		display:   display,
		startedAt: time.Now(),
		total:     total,
	}
}

// Advance marks one more candidate as finished and returns the new count.
// It never moves the counter past the total; extra calls report false.
func (r *Reporter) Advance() (int64, bool) {
	for {
		cur := r.completed.Load()
		if cur >= r.total {
			return cur, false
		}
		if r.completed.CompareAndSwap(cur, cur+1) {
			r.display.Update(cur+1, r.total)
			return cur + 1, true
		}
	}
}

// State returns the current counter values
func (r *Reporter) State() State {
	return State{
		StartedAt: r.startedAt,
		Completed: r.completed.Load(),
		Total:     r.total,
	}
}

// Close finishes the display
func (r *Reporter) Close() error {
	return r.display.Close()
}

// NopDisplay drops every update
type NopDisplay struct{}

// Update does nothing
func (NopDisplay) Update(completed, total int64) {}

// Close does nothing
func (NopDisplay) Close() error { return nil }

// BarDisplay renders a terminal progress bar
type BarDisplay struct {
	bar *progressbar.ProgressBar
}

// NewBarDisplay creates a bar for total items written to w. Rendering is
// throttled, so one update per candidate is cheap.
func NewBarDisplay(w io.Writer, total int64, description string) *BarDisplay {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &BarDisplay{bar: bar}
}

// Update advances the bar by one. Concurrent updates may arrive out of
// order, so the bar counts calls instead of trusting completed.
func (d *BarDisplay) Update(completed, total int64) {
	_ = d.bar.Add64(1)
}

// Close completes the bar and clears it from the terminal
func (d *BarDisplay) Close() error {
	return d.bar.Finish()
}
