package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports how far an embedding run has got. It is safe for
// use from the worker goroutines of a run.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	embedded       int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a tracker for a run over total documents that
// prints a line every reportInterval documents.
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: max(reportInterval, 1),
	}
}

// Start resets the counters and starts the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.embedded = 0
	p.failed = 0
	p.lastReported = 0
}

// Record counts one finished document; a non-nil err counts it as failed.
func (p *ProgressTracker) Record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	if err != nil {
		p.failed++
	} else {
		p.embedded++
	}

	if done := p.done(); done-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = done
	}
}

// Counts returns the number of embedded and failed documents so far.
func (p *ProgressTracker) Counts() (embedded, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.embedded, p.failed
}

// Finish prints the final line. Documents never attempted (after
// cancellation) are not counted as done.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

func (p *ProgressTracker) done() int {
	return p.embedded + p.failed
}

// eta extrapolates the remaining time from the average so far. Must be
// called with lock held.
func (p *ProgressTracker) eta(elapsed time.Duration) time.Duration {
	done := p.done()
	if done == 0 || done >= p.total {
		return 0
	}
	perDoc := elapsed / time.Duration(done)
	return perDoc * time.Duration(p.total-done)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime)
	done := p.done()

	percentage := 100.0
	if p.total > 0 {
		percentage = float64(done) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rEmbedded %d/%d documents (%.1f%%)", p.embedded, p.total, percentage)
	if p.failed > 0 {
		fmt.Fprintf(p.writer, ", %d failed", p.failed)
	}
	if eta := p.eta(elapsed); eta > 0 {
		fmt.Fprintf(p.writer, ", about %v left", eta.Round(time.Second))
	}
}
