package batch

import (
	"sync"
	"time"
)

// ProgressFunc is invoked at most once per completed combination, per §4.4.
type ProgressFunc func(completed, total int, currentSymbol string, currentParams map[string]any)

// progressReporter throttles ProgressFunc invocations so a fast worker pool
// does not flood a slow callback (e.g. one that pushes over a websocket),
// mirroring the teacher's queue.ProgressReporter throttling shape. 100%
// completion always bypasses the throttle so callers never miss the final
// update.
type progressReporter struct {
	fn          ProgressFunc
	total       int
	minInterval time.Duration

	mu         sync.Mutex
	completed  int
	lastReport time.Time
}

func newProgressReporter(fn ProgressFunc, total int) *progressReporter {
	return &progressReporter{fn: fn, total: total, minInterval: 100 * time.Millisecond}
}

// Report records one completed combination and invokes fn if enough time
// has passed since the last report, or if this is the final combination.
func (p *progressReporter) Report(symbol string, combo map[string]any) {
	if p.fn == nil {
		return
	}

	p.mu.Lock()
	p.completed++
	completed := p.completed
	now := time.Now()
	final := completed == p.total
	if !final && now.Sub(p.lastReport) < p.minInterval {
		p.mu.Unlock()
		return
	}
	p.lastReport = now
	p.mu.Unlock()

	p.fn(completed, p.total, symbol, combo)
}
