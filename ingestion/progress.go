package ingestion

import (
	"sync"
	"time"
)

// Progress is a point-in-time snapshot of an ingestion run.
type Progress struct {
	Total     int
	Completed int
	Failed    int
	Elapsed   time.Duration
}

// Percent returns completion as a percentage of total, or 0 for an
// empty run.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed+p.Failed) / float64(p.Total) * 100.0
}

// Done reports whether every item has been accounted for.
func (p Progress) Done() bool {
	return p.Completed+p.Failed >= p.Total
}

// progressTracker accumulates counters for Pipeline.Progress. Callers
// observe state by polling Snapshot; the tracker never pushes updates.
type progressTracker struct {
	mu        sync.Mutex
	total     int
	completed int
	failed    int
	startTime time.Time
}

func newProgressTracker() *progressTracker {
	return &progressTracker{startTime: time.Now()}
}

func (p *progressTracker) addTotal(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total == 0 {
		p.startTime = time.Now()
	}
	p.total += n
}

func (p *progressTracker) complete(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed += n
}

func (p *progressTracker) fail(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed += n
}

func (p *progressTracker) snapshot() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Progress{
		Total:     p.total,
		Completed: p.completed,
		Failed:    p.failed,
		Elapsed:   time.Since(p.startTime),
	}
}
