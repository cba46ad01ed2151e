// Package throughput estimates the frame rate of the annotation loop.
package throughput

import (
	"sync"
	"time"
)

// DefaultBatch is the number of frames per measurement.
const DefaultBatch = 10

// Estimator counts frames and reports count/elapsed each time a batch
// completes (or, when an interval is set, once that much time has passed).
// Only the producer calls Tick; Rate may be read from any goroutine.
type Estimator struct {
	batch    int
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	count  int
	anchor time.Time
	rate   float64
}

// New returns an estimator on the wall clock
func New(batch int, interval time.Duration) *Estimator {
	return NewWithClock(batch, interval, time.Now)
}

// NewWithClock returns an estimator reading time from now
func NewWithClock(batch int, interval time.Duration, now func() time.Time) *Estimator {
	if batch <= 0 {
		batch = DefaultBatch
	}
	if now == nil {
		now = time.Now
	}
	return &Estimator{
		batch:    batch,
		interval: interval,
		now:      now,
		anchor:   now(),
	}
}

// Tick records one processed frame. It returns true when a new rate was
// reported. A window with zero or negative elapsed time keeps the previous
// rate; the counter and anchor are reset either way.
func (e *Estimator) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.count++
	now := e.now()
	elapsed := now.Sub(e.anchor)

	if e.count < e.batch && (e.interval <= 0 || elapsed < e.interval) {
		return false
	}

	updated := false
	if elapsed > 0 {
		e.rate = float64(e.count) / elapsed.Seconds()
		updated = true
	}
	e.count = 0
	e.anchor = now
	return updated
}

// Rate returns the last reported frames-per-second value, 0 before the
// first report.
func (e *Estimator) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// Reset clears the rate and starts a new window at the current time
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count = 0
	e.rate = 0
	e.anchor = e.now()
}
