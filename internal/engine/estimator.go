package engine

import (
	"sync"
	"time"
)

// defaultEstimatorWindow bounds how far back observations contribute
// to the throughput estimate, so the ETA tracks the current rate
// rather than the whole-job average.
const defaultEstimatorWindow = 30 * time.Second

type sample struct {
	at      time.Time
	current int
}

// Estimator derives an ETA from a sliding window of progress
// observations. It carries no control logic; it only feeds progress
// events.
type Estimator struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	samples []sample
}

// EstimatorOption configures an Estimator.
type EstimatorOption func(*Estimator)

// WithWindow overrides the sliding window length.
func WithWindow(window time.Duration) EstimatorOption {
	return func(e *Estimator) {
		e.window = window
	}
}

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) EstimatorOption {
	return func(e *Estimator) {
		e.now = now
	}
}

// NewEstimator creates an estimator with the default window.
func NewEstimator(opts ...EstimatorOption) *Estimator {
	e := &Estimator{
		window: defaultEstimatorWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Observe records the cumulative item count at the current time.
func (e *Estimator) Observe(current int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.samples = append(e.samples, sample{at: now, current: current})
	e.trimLocked(now)
}

// trimLocked drops samples older than the window, always keeping at
// least two so a rate can be computed.
func (e *Estimator) trimLocked(now time.Time) {
	cutoff := now.Add(-e.window)
	for len(e.samples) > 2 && e.samples[0].at.Before(cutoff) {
		e.samples = e.samples[1:]
	}
}

// ETA estimates the remaining runtime to reach total. It returns false
// until enough observations exist to compute a positive rate.
func (e *Estimator) ETA(total int) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.samples) < 2 {
		return 0, false
	}
	first := e.samples[0]
	last := e.samples[len(e.samples)-1]

	elapsed := last.at.Sub(first.at)
	processed := last.current - first.current
	if elapsed <= 0 || processed <= 0 {
		return 0, false
	}

	remaining := total - last.current
	if remaining <= 0 {
		return 0, true
	}

	perItem := elapsed / time.Duration(processed)
	return time.Duration(remaining) * perItem, true
}

// Reset clears all observations.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = nil
}
