// Package trigger debounces a stream of pass/fail observations.
package trigger

import "sync"

// Trigger trips after a number of consecutive failed observations and
// rearms fully on the first successful one.
type Trigger struct {
	mu        sync.Mutex
	threshold int
	count     int
}

// New creates a Trigger that trips after threshold consecutive failures.
// Thresholds below one are treated as one.
func New(threshold int) *Trigger {
	if threshold < 1 {
		threshold = 1
	}
	return &Trigger{threshold: threshold}
}

// Observe records the outcome of one check.
func (t *Trigger) Observe(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ok {
		t.count = 0
		return
	}
	t.count++
}

// IsTripped reports whether the failure threshold has been reached.
func (t *Trigger) IsTripped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count >= t.threshold
}

// Count returns the current number of consecutive failures.
func (t *Trigger) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Threshold returns the configured failure threshold.
func (t *Trigger) Threshold() int {
	return t.threshold
}

// Reset clears the failure count.
func (t *Trigger) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = 0
}
