package services

import (
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// EmissionThrottle records the last successful emission per downstream
// target. Each target has a single writer; readers see the latest value.
type EmissionThrottle struct {
	lastEmitted cmap.ConcurrentMap[string, time.Time]
}

// NewEmissionThrottle creates an empty throttle.
func NewEmissionThrottle() *EmissionThrottle {
	return &EmissionThrottle{lastEmitted: cmap.New[time.Time]()}
}

// LastEmitted returns the last successful emission to target, zero if none.
func (e *EmissionThrottle) LastEmitted(target string) time.Time {
	t, _ := e.lastEmitted.Get(target)
	return t
}

// Allow reports whether at least interval has passed since the last
// emission to target.
func (e *EmissionThrottle) Allow(target string, now time.Time, interval time.Duration) bool {
	last, ok := e.lastEmitted.Get(target)
	if !ok || last.IsZero() {
		return true
	}
	return now.Sub(last) >= interval
}

// Record stores a successful emission to target.
func (e *EmissionThrottle) Record(target string, at time.Time) {
	e.lastEmitted.Set(target, at)
}
