// Package heartbeats tracks when each registered component last reported in.
package heartbeats

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/elliotchance/orderedmap/v2"
)

var (
	// ErrNotFound is returned when a heartbeat name was never registered.
	ErrNotFound = errors.New("heartbeat not found")
	// ErrDuplicate is returned when a heartbeat name is registered twice.
	ErrDuplicate = errors.New("heartbeat already registered")
)

// Heartbeat is the liveness record of a single component.
type Heartbeat struct {
	Name     string
	Critical bool

	lastSet time.Time
}

// LastSet returns the time of the last observation, zero if never set.
func (h Heartbeat) LastSet() time.Time {
	return h.lastSet
}

// Registry holds the registered heartbeats in registration order.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	heartbeats *orderedmap.OrderedMap[string, *Heartbeat]
	now        func() time.Time
}

// NewRegistry creates a registry from the configured heartbeats. A name
// appearing twice makes construction fail with ErrDuplicate.
func NewRegistry(configs []models.HeartbeatConfig, now func() time.Time) (*Registry, error) {
	if now == nil {
		now = time.Now
	}
	r := &Registry{
		heartbeats: orderedmap.NewOrderedMap[string, *Heartbeat](),
		now:        now,
	}
	for _, c := range configs {
		if err := r.Register(c.Name, c.IsCritical()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a heartbeat that has never been seen.
func (r *Registry) Register(name string, critical bool) error {
	if name == "" {
		return errors.New("heartbeat name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.heartbeats.Get(name); exists {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	r.heartbeats.Set(name, &Heartbeat{Name: name, Critical: critical})
	return nil
}

// Set records the current time as the last observation of name. The stored
// time never moves backwards.
func (r *Registry) Set(name string) error {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	hb, ok := r.heartbeats.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if now.After(hb.lastSet) {
		hb.lastSet = now
	}
	return nil
}

// Get returns a copy of the named heartbeat.
func (r *Registry) Get(name string) (Heartbeat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hb, ok := r.heartbeats.Get(name)
	if !ok {
		return Heartbeat{}, false
	}
	return *hb, true
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Len returns the number of registered heartbeats.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.heartbeats.Len()
}

// Values returns copies of all heartbeats in registration order.
func (r *Registry) Values() []Heartbeat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	values := make([]Heartbeat, 0, r.heartbeats.Len())
	for el := r.heartbeats.Front(); el != nil; el = el.Next() {
		values = append(values, *el.Value)
	}
	return values
}

// Seen reports whether name was set less than threshold ago.
func (r *Registry) Seen(name string, threshold time.Duration) (bool, error) {
	hb, ok := r.Get(name)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return fresh(hb.lastSet, r.now(), threshold), nil
}

// SeenSince maps every heartbeat, in registration order, to whether it was
// set less than threshold ago.
func (r *Registry) SeenSince(threshold time.Duration) *orderedmap.OrderedMap[string, bool] {
	now := r.now()
	seen := orderedmap.NewOrderedMap[string, bool]()
	for _, hb := range r.Values() {
		seen.Set(hb.Name, fresh(hb.lastSet, now, threshold))
	}
	return seen
}

func fresh(lastSet, now time.Time, threshold time.Duration) bool {
	return !lastSet.IsZero() && now.Sub(lastSet) < threshold
}
