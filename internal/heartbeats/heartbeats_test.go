package heartbeats_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/heartbeats"
	"github.com/benmeehan/heartbeat-agent/internal/mocks"
	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func newRegistry(t *testing.T, clock *mocks.Clock) *heartbeats.Registry {
	t.Helper()
	r, err := heartbeats.NewRegistry([]models.HeartbeatConfig{
		{Name: "dome"},
		{Name: "sensor", Critical: boolPtr(false)},
		{Name: "enclosure", Critical: boolPtr(true)},
	}, clock.Now)
	require.NoError(t, err)
	return r
}

func TestNewRegistry_PreservesOrderAndCriticality(t *testing.T) {
	clock := mocks.NewClock(time.Unix(1640198400, 0))
	r := newRegistry(t, clock)

	values := r.Values()
	require.Len(t, values, 3)
	assert.Equal(t, "dome", values[0].Name)
	assert.True(t, values[0].Critical)
	assert.Equal(t, "sensor", values[1].Name)
	assert.False(t, values[1].Critical)
	assert.Equal(t, "enclosure", values[2].Name)
	assert.Equal(t, []string{"dome", "sensor", "enclosure"}, r.SeenSince(30*time.Second).Keys())
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := heartbeats.NewRegistry([]models.HeartbeatConfig{{Name: "dome"}, {Name: "dome"}}, nil)
	assert.True(t, errors.Is(err, heartbeats.ErrDuplicate))
}

func TestRegistry_SetUnknown(t *testing.T) {
	clock := mocks.NewClock(time.Unix(1640198400, 0))
	r := newRegistry(t, clock)

	err := r.Set("unknown")
	assert.True(t, errors.Is(err, heartbeats.ErrNotFound))
	assert.False(t, r.Contains("unknown"))
	assert.Equal(t, 3, r.Len())

	for _, hb := range r.Values() {
		assert.True(t, hb.LastSet().IsZero())
	}
}

func TestRegistry_NeverSetIsNotSeen(t *testing.T) {
	clock := mocks.NewClock(time.Unix(1640198400, 0))
	r := newRegistry(t, clock)

	for _, threshold := range []time.Duration{time.Nanosecond, time.Second, time.Hour} {
		seen := r.SeenSince(threshold)
		for el := seen.Front(); el != nil; el = el.Next() {
			assert.False(t, el.Value, el.Key)
		}
	}
}

func TestRegistry_SeenUntilThreshold(t *testing.T) {
	clock := mocks.NewClock(time.Unix(1640198400, 0))
	r := newRegistry(t, clock)

	require.NoError(t, r.Set("dome"))

	seen, err := r.Seen("dome", time.Nanosecond)
	require.NoError(t, err)
	assert.True(t, seen)

	clock.Advance(29 * time.Second)
	seen, _ = r.Seen("dome", 30*time.Second)
	assert.True(t, seen)

	clock.Advance(time.Second)
	seen, _ = r.Seen("dome", 30*time.Second)
	assert.False(t, seen)

	_, err = r.Seen("missing", 30*time.Second)
	assert.True(t, errors.Is(err, heartbeats.ErrNotFound))
}

func TestRegistry_SeenSinceScenario(t *testing.T) {
	clock := mocks.NewClock(time.Unix(1640198400, 0))
	r, err := heartbeats.NewRegistry([]models.HeartbeatConfig{
		{Name: "dome", Critical: boolPtr(true)},
		{Name: "sensor", Critical: boolPtr(false)},
	}, clock.Now)
	require.NoError(t, err)

	require.NoError(t, r.Set("dome"))
	seen := r.SeenSince(30 * time.Second)

	dome, _ := seen.Get("dome")
	sensor, _ := seen.Get("sensor")
	assert.True(t, dome)
	assert.False(t, sensor)
}

func TestRegistry_LastSetNeverDecreases(t *testing.T) {
	start := time.Unix(1640198400, 0)
	clock := mocks.NewClock(start)
	r := newRegistry(t, clock)

	require.NoError(t, r.Set("dome"))
	clock.Set(start.Add(-time.Minute))
	require.NoError(t, r.Set("dome"))

	hb, ok := r.Get("dome")
	require.True(t, ok)
	assert.Equal(t, start, hb.LastSet())
}

func TestRegistry_ConcurrentSet(t *testing.T) {
	r := newRegistry(t, mocks.NewClock(time.Now()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = r.Set("dome") }()
		go func() { defer wg.Done(); _ = r.Set("sensor") }()
	}
	wg.Wait()

	seen := r.SeenSince(time.Minute)
	dome, _ := seen.Get("dome")
	assert.True(t, dome)
}
