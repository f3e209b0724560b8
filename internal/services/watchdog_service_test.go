package services_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/mocks"
	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/benmeehan/heartbeat-agent/internal/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var watchdogTargets = []models.NetworkTarget{
	{Label: "lco", Host: "10.8.8.1"},
	{Label: "internet", Host: "8.8.8.8:53"},
}

// TestNetworkWatchdog_InitiallyReachable tests that targets are reachable before the first cycle.
func TestNetworkWatchdog_InitiallyReachable(t *testing.T) {
	w := services.NewNetworkWatchdogService(watchdogTargets, time.Second, 3, &mocks.MockProber{}, nil, zerolog.Nop())

	assert.Equal(t, map[string]bool{"lco": true, "internet": true}, w.Status())
	assert.Empty(t, w.TrippedTargets())
}

// TestNetworkWatchdog_TripsAfterThresholdAndResets tests the consecutive-failure debounce.
func TestNetworkWatchdog_TripsAfterThresholdAndResets(t *testing.T) {
	// Setup
	prober := &mocks.MockProber{}
	prober.On("Reachable", mock.Anything, "8.8.8.8:53").Return(true)
	prober.On("Reachable", mock.Anything, "10.8.8.1").Return(false).Times(3)
	prober.On("Reachable", mock.Anything, "10.8.8.1").Return(true).Once()

	w := services.NewNetworkWatchdogService(watchdogTargets, time.Second, 3, prober, nil, zerolog.Nop())
	ctx := context.Background()

	// Execute and assert
	w.Poll(ctx)
	w.Poll(ctx)
	assert.True(t, w.Status()["lco"], "two failures must not trip")

	w.Poll(ctx)
	assert.False(t, w.Status()["lco"])
	assert.True(t, w.Status()["internet"])
	assert.Equal(t, []string{"lco"}, w.TrippedTargets())

	w.Poll(ctx)
	assert.True(t, w.Status()["lco"], "a single success resets the trigger")
	assert.Empty(t, w.TrippedTargets())

	prober.AssertExpectations(t)
}

// TestNetworkWatchdog_CancelledCycleLeavesStateUntouched tests that an abandoned cycle does not count.
func TestNetworkWatchdog_CancelledCycleLeavesStateUntouched(t *testing.T) {
	prober := &mocks.MockProber{}
	prober.On("Reachable", mock.Anything, mock.Anything).Return(false)

	w := services.NewNetworkWatchdogService(watchdogTargets[:1], time.Second, 1, prober, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Poll(ctx)

	assert.True(t, w.Status()["lco"])

	w.Poll(context.Background())
	assert.False(t, w.Status()["lco"])
}

type panickingProber struct{}

func (panickingProber) Reachable(context.Context, string) bool { panic("boom") }

// TestNetworkWatchdog_PanicCountsAsFailure tests that a panicking probe is treated as unreachable.
func TestNetworkWatchdog_PanicCountsAsFailure(t *testing.T) {
	w := services.NewNetworkWatchdogService(watchdogTargets[:1], time.Second, 1, panickingProber{}, nil, zerolog.Nop())

	assert.NotPanics(t, func() { w.Poll(context.Background()) })
	assert.Equal(t, []string{"lco"}, w.TrippedTargets())
}

type countingProber struct {
	calls atomic.Int32
}

func (p *countingProber) Reachable(context.Context, string) bool {
	p.calls.Add(1)
	return true
}

// TestNetworkWatchdog_StartStop tests the probing loop lifecycle.
func TestNetworkWatchdog_StartStop(t *testing.T) {
	prober := &countingProber{}
	w := services.NewNetworkWatchdogService(watchdogTargets, 20*time.Millisecond, 3, prober, nil, zerolog.Nop())

	require.NoError(t, w.Start())
	assert.EqualError(t, w.Start(), "network watchdog service is already running")

	assert.Eventually(t, func() bool { return prober.calls.Load() >= 4 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.EqualError(t, w.Stop(), "network watchdog service is not running")
}
