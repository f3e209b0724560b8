package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/constants"
	"github.com/benmeehan/heartbeat-agent/internal/mocks"
	"github.com/benmeehan/heartbeat-agent/internal/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHeartbeatService_Emit_Success tests that a successful ping is recorded.
func TestHeartbeatService_Emit_Success(t *testing.T) {
	// Setup
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/heartbeat", r.URL.Path)
		w.Write([]byte(`{"message": "Heartbeat received."}`))
	}))
	defer srv.Close()

	clock := mocks.NewClock(time.Unix(1640198400, 0))
	throttle := services.NewEmissionThrottle()
	h := services.NewHeartbeatService(srv.URL+"/heartbeat", time.Second, time.Second, throttle, nil, clock.Now, zerolog.Nop())

	// Execute
	err := h.Emit(context.Background())

	// Assert
	require.NoError(t, err)
	assert.True(t, h.Healthy())
	assert.Equal(t, clock.Now(), h.LastSuccess())
	assert.Equal(t, clock.Now(), throttle.LastEmitted(constants.TargetOutside))
}

// TestHeartbeatService_Emit_Failure tests that a failed ping is not recorded.
func TestHeartbeatService_Emit_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	throttle := services.NewEmissionThrottle()
	h := services.NewHeartbeatService(srv.URL, time.Second, time.Second, throttle, nil, nil, zerolog.Nop())

	err := h.Emit(context.Background())

	assert.Error(t, err)
	assert.False(t, h.Healthy())
	assert.True(t, h.LastSuccess().IsZero())
}

// TestHeartbeatService_Emit_Timeout tests that a hung monitor does not block past the timeout.
func TestHeartbeatService_Emit_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	h := services.NewHeartbeatService(srv.URL, time.Second, 50*time.Millisecond, services.NewEmissionThrottle(), nil, nil, zerolog.Nop())

	start := time.Now()
	err := h.Emit(context.Background())

	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

// TestHeartbeatService_StartStop tests the loop lifecycle.
func TestHeartbeatService_StartStop(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	h := services.NewHeartbeatService(srv.URL, 20*time.Millisecond, time.Second, services.NewEmissionThrottle(), nil, nil, zerolog.Nop())

	require.NoError(t, h.Start())
	assert.EqualError(t, h.Start(), "heartbeat service is already running")

	assert.Eventually(t, func() bool { return hits.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.Stop())
	assert.EqualError(t, h.Stop(), "heartbeat service is not running")
}

// TestHeartbeatService_NoURL tests that the service is inert without a URL.
func TestHeartbeatService_NoURL(t *testing.T) {
	h := services.NewHeartbeatService("", time.Second, time.Second, services.NewEmissionThrottle(), nil, nil, zerolog.Nop())

	assert.NoError(t, h.Start())
	assert.NoError(t, h.Stop())
}
