package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/constants"
	"github.com/benmeehan/heartbeat-agent/internal/metrics"
	http_utils "github.com/benmeehan/heartbeat-agent/pkg/httpUtils"
	"github.com/rs/zerolog"
)

// HeartbeatService sends periodic liveness pings to the outside monitor.
type HeartbeatService struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	Throttle *EmissionThrottle
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger

	now    func() time.Time
	lastOK atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService.
func NewHeartbeatService(url string, interval, timeout time.Duration, throttle *EmissionThrottle,
	m *metrics.Metrics, now func() time.Time, logger zerolog.Logger) *HeartbeatService {

	if timeout <= 0 {
		timeout = constants.DefaultOutsideTimeout
	}
	if now == nil {
		now = time.Now
	}

	return &HeartbeatService{
		URL:      url,
		Interval: interval,
		Timeout:  timeout,
		Throttle: throttle,
		Metrics:  m,
		Logger:   logger,
		now:      now,
	}
}

// Start launches the heartbeat loop in a separate goroutine. Without a URL
// it only logs a warning.
func (h *HeartbeatService) Start() error {
	if h.URL == "" {
		h.Logger.Warn().Msg("No outside URL defined. Will not emit heartbeats to the outside world")
		return nil
	}
	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}
	if h.Interval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop()
	}()

	h.Logger.Info().Str("url", h.URL).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	if h.URL == "" {
		return nil
	}
	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

// runHeartbeatLoop emits once immediately and then at the configured interval.
func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	h.Emit(h.ctx)

	for {
		select {
		case <-ticker.C:
			h.Emit(h.ctx)
		case <-h.ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

// Emit sends a single heartbeat. The HTTP client lives only for this call.
func (h *HeartbeatService) Emit(ctx context.Context) error {
	client := &http.Client{Timeout: h.Timeout}
	defer client.CloseIdleConnections()

	err := http_utils.GetOK(ctx, client, h.URL)
	h.Metrics.ObserveEmission(constants.TargetOutside, err)
	h.lastOK.Store(err == nil)
	if err != nil {
		h.Logger.Error().Err(err).Str("url", h.URL).Msg("Error emitting heartbeat to the outside world")
		return err
	}

	h.Throttle.Record(constants.TargetOutside, h.now())
	h.Logger.Debug().Str("url", h.URL).Msg("Emitted heartbeat to the outside world")
	return nil
}

// LastSuccess returns the time of the last successful heartbeat, zero if none.
func (h *HeartbeatService) LastSuccess() time.Time {
	return h.Throttle.LastEmitted(constants.TargetOutside)
}

// Healthy reports whether the most recent heartbeat succeeded.
func (h *HeartbeatService) Healthy() bool {
	return h.lastOK.Load()
}
