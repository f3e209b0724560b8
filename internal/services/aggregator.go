package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/constants"
	"github.com/benmeehan/heartbeat-agent/internal/heartbeats"
	"github.com/benmeehan/heartbeat-agent/internal/metrics"
	"github.com/rs/zerolog"
)

// Commander sends a command to another actor and waits for it to complete.
type Commander interface {
	SendCommand(ctx context.Context, actor, command string) error
}

// Outcome describes what a single aggregator evaluation did.
type Outcome string

const (
	OutcomeEmitted        Outcome = "emitted"
	OutcomeCriticalStale  Outcome = "critical_stale"
	OutcomeNetworkDown    Outcome = "network_down"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeEmissionFailed Outcome = "emission_failed"
)

// AggregatorConfig holds the aggregator policy.
type AggregatorConfig struct {
	Actor     string        // Downstream actor receiving the heartbeat command
	Timeout   time.Duration // Age after which a heartbeat is stale
	RateLimit time.Duration // Minimum interval between emissions
}

// Aggregator decides whether the component heartbeats, together with the
// network watchdog, justify forwarding a heartbeat to the dome controller.
type Aggregator struct {
	registry  *heartbeats.Registry
	network   NetworkMonitor
	commander Commander
	throttle  *EmissionThrottle
	config    AggregatorConfig
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	// One evaluation at a time so the rate limit holds under concurrent triggers.
	mu sync.Mutex
}

// NewAggregator creates an Aggregator. network may be nil when no watchdog
// is configured.
func NewAggregator(registry *heartbeats.Registry, network NetworkMonitor, commander Commander,
	throttle *EmissionThrottle, config AggregatorConfig, now func() time.Time,
	m *metrics.Metrics, logger zerolog.Logger) *Aggregator {

	if config.Actor == "" {
		config.Actor = constants.DefaultDownstreamActor
	}
	if config.Timeout <= 0 {
		config.Timeout = constants.DefaultTimeout
	}
	if config.RateLimit <= 0 {
		config.RateLimit = constants.DefaultEmitRateLimit
	}
	if now == nil {
		now = time.Now
	}

	return &Aggregator{
		registry:  registry,
		network:   network,
		commander: commander,
		throttle:  throttle,
		config:    config,
		now:       now,
		metrics:   m,
		logger:    logger,
	}
}

// Timeout returns the staleness timeout used by the aggregator.
func (a *Aggregator) Timeout() time.Duration {
	return a.config.Timeout
}

// Evaluate runs one aggregation cycle. The returned error is non-nil only
// when the downstream command was sent and failed.
func (a *Aggregator) Evaluate(ctx context.Context) (Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := a.registry.SeenSince(a.config.Timeout)
	for el := seen.Front(); el != nil; el = el.Next() {
		a.metrics.SetHeartbeatCurrent(el.Key, el.Value)
	}

	for el := seen.Front(); el != nil; el = el.Next() {
		if el.Value {
			continue
		}
		hb, _ := a.registry.Get(el.Key)
		if hb.Critical {
			a.logger.Warn().Str("heartbeat", el.Key).Msg("Critical heartbeat not seen, not emitting dome heartbeat")
			return OutcomeCriticalStale, nil
		}
		a.logger.Debug().Str("heartbeat", el.Key).Msg("Non-critical heartbeat not seen")
	}

	if a.network != nil {
		if tripped := a.network.TrippedTargets(); len(tripped) > 0 {
			a.logger.Warn().Strs("targets", tripped).Msg("Network is down, not emitting dome heartbeat")
			return OutcomeNetworkDown, nil
		}
	}

	if !a.throttle.Allow(constants.TargetDome, a.now(), a.config.RateLimit) {
		return OutcomeRateLimited, nil
	}

	a.logger.Info().Str("actor", a.config.Actor).Msg("Emitting dome heartbeat")
	err := a.commander.SendCommand(ctx, a.config.Actor, constants.CommandHeartbeat)
	a.metrics.ObserveEmission(constants.TargetDome, err)
	if err != nil {
		a.logger.Error().Err(err).Str("actor", a.config.Actor).Msg("Possible error emitting dome heartbeat")
		return OutcomeEmissionFailed, err
	}

	a.throttle.Record(constants.TargetDome, a.now())
	return OutcomeEmitted, nil
}

// AggregatorService re-evaluates the aggregator on a fixed interval so the
// dome heartbeat keeps flowing between set commands.
type AggregatorService struct {
	aggregator *Aggregator
	interval   time.Duration
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAggregatorService creates the periodic re-check loop.
func NewAggregatorService(aggregator *Aggregator, interval time.Duration, logger zerolog.Logger) *AggregatorService {
	return &AggregatorService{
		aggregator: aggregator,
		interval:   interval,
		logger:     logger,
	}
}

// Start launches the re-check loop in a separate goroutine.
func (s *AggregatorService) Start() error {
	if s.ctx != nil {
		s.logger.Warn().Msg("AggregatorService is already running")
		return errors.New("aggregator service is already running")
	}
	if s.interval <= 0 {
		return errors.New("aggregator re-check interval must be positive")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runRecheckLoop()
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("AggregatorService started successfully")
	return nil
}

// Stop gracefully stops the re-check loop.
func (s *AggregatorService) Stop() error {
	if s.ctx == nil {
		s.logger.Warn().Msg("AggregatorService is not running")
		return errors.New("aggregator service is not running")
	}

	s.cancel()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.logger.Info().Msg("AggregatorService stopped successfully")
	return nil
}

func (s *AggregatorService) runRecheckLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Failures are already logged by the aggregator.
			_, _ = s.aggregator.Evaluate(s.ctx)
		case <-s.ctx.Done():
			s.logger.Info().Msg("AggregatorService stopping gracefully")
			return
		}
	}
}
