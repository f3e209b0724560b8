package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/metrics"
	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/benmeehan/heartbeat-agent/internal/trigger"
	"github.com/benmeehan/heartbeat-agent/internal/utils"
	"github.com/benmeehan/heartbeat-agent/pkg/probe"
	"github.com/rs/zerolog"
)

// NetworkMonitor exposes the debounced reachability of the watchdog targets.
type NetworkMonitor interface {
	// Status maps every target label to whether it is considered reachable.
	Status() map[string]bool
	// TrippedTargets lists the labels currently considered down.
	TrippedTargets() []string
}

// NetworkWatchdogService periodically probes the configured targets and
// feeds each result into that target's Trigger.
type NetworkWatchdogService struct {
	targets  []models.NetworkTarget
	interval time.Duration
	prober   probe.Prober
	triggers map[string]*trigger.Trigger
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	// Replaced as a whole at the end of every cycle.
	snapshot atomic.Pointer[map[string]bool]

	workerPool *utils.WorkerPool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewNetworkWatchdogService creates a watchdog whose targets trip after
// threshold consecutive failed probes. Until the first cycle completes every
// target is reported reachable.
func NewNetworkWatchdogService(targets []models.NetworkTarget, interval time.Duration, threshold int,
	prober probe.Prober, m *metrics.Metrics, logger zerolog.Logger) *NetworkWatchdogService {

	triggers := make(map[string]*trigger.Trigger, len(targets))
	initial := make(map[string]bool, len(targets))
	for _, target := range targets {
		triggers[target.Label] = trigger.New(threshold)
		initial[target.Label] = true
	}

	w := &NetworkWatchdogService{
		targets:  targets,
		interval: interval,
		prober:   prober,
		triggers: triggers,
		metrics:  m,
		logger:   logger,
	}
	w.snapshot.Store(&initial)
	return w
}

// Start launches the probing loop in a separate goroutine.
func (w *NetworkWatchdogService) Start() error {
	if w.ctx != nil {
		w.logger.Warn().Msg("NetworkWatchdogService is already running")
		return errors.New("network watchdog service is already running")
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.workerPool = utils.NewWorkerPool(len(w.targets))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runWatchdogLoop()
	}()

	w.logger.Info().Int("targets", len(w.targets)).Dur("interval", w.interval).Msg("NetworkWatchdogService started successfully")
	return nil
}

// Stop cancels the loop and waits for the current cycle to be abandoned.
func (w *NetworkWatchdogService) Stop() error {
	if w.ctx == nil {
		w.logger.Warn().Msg("NetworkWatchdogService is not running")
		return errors.New("network watchdog service is not running")
	}

	w.cancel()
	w.wg.Wait()
	w.workerPool.Shutdown()

	w.ctx = nil
	w.cancel = nil
	w.workerPool = nil

	w.logger.Info().Msg("NetworkWatchdogService stopped successfully")
	return nil
}

func (w *NetworkWatchdogService) runWatchdogLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Poll(w.ctx)

	for {
		select {
		case <-ticker.C:
			w.Poll(w.ctx)
		case <-w.ctx.Done():
			w.logger.Info().Msg("NetworkWatchdogService stopping gracefully")
			return
		}
	}
}

// Poll runs one probing cycle. A cycle interrupted by ctx leaves the
// triggers and the published snapshot untouched.
func (w *NetworkWatchdogService) Poll(ctx context.Context) {
	results := make([]bool, len(w.targets))
	tasks := make([]func(), len(w.targets))
	for i, target := range w.targets {
		i, target := i, target
		tasks[i] = func() {
			results[i] = w.probe(ctx, target)
		}
	}

	if w.workerPool != nil {
		w.workerPool.RunAll(tasks...)
	} else {
		for _, task := range tasks {
			task()
		}
	}

	if ctx.Err() != nil {
		w.logger.Debug().Msg("Probe cycle abandoned")
		return
	}

	previous := w.Status()
	next := make(map[string]bool, len(w.targets))
	for i, target := range w.targets {
		tr := w.triggers[target.Label]
		tr.Observe(results[i])
		reachable := !tr.IsTripped()
		next[target.Label] = reachable

		w.metrics.SetNetworkReachable(target.Label, reachable)

		switch {
		case previous[target.Label] && !reachable:
			w.logger.Warn().Str("target", target.Label).Int("failures", tr.Count()).Msg("Network target is down")
		case !previous[target.Label] && reachable:
			w.logger.Info().Str("target", target.Label).Msg("Network target is reachable again")
		case !results[i]:
			w.logger.Debug().Str("target", target.Label).Int("failures", tr.Count()).Msg("Probe failed")
		}
	}
	w.snapshot.Store(&next)
}

// probe converts any failure of the prober, including a panic, into an
// unreachable observation.
func (w *NetworkWatchdogService) probe(ctx context.Context, target models.NetworkTarget) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Str("target", target.Label).Interface("panic", r).Msg("Probe panicked")
			ok = false
		}
	}()
	return w.prober.Reachable(ctx, target.Host)
}

// Status returns a copy of the latest complete snapshot.
func (w *NetworkWatchdogService) Status() map[string]bool {
	current := *w.snapshot.Load()
	status := make(map[string]bool, len(current))
	for label, reachable := range current {
		status[label] = reachable
	}
	return status
}

// TrippedTargets lists, sorted, the labels down in the latest snapshot.
func (w *NetworkWatchdogService) TrippedTargets() []string {
	var tripped []string
	for label, reachable := range *w.snapshot.Load() {
		if !reachable {
			tripped = append(tripped, label)
		}
	}
	sort.Strings(tripped)
	return tripped
}
