package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/constants"
	"github.com/benmeehan/heartbeat-agent/internal/hub"
	"github.com/benmeehan/heartbeat-agent/internal/metrics"
	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/benmeehan/heartbeat-agent/internal/notifications"
	"github.com/benmeehan/heartbeat-agent/internal/utils"
	"github.com/rs/zerolog"
)

// EventPublisher receives alert state events. *hub.Hub satisfies it.
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

// AlertConfig holds the alert policy of the monitor.
type AlertConfig struct {
	Site         string        // Site name used in the notifications
	GracePeriod  time.Duration // Silence tolerated before alerting
	PollInterval time.Duration // Interval between evaluations
	Mentions     []string      // Chat mentions attached to the down notification
}

// pendingTransition tracks which notifiers already delivered the
// notification for a transition that has not been committed yet.
type pendingTransition struct {
	active    bool
	delivered map[string]bool
}

// AlertService raises a single "internet down" alert when the site stops
// pinging the monitor and a single "resolved" notification when it returns.
type AlertService struct {
	config    AlertConfig
	notifiers []notifications.Notifier
	events    EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger

	mu        sync.Mutex
	enabled   bool
	active    bool
	lastSeen  time.Time
	startedAt time.Time

	// Serializes evaluations without holding mu during notifier I/O.
	// pending and owed are only touched under evalMu.
	evalMu  sync.Mutex
	pending *pendingTransition
	// Notifiers that announced a transition which was then abandoned. They
	// owe the message matching the current state.
	owed map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAlertService creates an enabled, inactive AlertService whose grace
// period starts now. events may be nil.
func NewAlertService(config AlertConfig, notifiers []notifications.Notifier, events EventPublisher,
	m *metrics.Metrics, now func() time.Time, logger zerolog.Logger) *AlertService {

	if config.Site == "" {
		config.Site = "LCO"
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = constants.DefaultAlertGracePeriod
	}
	if config.PollInterval <= 0 {
		config.PollInterval = constants.DefaultAlertPollInterval
	}
	if now == nil {
		now = time.Now
	}

	return &AlertService{
		config:    config,
		notifiers: notifiers,
		events:    events,
		metrics:   m,
		now:       now,
		logger:    logger,
		enabled:   true,
		startedAt: now(),
	}
}

// Start evaluates once and then every poll interval.
func (a *AlertService) Start() error {
	if a.ctx != nil {
		a.logger.Warn().Msg("AlertService is already running")
		return errors.New("alert service is already running")
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runAlertLoop()
	}()

	a.logger.Info().Dur("grace_period", a.config.GracePeriod).Dur("interval", a.config.PollInterval).Msg("AlertService started successfully")
	return nil
}

// Stop gracefully stops the evaluation loop.
func (a *AlertService) Stop() error {
	if a.ctx == nil {
		a.logger.Warn().Msg("AlertService is not running")
		return errors.New("alert service is not running")
	}

	a.cancel()
	a.wg.Wait()

	a.ctx = nil
	a.cancel = nil

	a.logger.Info().Msg("AlertService stopped successfully")
	return nil
}

func (a *AlertService) runAlertLoop() {
	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	a.evaluateLogged()

	for {
		select {
		case <-ticker.C:
			a.evaluateLogged()
		case <-a.ctx.Done():
			a.logger.Info().Msg("AlertService stopping gracefully")
			return
		}
	}
}

func (a *AlertService) evaluateLogged() {
	if err := a.Evaluate(a.ctx); err != nil {
		a.logger.Error().Err(err).Msg("Alert notification failed, retrying next cycle")
	}
}

// RecordHeartbeat marks the site as alive now.
func (a *AlertService) RecordHeartbeat() {
	a.mu.Lock()
	a.lastSeen = a.now()
	lastSeen := utils.TimestampToISO(a.lastSeen)
	a.mu.Unlock()

	a.logger.Debug().Msg("Heartbeat received")
	a.publish(hub.EventHeartbeatReceived, map[string]*string{"last_seen": lastSeen})
}

// SetEnabled toggles the monitor. A disabled monitor never changes state.
func (a *AlertService) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()

	a.logger.Info().Bool("enabled", enabled).Msg("Heartbeat monitor toggled")
	a.publish(hub.EventMonitorToggled, map[string]bool{"enabled": enabled})
}

// Status returns the current alert state.
func (a *AlertService) Status() models.AlertStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	return models.AlertStatus{
		Enabled:  a.enabled,
		Active:   a.active,
		LastSeen: utils.TimestampToISO(a.lastSeen),
	}
}

// Evaluate runs one cycle of the state machine. A transition is committed
// only once every notifier has delivered its notification; on failure the
// previous state is kept and notifiers that already succeeded are skipped
// on the next attempt. If the transition stops applying before it is
// committed, the notifiers that already announced it are sent the message
// matching the unchanged state.
func (a *AlertService) Evaluate(ctx context.Context) error {
	a.evalMu.Lock()
	defer a.evalMu.Unlock()

	a.mu.Lock()
	if !a.enabled {
		a.mu.Unlock()
		a.logger.Debug().Msg("Heartbeat monitor is disabled")
		return nil
	}

	now := a.now()
	var transition bool
	switch {
	case !a.active && a.lastSeen.IsZero():
		transition = now.Sub(a.startedAt) >= a.config.GracePeriod
	case !a.active:
		transition = now.Sub(a.lastSeen) > a.config.GracePeriod
	default:
		transition = !a.lastSeen.IsZero() && now.Sub(a.lastSeen) < a.config.GracePeriod
	}

	if !transition {
		if a.pending != nil {
			for name := range a.pending.delivered {
				if a.owed == nil {
					a.owed = make(map[string]bool)
				}
				a.owed[name] = true
			}
			a.pending = nil
		}
		if len(a.owed) == 0 {
			a.mu.Unlock()
			return nil
		}
		active := a.active
		msg := a.resolvedMessage()
		if active {
			msg = a.downMessage(a.lastSeen)
		}
		a.mu.Unlock()

		a.logger.Info().Bool("active", active).Msg("Alert transition abandoned, restoring the state of notified channels")
		return a.notifyOwed(ctx, msg)
	}

	target := !a.active
	if a.pending == nil || a.pending.active != target {
		// Channels still owed a retraction already hold this transition's message.
		delivered := a.owed
		if delivered == nil {
			delivered = make(map[string]bool)
		}
		a.pending = &pendingTransition{active: target, delivered: delivered}
		a.owed = nil
	}
	pending := a.pending

	var msg notifications.Message
	if target {
		msg = a.downMessage(a.lastSeen)
		a.logger.Warn().Dur("grace_period", a.config.GracePeriod).Msg("No heartbeat received within the grace period, sending alert")
	} else {
		msg = a.resolvedMessage()
		a.logger.Info().Msg("Heartbeat received, resetting alert and sending all-clear")
	}
	a.mu.Unlock()

	var errs []error
	for _, n := range a.notifiers {
		if pending.delivered[n.Name()] {
			continue
		}
		err := n.Notify(ctx, msg)
		a.metrics.ObserveNotification(n.Name(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		pending.delivered[n.Name()] = true
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	a.mu.Lock()
	a.active = target
	a.pending = nil
	lastSeen := utils.TimestampToISO(a.lastSeen)
	a.mu.Unlock()

	a.metrics.SetAlertActive(target)
	if target {
		a.publish(hub.EventAlertActive, map[string]*string{"last_seen": lastSeen})
	} else {
		a.publish(hub.EventAlertResolved, map[string]*string{"last_seen": lastSeen})
	}
	return nil
}

// notifyOwed sends msg to the notifiers in a.owed, forgetting each one that
// delivers.
func (a *AlertService) notifyOwed(ctx context.Context, msg notifications.Message) error {
	var errs []error
	for _, n := range a.notifiers {
		if !a.owed[n.Name()] {
			continue
		}
		err := n.Notify(ctx, msg)
		a.metrics.ObserveNotification(n.Name(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		delete(a.owed, n.Name())
	}
	return errors.Join(errs...)
}

// SendTest sends a test notification through the named notifier. A notifier
// that was not configured yields ErrConfigurationMissing.
func (a *AlertService) SendTest(ctx context.Context, name string) error {
	for _, n := range a.notifiers {
		if n.Name() != name {
			continue
		}
		err := n.Notify(ctx, a.testMessage())
		a.metrics.ObserveNotification(name, err)
		return err
	}
	return fmt.Errorf("%w: %s notifications are not configured", notifications.ErrConfigurationMissing, name)
}

func (a *AlertService) downMessage(lastSeen time.Time) notifications.Message {
	last := "<null>"
	if iso := utils.TimestampToISO(lastSeen); iso != nil {
		last = *iso
	}
	return notifications.Message{
		Subject:  a.config.Site + " internet is down",
		Body:     fmt.Sprintf("The %s internet connection is down. Last connection with the server was at %s.", a.config.Site, last),
		Summary:  fmt.Sprintf("The %s internet connection appears to be down.", a.config.Site),
		Mentions: a.config.Mentions,
	}
}

func (a *AlertService) resolvedMessage() notifications.Message {
	return notifications.Message{
		Subject: "RESOLVED: " + a.config.Site + " internet is up",
		Body:    fmt.Sprintf("The %s internet connection appears to be up.", a.config.Site),
		Summary: fmt.Sprintf("RESOLVED: the %s internet connection appears to be up.", a.config.Site),
	}
}

func (a *AlertService) testMessage() notifications.Message {
	return notifications.Message{
		Subject:  "TEST: " + a.config.Site + " internet is down",
		Body:     "This is a test message. Please ignore.",
		Summary:  "This is a test message from the beat monitor. Please ignore.",
		Mentions: a.config.Mentions,
	}
}

func (a *AlertService) publish(eventType string, payload interface{}) {
	if a.events != nil {
		a.events.Publish(eventType, payload)
	}
}
