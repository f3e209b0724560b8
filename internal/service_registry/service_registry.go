package service_registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/heartbeats"
	"github.com/benmeehan/heartbeat-agent/internal/metrics"
	"github.com/benmeehan/heartbeat-agent/internal/notifications"
	"github.com/benmeehan/heartbeat-agent/internal/services"
	"github.com/benmeehan/heartbeat-agent/internal/utils"
	"github.com/benmeehan/heartbeat-agent/pkg/mqtt"
	"github.com/benmeehan/heartbeat-agent/pkg/probe"
	"github.com/rs/zerolog"
)

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	mqttClient  mqtt.MQTTClient
	metrics     *metrics.Metrics
	now         func() time.Time
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
// mqttClient may be nil for processes that only run the alert monitor.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, m *metrics.Metrics, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]Service),
		mqttClient: mqttClient,
		metrics:    m,
		now:        time.Now,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Names returns the registered services in start order.
func (sr *ServiceRegistry) Names() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// BeatComponents exposes the shared state built by RegisterBeatServices.
type BeatComponents struct {
	Registry   *heartbeats.Registry
	Throttle   *services.EmissionThrottle
	Aggregator *services.Aggregator
	Status     *services.StatusReporter
}

// RegisterBeatServices builds the heartbeat aggregator and registers its
// services in start order: watchdog, re-check, outside emitter, command.
func (sr *ServiceRegistry) RegisterBeatServices(config *utils.Config) (*BeatComponents, error) {
	if sr.mqttClient == nil {
		return nil, errors.New("beat services require an MQTT client")
	}

	registry, err := heartbeats.NewRegistry(config.Beat.Heartbeats, sr.now)
	if err != nil {
		return nil, fmt.Errorf("failed to build heartbeat registry: %w", err)
	}

	throttle := services.NewEmissionThrottle()
	components := &BeatComponents{Registry: registry, Throttle: throttle}

	var watchdog *services.NetworkWatchdogService
	var network services.NetworkMonitor
	if config.Watchdog.Enabled && len(config.Watchdog.Targets) > 0 {
		watchdog = services.NewNetworkWatchdogService(
			config.Watchdog.Targets,
			config.Watchdog.Interval.Duration(),
			config.Beat.TriggerThreshold,
			probe.NewNetProber(config.Watchdog.ProbeTimeout.Duration(), config.Watchdog.ProbeRetries),
			sr.metrics,
			sr.Logger.With().Str("service", "watchdog").Logger(),
		)
		network = watchdog
	}

	commander := services.NewMQTTCommander(sr.mqttClient, config.MQTT.QOS, config.Beat.CommandTimeout.Duration(),
		sr.Logger.With().Str("service", "commander").Logger())

	components.Aggregator = services.NewAggregator(registry, network, commander, throttle, services.AggregatorConfig{
		Actor:     config.Beat.DownstreamActor,
		Timeout:   config.Beat.Timeout.Duration(),
		RateLimit: config.Beat.EmitRateLimit.Duration(),
	}, sr.now, sr.metrics, sr.Logger.With().Str("service", "aggregator").Logger())

	outside := services.NewHeartbeatService(config.Outside.URL, config.Outside.Interval.Duration(), config.Outside.Timeout.Duration(),
		throttle, sr.metrics, sr.now, sr.Logger.With().Str("service", "outside").Logger())

	components.Status = &services.StatusReporter{
		Registry: registry,
		Throttle: throttle,
		Network:  network,
		Outside:  outside,
		Timeout:  config.Beat.Timeout.Duration(),
	}

	// Ordered service definitions with inline constructors
	servicesInOrder := []serviceDefinition{
		{
			name:    "watchdog",
			enabled: watchdog != nil,
			constructor: func() (Service, error) {
				return watchdog, nil
			},
		},
		{
			name:    "recheck",
			enabled: config.Beat.RecheckInterval > 0,
			constructor: func() (Service, error) {
				return services.NewAggregatorService(components.Aggregator, config.Beat.RecheckInterval.Duration(),
					sr.Logger.With().Str("service", "recheck").Logger()), nil
			},
		},
		{
			// Without a URL the emitter only warns on Start.
			name:    "outside",
			enabled: true,
			constructor: func() (Service, error) {
				return outside, nil
			},
		},
		{
			name:    "command",
			enabled: true,
			constructor: func() (Service, error) {
				return services.NewCommandService(
					config.Beat.CommandTopic,
					config.MQTT.QOS,
					registry,
					components.Aggregator,
					components.Status,
					sr.mqttClient,
					sr.Logger.With().Str("service", "command").Logger(),
				), nil
			},
		},
	}

	if err := sr.registerInOrder(servicesInOrder); err != nil {
		return nil, err
	}
	return components, nil
}

// RegisterMonitorServices builds the alert state machine with its
// notifiers. Slack is only added when a webhook is configured.
func (sr *ServiceRegistry) RegisterMonitorServices(config *utils.Config, events services.EventPublisher) (*services.AlertService, error) {
	notifiers := []notifications.Notifier{
		notifications.NewEmailNotifier(notifications.EmailSettings{
			Recipients:  config.Email.Recipients,
			FromAddress: config.Email.FromAddress,
			ReplyTo:     config.Email.ReplyTo,
			Host:        config.Email.Host,
			Port:        config.Email.Port,
			TLS:         config.Email.TLS,
			Username:    config.Email.Username,
			Password:    config.Email.Password,
		}),
	}
	if config.Slack.WebhookURL != "" {
		notifiers = append(notifiers, notifications.NewSlackNotifier(config.Slack.WebhookURL, config.Slack.Channel))
	} else {
		sr.Logger.Warn().Msg("No slack webhook defined, alerts will only be sent by email")
	}

	alert := services.NewAlertService(services.AlertConfig{
		Site:         config.Monitor.Site,
		GracePeriod:  config.Monitor.SendEmailAfter.Duration(),
		PollInterval: config.Monitor.PollInterval.Duration(),
		Mentions:     config.Slack.Mentions,
	}, notifiers, events, sr.metrics, sr.now, sr.Logger.With().Str("service", "alert").Logger())

	if err := sr.registerInOrder([]serviceDefinition{
		{name: "alert", enabled: true, constructor: func() (Service, error) { return alert, nil }},
	}); err != nil {
		return nil, err
	}
	return alert, nil
}

type serviceDefinition struct {
	name        string
	enabled     bool
	constructor func() (Service, error)
}

func (sr *ServiceRegistry) registerInOrder(defs []serviceDefinition) error {
	registeredServices := []string{}
	for _, svc := range defs {
		if !svc.enabled {
			sr.Logger.Debug().Str("service", svc.name).Msg("Service is disabled, skipping")
			continue
		}
		serviceInstance, err := svc.constructor()
		if err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
			return err
		}
		sr.RegisterService(svc.name, serviceInstance)
		registeredServices = append(registeredServices, svc.name)
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
