package constants

import "time"

// Emission targets tracked by the emission throttle.
const (
	TargetDome    = "dome"
	TargetOutside = "outside"
)

const (
	DefaultTimeout          = 30 * time.Second
	DefaultEmitRateLimit    = 10 * time.Second
	DefaultRecheckInterval  = 10 * time.Second
	DefaultTriggerThreshold = 3

	DefaultWatchdogInterval = 15 * time.Second
	DefaultProbeTimeout     = 1 * time.Second
	DefaultProbeRetries     = 2

	DefaultOutsideInterval = 15 * time.Second
	DefaultOutsideTimeout  = 5 * time.Second

	DefaultAlertPollInterval = 10 * time.Second
	DefaultAlertGracePeriod  = 300 * time.Second
)
