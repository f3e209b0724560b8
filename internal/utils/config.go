package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/benmeehan/heartbeat-agent/internal/constants"
	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/benmeehan/heartbeat-agent/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`  // zerolog level name (debug, info, warn, error)
		Format string `yaml:"format"` // json or console
	} `yaml:"log"`

	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty for plain TCP
		Username      string `yaml:"username"`       // Broker username
		Password      string `yaml:"password"`       // Broker password
		QOS           int    `yaml:"qos"`            // QoS level for commands and replies
	} `yaml:"mqtt"`

	Beat struct {
		Timeout          Duration                 `yaml:"timeout"`           // Age after which a heartbeat is stale
		Heartbeats       []models.HeartbeatConfig `yaml:"heartbeats"`        // Registered component heartbeats
		CommandTopic     string                   `yaml:"command_topic"`     // Topic for set/status commands
		DownstreamActor  string                   `yaml:"downstream_actor"`  // Actor receiving the dome heartbeat
		CommandTimeout   Duration                 `yaml:"command_timeout"`   // Wait for a downstream reply
		EmitRateLimit    Duration                 `yaml:"emit_rate_limit"`   // Minimum interval between dome heartbeats
		RecheckInterval  Duration                 `yaml:"recheck_interval"`  // Periodic aggregator evaluation, 0 disables
		MetricsAddr      string                   `yaml:"metrics_addr"`      // Listen address for /metrics, empty disables
		TriggerThreshold int                      `yaml:"trigger_threshold"` // Consecutive failures before a target is down
	} `yaml:"beat"`

	Watchdog struct {
		Enabled      bool                   `yaml:"enabled"`       // Enable/disable the network watchdog
		Interval     Duration               `yaml:"interval"`      // Interval between probe cycles
		ProbeTimeout Duration               `yaml:"probe_timeout"` // Timeout of a single probe attempt
		ProbeRetries int                    `yaml:"probe_retries"` // Attempts per probe
		Targets      []models.NetworkTarget `yaml:"targets"`       // Hosts to probe
	} `yaml:"watchdog"`

	Outside struct {
		URL      string   `yaml:"url"`      // Outside monitor URL, empty disables
		Interval Duration `yaml:"interval"` // Interval between outside heartbeats
		Timeout  Duration `yaml:"timeout"`  // HTTP timeout per heartbeat
	} `yaml:"outside"`

	Monitor struct {
		Addr           string   `yaml:"addr"`             // HTTP listen address
		Site           string   `yaml:"site"`             // Site name used in notifications
		SendEmailAfter Duration `yaml:"send_email_after"` // Grace period before alerting
		PollInterval   Duration `yaml:"poll_interval"`    // Alert evaluation interval
		AllowedOrigins []string `yaml:"allowed_origins"`  // Extra websocket origins
	} `yaml:"monitor"`

	Email struct {
		Recipients  []string `yaml:"recipients"`
		FromAddress string   `yaml:"from_address"`
		ReplyTo     string   `yaml:"reply_to"`
		Host        string   `yaml:"host"`
		Port        int      `yaml:"port"`
		TLS         bool     `yaml:"tls"`
		Username    string   `yaml:"username"`
		Password    string   `yaml:"password"`
	} `yaml:"email"`

	Slack struct {
		WebhookURL string   `yaml:"webhook_url"`
		Channel    string   `yaml:"channel"`
		Mentions   []string `yaml:"mentions"`
	} `yaml:"slack"`
}

// DefaultConfig returns a Config populated with the built-in defaults.
func DefaultConfig() Config {
	var c Config
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.MQTT.Broker = "tcp://localhost:1883"
	c.MQTT.ClientID = "beat"
	c.MQTT.QOS = 1
	c.Beat.Timeout = Duration(constants.DefaultTimeout)
	c.Beat.CommandTopic = constants.DefaultCommandTopic
	c.Beat.DownstreamActor = constants.DefaultDownstreamActor
	c.Beat.CommandTimeout = Duration(constants.DefaultCommandTimeout)
	c.Beat.EmitRateLimit = Duration(constants.DefaultEmitRateLimit)
	c.Beat.RecheckInterval = Duration(constants.DefaultRecheckInterval)
	c.Beat.TriggerThreshold = constants.DefaultTriggerThreshold
	c.Watchdog.Interval = Duration(constants.DefaultWatchdogInterval)
	c.Watchdog.ProbeTimeout = Duration(constants.DefaultProbeTimeout)
	c.Watchdog.ProbeRetries = constants.DefaultProbeRetries
	c.Outside.Interval = Duration(constants.DefaultOutsideInterval)
	c.Outside.Timeout = Duration(constants.DefaultOutsideTimeout)
	c.Monitor.Addr = ":8080"
	c.Monitor.Site = "LCO"
	c.Monitor.SendEmailAfter = Duration(constants.DefaultAlertGracePeriod)
	c.Monitor.PollInterval = Duration(constants.DefaultAlertPollInterval)
	c.Slack.Channel = "lvm-alerts"
	c.Slack.Mentions = []string{"@here"}
	return c
}

// LoadConfig resolves the configuration once at startup. Values are applied
// in order of increasing precedence: built-in defaults, the YAML file at
// filename (skipped when it does not exist), then BEAT_* environment
// variables read through getenv.
func LoadConfig(filename string, fileClient file.FileOperations, getenv func(string) (string, bool)) (Config, error) {
	config := DefaultConfig()

	if filename != "" {
		exists, err := fileClient.IsFileExists(filename)
		if err != nil {
			return Config{}, fmt.Errorf("failed to stat config file: %w", err)
		}
		if exists {
			if err := fileClient.ReadYamlFile(filename, &config); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if getenv == nil {
		getenv = os.LookupEnv
	}
	if err := applyEnv(&config, getenv); err != nil {
		return Config{}, err
	}

	if config.Email.ReplyTo == "" {
		config.Email.ReplyTo = config.Email.FromAddress
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks values that would otherwise make the services misbehave.
func (c Config) Validate() error {
	var errs []error
	if c.Beat.Timeout <= 0 {
		errs = append(errs, errors.New("beat.timeout must be positive"))
	}
	if c.Beat.TriggerThreshold < 1 {
		errs = append(errs, errors.New("beat.trigger_threshold must be at least 1"))
	}
	if c.Watchdog.Enabled && c.Watchdog.Interval <= 0 {
		errs = append(errs, errors.New("watchdog.interval must be positive"))
	}
	if c.Outside.URL != "" && c.Outside.Interval <= 0 {
		errs = append(errs, errors.New("outside.interval must be positive"))
	}
	if c.Monitor.PollInterval <= 0 {
		errs = append(errs, errors.New("monitor.poll_interval must be positive"))
	}

	labels := make([]string, 0, len(c.Watchdog.Targets))
	for _, target := range c.Watchdog.Targets {
		if target.Label == "" || target.Host == "" {
			errs = append(errs, errors.New("watchdog targets need a label and a host"))
			continue
		}
		labels = append(labels, target.Label)
	}
	if len(SliceToSet(labels)) != len(labels) {
		errs = append(errs, errors.New("watchdog target labels must be unique"))
	}

	return errors.Join(errs...)
}

func applyEnv(c *Config, getenv func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := getenv(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *Duration) {
		v, ok := getenv(key)
		if !ok || v == "" {
			return
		}
		d, err := parseSeconds(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = Duration(d)
	}
	num := func(key string, dst *int) {
		v, ok := getenv(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	str("BEAT_LOG_LEVEL", &c.Log.Level)
	str("BEAT_MQTT_BROKER", &c.MQTT.Broker)
	str("BEAT_MQTT_USERNAME", &c.MQTT.Username)
	str("BEAT_MQTT_PASSWORD", &c.MQTT.Password)
	dur("BEAT_TIMEOUT", &c.Beat.Timeout)
	num("BEAT_TRIGGER_THRESHOLD", &c.Beat.TriggerThreshold)
	str("BEAT_OUTSIDE_URL", &c.Outside.URL)
	dur("BEAT_OUTSIDE_INTERVAL", &c.Outside.Interval)
	str("BEAT_HTTP_ADDR", &c.Monitor.Addr)
	dur("BEAT_SEND_EMAIL_AFTER", &c.Monitor.SendEmailAfter)

	if v, ok := getenv("BEAT_EMAIL_RECIPIENTS"); ok && v != "" {
		c.Email.Recipients = SplitList(v)
	}
	str("BEAT_EMAIL_FROM_ADDRESS", &c.Email.FromAddress)
	str("BEAT_EMAIL_REPLY_TO", &c.Email.ReplyTo)
	str("BEAT_EMAIL_HOST", &c.Email.Host)
	num("BEAT_EMAIL_PORT", &c.Email.Port)
	if v, ok := getenv("BEAT_EMAIL_TLS"); ok && v != "" {
		switch strings.ToLower(v) {
		case "true", "yes", "1":
			c.Email.TLS = true
		default:
			c.Email.TLS = false
		}
	}
	str("BEAT_EMAIL_USERNAME", &c.Email.Username)
	str("BEAT_EMAIL_PASSWORD", &c.Email.Password)
	str("BEAT_SLACK_WEBHOOK_URL", &c.Slack.WebhookURL)
	str("BEAT_SLACK_CHANNEL", &c.Slack.Channel)

	return errors.Join(errs...)
}

