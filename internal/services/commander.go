package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/constants"
	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/benmeehan/heartbeat-agent/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrDownstreamCommandFailure is returned when the downstream actor replies with a failure.
	ErrDownstreamCommandFailure = errors.New("downstream command failed")
	// ErrCommandTimeout is returned when no reply arrives in time.
	ErrCommandTimeout = errors.New("downstream command timed out")
)

// MQTTCommander sends commands to other actors over MQTT and waits for
// their reply on a per-command response topic.
type MQTTCommander struct {
	mqttClient mqtt.MQTTClient
	qos        int
	timeout    time.Duration
	newID      func() string
	logger     zerolog.Logger
}

// NewMQTTCommander creates a commander that waits up to timeout for replies.
func NewMQTTCommander(mqttClient mqtt.MQTTClient, qos int, timeout time.Duration, logger zerolog.Logger) *MQTTCommander {
	if timeout <= 0 {
		timeout = constants.DefaultCommandTimeout
	}
	return &MQTTCommander{
		mqttClient: mqttClient,
		qos:        qos,
		timeout:    timeout,
		newID:      uuid.NewString,
		logger:     logger,
	}
}

// SendCommand publishes command to <actor>/command and waits for a reply.
func (c *MQTTCommander) SendCommand(ctx context.Context, actor, command string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	commandID := c.newID()
	topic := actor + "/command"
	responseTopic := fmt.Sprintf("%s/response/%s", topic, commandID)

	replies := make(chan models.CommandReply, 1)
	handler := func(client MQTT.Client, msg MQTT.Message) {
		var reply models.CommandReply
		if err := json.Unmarshal(msg.Payload(), &reply); err != nil {
			c.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to parse command reply")
			return
		}
		select {
		case replies <- reply:
		default:
		}
	}

	token := c.mqttClient.Subscribe(responseTopic, byte(c.qos), handler)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", responseTopic, err)
	}
	defer func() {
		if token := c.mqttClient.Unsubscribe(responseTopic); token.Wait() && token.Error() != nil {
			c.logger.Warn().Err(token.Error()).Str("topic", responseTopic).Msg("Failed to unsubscribe from reply topic")
		}
	}()

	payload, err := json.Marshal(models.CommandRequest{
		CommandID: commandID,
		Command:   command,
		ReplyTo:   responseTopic,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize command: %w", err)
	}

	c.logger.Debug().Str("topic", topic).Str("command", command).Str("command_id", commandID).Msg("Sending command")
	token = c.mqttClient.Publish(topic, byte(c.qos), false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to publish command: %w", err)
		}
	case <-ctx.Done():
		return c.contextError(ctx)
	}

	select {
	case reply := <-replies:
		if reply.Status != constants.CommandStatusDone {
			return fmt.Errorf("%w: %s %s: %s", ErrDownstreamCommandFailure, actor, command, reply.Message)
		}
		return nil
	case <-ctx.Done():
		return c.contextError(ctx)
	}
}

func (c *MQTTCommander) contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrCommandTimeout
	}
	return ctx.Err()
}
