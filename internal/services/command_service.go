package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/benmeehan/heartbeat-agent/internal/constants"
	"github.com/benmeehan/heartbeat-agent/internal/heartbeats"
	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/benmeehan/heartbeat-agent/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Evaluator runs one aggregation cycle.
type Evaluator interface {
	Evaluate(ctx context.Context) (Outcome, error)
}

// CommandService handles the set and status commands received via MQTT
// and publishes the replies to a response topic.
type CommandService struct {
	// Configuration Fields
	subTopic string
	qos      int

	// Dependencies
	registry   *heartbeats.Registry
	aggregator Evaluator
	status     *StatusReporter
	mqttClient mqtt.MQTTClient
	logger     zerolog.Logger

	// Internal state management
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCommandService initializes a new CommandService with given parameters.
func NewCommandService(subTopic string, qos int, registry *heartbeats.Registry, aggregator Evaluator,
	status *StatusReporter, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *CommandService {
	if subTopic == "" {
		subTopic = constants.DefaultCommandTopic
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &CommandService{
		subTopic:   subTopic,
		qos:        qos,
		registry:   registry,
		aggregator: aggregator,
		status:     status,
		mqttClient: mqttClient,
		logger:     logger,
		stopChan:   make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the MQTT topic and listens for incoming commands.
func (cs *CommandService) Start() error {
	cs.logger.Info().Str("topic", cs.subTopic).Msg("Starting CommandService and subscribing to MQTT topic")
	token := cs.mqttClient.Subscribe(cs.subTopic, byte(cs.qos), cs.HandleCommand)
	token.Wait()
	if err := token.Error(); err != nil {
		cs.logger.Error().Err(err).Str("topic", cs.subTopic).Msg("Failed to subscribe to MQTT topic")
		return err
	}

	cs.logger.Info().Str("topic", cs.subTopic).Msg("Successfully subscribed to MQTT topic")
	return nil
}

// Stop unsubscribes from MQTT and waits for in-flight commands to finish.
func (cs *CommandService) Stop() error {
	cs.mu.Lock()
	select {
	case <-cs.stopChan:
		cs.mu.Unlock()
		return errors.New("command service is not running")
	default:
		close(cs.stopChan)
	}
	cs.mu.Unlock()

	cs.cancel()
	cs.wg.Wait()

	token := cs.mqttClient.Unsubscribe(cs.subTopic)
	token.Wait()
	if err := token.Error(); err != nil {
		cs.logger.Error().Err(err).Str("topic", cs.subTopic).Msg("Failed to unsubscribe from MQTT topic")
		return err
	}

	cs.logger.Info().Msg("CommandService stopped successfully")
	return nil
}

// HandleCommand parses an incoming command, executes it and publishes the reply.
func (cs *CommandService) HandleCommand(client MQTT.Client, msg MQTT.Message) {
	cs.mu.Lock()
	select {
	case <-cs.stopChan:
		cs.mu.Unlock()
		cs.logger.Warn().Msg("Received command but service is stopping, ignoring command")
		return
	default:
		cs.wg.Add(1)
		cs.mu.Unlock()
	}
	defer cs.wg.Done()

	var request models.CommandRequest
	if err := json.Unmarshal(msg.Payload(), &request); err != nil {
		cs.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to parse command")
		return
	}

	cs.logger.Debug().Str("command", request.Command).Strs("args", request.Args).Str("command_id", request.CommandID).Msg("Received command")

	reply := cs.ExecuteCommand(cs.ctx, request)
	if err := cs.PublishReply(cs.ctx, reply); err != nil {
		cs.logger.Error().Err(err).Msg("Failed to publish command reply")
	}
}

// ExecuteCommand runs a command and returns its reply.
func (cs *CommandService) ExecuteCommand(ctx context.Context, request models.CommandRequest) models.CommandReply {
	reply := models.CommandReply{CommandID: request.CommandID, Status: constants.CommandStatusDone}

	fail := func(message string) models.CommandReply {
		reply.Status = constants.CommandStatusFailed
		reply.Message = message
		return reply
	}

	switch request.Command {
	case constants.CommandSet:
		if len(request.Args) != 1 {
			return fail("set expects exactly one heartbeat name")
		}
		name := request.Args[0]
		if err := cs.registry.Set(name); err != nil {
			if errors.Is(err, heartbeats.ErrNotFound) {
				return fail(fmt.Sprintf("Heartbeat %q not found.", name))
			}
			return fail(err.Error())
		}
		// Emission failures are logged by the aggregator and do not fail the set.
		_, _ = cs.aggregator.Evaluate(ctx)
		return reply

	case constants.CommandStatus:
		data, err := json.Marshal(cs.status.Status())
		if err != nil {
			return fail(fmt.Sprintf("failed to serialize status: %v", err))
		}
		reply.Data = data
		return reply

	default:
		return fail(fmt.Sprintf("unknown command %q", request.Command))
	}
}

// PublishReply sends the reply to the response topic.
func (cs *CommandService) PublishReply(ctx context.Context, reply models.CommandReply) error {
	topic := cs.subTopic + "/response"

	payload, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to serialize reply: %w", err)
	}

	token := cs.mqttClient.Publish(topic, byte(cs.qos), false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			cs.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish command reply")
			return err
		}
	case <-ctx.Done():
		cs.logger.Warn().Str("topic", topic).Msg("Publish operation cancelled")
		return ctx.Err()
	}
	return nil
}
