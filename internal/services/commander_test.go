package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/constants"
	"github.com/benmeehan/heartbeat-agent/internal/mocks"
	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/benmeehan/heartbeat-agent/internal/services"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// replyingBroker wires a MockMQTTClient so that every published command is
// answered on its reply topic with status.
func replyingBroker(t *testing.T, status string) *mocks.MockMQTTClient {
	t.Helper()
	client := &mocks.MockMQTTClient{}
	var handler MQTT.MessageHandler

	client.On("Subscribe", mock.MatchedBy(func(topic string) bool {
		return strings.HasPrefix(topic, "lvmecp/command/response/")
	}), byte(1), mock.Anything).
		Run(func(args mock.Arguments) { handler = args.Get(2).(MQTT.MessageHandler) }).
		Return(mocks.NewToken(nil)).Once()

	client.On("Publish", "lvmecp/command", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) {
			var req models.CommandRequest
			require.NoError(t, json.Unmarshal(args.Get(3).([]byte), &req))
			assert.Equal(t, constants.CommandHeartbeat, req.Command)
			assert.Equal(t, "lvmecp/command/response/"+req.CommandID, req.ReplyTo)
			if status == "" {
				return
			}
			reply, _ := json.Marshal(models.CommandReply{CommandID: req.CommandID, Status: status, Message: "relay fault"})
			go handler(nil, mocks.NewMockMessage(req.ReplyTo, reply))
		}).
		Return(mocks.NewToken(nil)).Once()

	client.On("Unsubscribe", mock.Anything).Return(mocks.NewToken(nil)).Once()
	return client
}

// TestMQTTCommander_SendCommand_Success tests a command answered with done.
func TestMQTTCommander_SendCommand_Success(t *testing.T) {
	client := replyingBroker(t, constants.CommandStatusDone)
	c := services.NewMQTTCommander(client, 1, time.Second, zerolog.Nop())

	err := c.SendCommand(context.Background(), "lvmecp", constants.CommandHeartbeat)

	assert.NoError(t, err)
	client.AssertExpectations(t)
}

// TestMQTTCommander_SendCommand_Failure tests a command answered with failed.
func TestMQTTCommander_SendCommand_Failure(t *testing.T) {
	client := replyingBroker(t, constants.CommandStatusFailed)
	c := services.NewMQTTCommander(client, 1, time.Second, zerolog.Nop())

	err := c.SendCommand(context.Background(), "lvmecp", constants.CommandHeartbeat)

	assert.ErrorIs(t, err, services.ErrDownstreamCommandFailure)
	assert.Contains(t, err.Error(), "relay fault")
	client.AssertExpectations(t)
}

// TestMQTTCommander_SendCommand_Timeout tests a command that never gets a reply.
func TestMQTTCommander_SendCommand_Timeout(t *testing.T) {
	client := replyingBroker(t, "")
	c := services.NewMQTTCommander(client, 1, 50*time.Millisecond, zerolog.Nop())

	err := c.SendCommand(context.Background(), "lvmecp", constants.CommandHeartbeat)

	assert.ErrorIs(t, err, services.ErrCommandTimeout)
	client.AssertExpectations(t)
}

// TestMQTTCommander_SendCommand_SubscribeError tests that nothing is published without a reply subscription.
func TestMQTTCommander_SendCommand_SubscribeError(t *testing.T) {
	client := &mocks.MockMQTTClient{}
	client.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Return(mocks.NewToken(errors.New("not connected")))
	c := services.NewMQTTCommander(client, 1, time.Second, zerolog.Nop())

	err := c.SendCommand(context.Background(), "lvmecp", constants.CommandHeartbeat)

	assert.Error(t, err)
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
