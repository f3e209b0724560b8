package service_registry

import (
	"bytes"
	"errors"
	"testing"

	"github.com/benmeehan/heartbeat-agent/internal/mocks"
	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/benmeehan/heartbeat-agent/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
}

func (s *recordingService) Start() error {
	*s.log = append(*s.log, "start "+s.name)
	return s.startErr
}

func (s *recordingService) Stop() error {
	*s.log = append(*s.log, "stop "+s.name)
	return s.stopErr
}

func TestServiceRegistry_StartStopOrder(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(nil, nil, zerolog.Nop())
	sr.RegisterService("a", &recordingService{name: "a", log: &log})
	sr.RegisterService("b", &recordingService{name: "b", log: &log})
	sr.RegisterService("a", &recordingService{name: "dup", log: &log})

	require.NoError(t, sr.StartServices())
	require.NoError(t, sr.StopServices())

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}

func TestServiceRegistry_StartFailureStopsStarted(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(nil, nil, zerolog.Nop())
	sr.RegisterService("a", &recordingService{name: "a", log: &log})
	sr.RegisterService("b", &recordingService{name: "b", log: &log})
	sr.RegisterService("c", &recordingService{name: "c", startErr: errors.New("boom"), log: &log})

	err := sr.StartServices()

	assert.ErrorContains(t, err, "failed to start c")
	assert.Equal(t, []string{"start a", "start b", "start c", "stop b", "stop a"}, log)
}

func TestServiceRegistry_StopJoinsErrors(t *testing.T) {
	var log []string
	sr := NewServiceRegistry(nil, nil, zerolog.Nop())
	sr.RegisterService("a", &recordingService{name: "a", stopErr: errors.New("a failed"), log: &log})
	sr.RegisterService("b", &recordingService{name: "b", stopErr: errors.New("b failed"), log: &log})

	err := sr.StopServices()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "a failed")
	assert.Contains(t, err.Error(), "b failed")
}

func TestRegisterBeatServices(t *testing.T) {
	config := utils.DefaultConfig()
	config.Beat.Heartbeats = []models.HeartbeatConfig{{Name: "dome"}}
	config.Watchdog.Enabled = true
	config.Watchdog.Targets = []models.NetworkTarget{{Label: "lco", Host: "10.8.8.1"}}
	config.Outside.URL = "https://monitor.example.org/heartbeat"

	sr := NewServiceRegistry(&mocks.MockMQTTClient{}, nil, zerolog.Nop())
	components, err := sr.RegisterBeatServices(&config)

	require.NoError(t, err)
	assert.Equal(t, []string{"watchdog", "recheck", "outside", "command"}, sr.Names())
	assert.True(t, components.Registry.Contains("dome"))
	assert.NotNil(t, components.Status)
}

func TestRegisterBeatServices_Minimal(t *testing.T) {
	config := utils.DefaultConfig()
	config.Beat.RecheckInterval = 0

	sr := NewServiceRegistry(&mocks.MockMQTTClient{}, nil, zerolog.Nop())
	_, err := sr.RegisterBeatServices(&config)

	require.NoError(t, err)
	assert.Equal(t, []string{"outside", "command"}, sr.Names())
}

func TestRegisterBeatServices_NoOutsideURLWarns(t *testing.T) {
	config := utils.DefaultConfig()
	config.Beat.RecheckInterval = 0

	var buf bytes.Buffer
	sr := NewServiceRegistry(&mocks.MockMQTTClient{}, nil, zerolog.New(&buf).Level(zerolog.InfoLevel))
	_, err := sr.RegisterBeatServices(&config)
	require.NoError(t, err)

	outside, ok := sr.services["outside"]
	require.True(t, ok)
	require.NoError(t, outside.Start())
	require.NoError(t, outside.Stop())

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "No outside URL defined")
}

func TestRegisterBeatServices_DuplicateHeartbeat(t *testing.T) {
	config := utils.DefaultConfig()
	config.Beat.Heartbeats = []models.HeartbeatConfig{{Name: "dome"}, {Name: "dome"}}

	sr := NewServiceRegistry(&mocks.MockMQTTClient{}, nil, zerolog.Nop())
	_, err := sr.RegisterBeatServices(&config)

	assert.Error(t, err)
}

func TestRegisterBeatServices_RequiresMQTT(t *testing.T) {
	config := utils.DefaultConfig()
	_, err := NewServiceRegistry(nil, nil, zerolog.Nop()).RegisterBeatServices(&config)
	assert.Error(t, err)
}

func TestRegisterMonitorServices(t *testing.T) {
	config := utils.DefaultConfig()
	sr := NewServiceRegistry(nil, nil, zerolog.Nop())

	alert, err := sr.RegisterMonitorServices(&config, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"alert"}, sr.Names())
	assert.True(t, alert.Status().Enabled)
}
