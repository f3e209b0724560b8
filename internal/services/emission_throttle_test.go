package services_test

import (
	"testing"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/constants"
	"github.com/benmeehan/heartbeat-agent/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestEmissionThrottle(t *testing.T) {
	throttle := services.NewEmissionThrottle()
	t0 := time.Unix(1640198400, 0)

	assert.True(t, throttle.LastEmitted(constants.TargetDome).IsZero())
	assert.True(t, throttle.Allow(constants.TargetDome, t0, 10*time.Second))

	throttle.Record(constants.TargetDome, t0)
	assert.Equal(t, t0, throttle.LastEmitted(constants.TargetDome))
	assert.False(t, throttle.Allow(constants.TargetDome, t0.Add(9*time.Second), 10*time.Second))
	assert.True(t, throttle.Allow(constants.TargetDome, t0.Add(10*time.Second), 10*time.Second))

	// Targets are independent.
	assert.True(t, throttle.Allow(constants.TargetOutside, t0, 10*time.Second))
}
