package services

import (
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/constants"
	"github.com/benmeehan/heartbeat-agent/internal/heartbeats"
	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/benmeehan/heartbeat-agent/internal/utils"
)

// OutsideReporter exposes the outcome of the outside heartbeats.
type OutsideReporter interface {
	LastSuccess() time.Time
	Healthy() bool
}

// StatusReporter builds the reply to the status command from read-only
// snapshots of the registry, the throttle and the watchdog.
type StatusReporter struct {
	Registry *heartbeats.Registry
	Throttle *EmissionThrottle
	Network  NetworkMonitor  // Optional
	Outside  OutsideReporter // Optional
	Timeout  time.Duration
}

// Status returns the current best-known state.
func (s *StatusReporter) Status() models.BeatStatus {
	status := models.BeatStatus{
		Heartbeats:  []models.HeartbeatStatus{},
		LastEmitted: utils.TimestampToISO(s.Throttle.LastEmitted(constants.TargetDome)),
		LastOutside: utils.TimestampToISO(s.Throttle.LastEmitted(constants.TargetOutside)),
		Network:     map[string]bool{},
	}

	seen := s.Registry.SeenSince(s.Timeout)
	for _, hb := range s.Registry.Values() {
		current, _ := seen.Get(hb.Name)
		status.Heartbeats = append(status.Heartbeats, models.HeartbeatStatus{
			Name:     hb.Name,
			Critical: hb.Critical,
			Current:  current,
			LastSeen: utils.TimestampToISO(hb.LastSet()),
		})
	}

	if s.Network != nil {
		status.Network = s.Network.Status()
	}
	if s.Outside != nil {
		status.OutsideOK = s.Outside.Healthy()
	}
	return status
}
