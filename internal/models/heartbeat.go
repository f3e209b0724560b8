package models

// HeartbeatConfig describes a heartbeat to register at startup.
type HeartbeatConfig struct {
	Name     string `yaml:"name" json:"name"`
	Critical *bool  `yaml:"critical,omitempty" json:"critical,omitempty"` // Defaults to true when omitted
}

// IsCritical reports the configured criticality, defaulting to true.
func (h HeartbeatConfig) IsCritical() bool {
	return h.Critical == nil || *h.Critical
}

// HeartbeatStatus is the reported state of a single heartbeat.
type HeartbeatStatus struct {
	Name     string  `json:"name"`
	Critical bool    `json:"critical"`
	Current  bool    `json:"current"`
	LastSeen *string `json:"last_seen"`
}

// BeatStatus is the reply to the status command.
type BeatStatus struct {
	Heartbeats  []HeartbeatStatus `json:"heartbeats"`
	LastEmitted *string           `json:"last_emitted"`
	LastOutside *string           `json:"last_outside"`
	OutsideOK   bool              `json:"outside_ok"`
	Network     map[string]bool   `json:"network"`
}
