package models

// AlertStatus is the reported state of the outside monitor.
type AlertStatus struct {
	Enabled  bool    `json:"enabled"`
	Active   bool    `json:"active"`
	LastSeen *string `json:"last_seen"`
}

// NetworkTarget is a host probed by the network watchdog.
type NetworkTarget struct {
	Label string `yaml:"label" json:"label"`
	Host  string `yaml:"host" json:"host"`
}
