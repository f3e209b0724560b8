package constants

import "time"

// Commands accepted on the beat command topic.
const (
	// CommandSet marks a component heartbeat as seen.
	CommandSet = "set"
	// CommandStatus replies with the aggregated heartbeat status.
	CommandStatus = "status"
	// CommandHeartbeat is the command forwarded to the downstream controller.
	CommandHeartbeat = "heartbeat"
)

// Command reply statuses
const (
	// CommandStatusDone indicates that the command completed successfully
	CommandStatusDone = "done"
	// CommandStatusFailed indicates that the command failed
	CommandStatusFailed = "failed"
)

const (
	DefaultCommandTopic    = "beat/command"
	DefaultDownstreamActor = "lvmecp"
	DefaultCommandTimeout  = 5 * time.Second
)
