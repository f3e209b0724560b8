package models

import "encoding/json"

// CommandRequest is a command received on, or sent to, an actor command topic.
type CommandRequest struct {
	CommandID string   `json:"command_id"`
	Command   string   `json:"command"`
	Args      []string `json:"args,omitempty"`
	ReplyTo   string   `json:"reply_to,omitempty"`
}

// CommandReply is published in response to a CommandRequest.
type CommandReply struct {
	CommandID string          `json:"command_id"`
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}
