// Package notifications delivers alert messages to operators by email and chat.
package notifications

import (
	"context"
	"errors"
)

// ErrConfigurationMissing is returned when a notifier lacks a required setting.
var ErrConfigurationMissing = errors.New("notification configuration missing")

// Message is a single alert. Email uses Subject and Body; chat uses
// Summary, falling back to Body, prefixed by Mentions.
type Message struct {
	Subject  string
	Body     string
	Summary  string
	Mentions []string
}

// Notifier delivers messages through one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}
