package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

// SlackNotifier posts alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
}

// NewSlackNotifier creates a SlackNotifier posting to channel.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, channel: channel}
}

func (s *SlackNotifier) Name() string { return "slack" }

// Notify posts the message summary, prefixed by its mentions.
func (s *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	if s.webhookURL == "" {
		return fmt.Errorf("%w: no slack webhook_url defined", ErrConfigurationMissing)
	}

	text := msg.Summary
	if text == "" {
		text = msg.Body
	}
	if mentions := formatMentions(msg.Mentions); mentions != "" {
		text = mentions + " " + text
	}

	err := slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{
		Channel: s.channel,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}

// formatMentions converts @here, @channel and @everyone to Slack special
// mentions and passes anything else through.
func formatMentions(mentions []string) string {
	formatted := make([]string, 0, len(mentions))
	for _, m := range mentions {
		switch m {
		case "@here", "@channel", "@everyone":
			formatted = append(formatted, "<!"+strings.TrimPrefix(m, "@")+">")
		case "":
		default:
			formatted = append(formatted, m)
		}
	}
	return strings.Join(formatted, " ")
}
