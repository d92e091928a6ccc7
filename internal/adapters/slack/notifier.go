package slack

import (
	"context"
	"log/slog"

	"github.com/tfci-io/tfci/internal/logging"
)

// Config holds Slack notification configuration.
type Config struct {
	Enabled        bool   `yaml:"enabled"`
	BotToken       string `yaml:"bot_token"`
	Channel        string `yaml:"channel"`
	NotifyOnError  bool   `yaml:"notify_on_error"`
	NotifyOnRollup bool   `yaml:"notify_on_rollup_success"`
}

// DefaultConfig returns default Slack configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Channel:        "#infra-notifications",
		NotifyOnError:  true,
		NotifyOnRollup: false,
	}
}

// Trigger names the event that wants to notify.
type Trigger string

const (
	// TriggerMergeFailure fires when a merge-mode plan or apply failed.
	TriggerMergeFailure Trigger = "merge_failure"
	// TriggerRollupSuccess fires when a rollup completed.
	TriggerRollupSuccess Trigger = "rollup_success"
)

// Status is the outcome of a notification attempt.
type Status string

const (
	Sent       Status = "sent"
	Suppressed Status = "suppressed"
)

// Notifier sends notifications to Slack, honoring the configured toggles.
type Notifier struct {
	client *Client
	config *Config
	log    *slog.Logger
}

// NewNotifier creates a new Slack notifier.
func NewNotifier(config *Config) *Notifier {
	return &Notifier{
		client: NewClient(config.BotToken),
		config: config,
		log:    logging.WithComponent("slack"),
	}
}

// NewNotifierWithClient injects a client, for tests.
func NewNotifierWithClient(config *Config, client *Client) *Notifier {
	return &Notifier{client: client, config: config, log: logging.WithComponent("slack")}
}

// Notify posts a message when the trigger's toggle allows it. The returned
// Status says whether anything was sent; errors never carry CI semantics
// (reporting failure must not mask the run outcome).
func (n *Notifier) Notify(ctx context.Context, msg *Message, trigger Trigger) (Status, error) {
	if !n.allowed(trigger) {
		n.log.Debug("notification suppressed", "trigger", trigger)
		return Suppressed, nil
	}

	if msg.Channel == "" {
		msg.Channel = n.config.Channel
	}
	if _, err := n.client.PostMessage(ctx, msg); err != nil {
		return Suppressed, err
	}
	n.log.Info("notification sent", "trigger", trigger, "channel", msg.Channel)
	return Sent, nil
}

func (n *Notifier) allowed(trigger Trigger) bool {
	if !n.config.Enabled {
		return false
	}
	switch trigger {
	case TriggerMergeFailure:
		return n.config.NotifyOnError
	case TriggerRollupSuccess:
		return n.config.NotifyOnRollup
	default:
		return false
	}
}
