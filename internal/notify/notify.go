package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier delivers a human-readable alert. Delivery is fire-and-forget:
// failures are logged by implementations and never escalated to callers.
type Notifier interface {
	Alert(ctx context.Context, subject, message string)
}

// channel is one concrete delivery mechanism. A channel may be
// unconfigured, in which case it is skipped entirely.
type channel interface {
	name() string
	configured() bool
	send(ctx context.Context, subject, message string) error
}

// Multi fans an alert out to every configured channel.
type Multi struct {
	logger   zerolog.Logger
	channels []channel
}

func NewMulti(logger zerolog.Logger, channels ...channel) *Multi {
	return &Multi{
		logger:   logger.With().Str("component", "notifier").Logger(),
		channels: channels,
	}
}

func (m *Multi) Alert(ctx context.Context, subject, message string) {
	for _, ch := range m.channels {
		if !ch.configured() {
			continue
		}
		if err := ch.send(ctx, subject, message); err != nil {
			m.logger.Error().Err(err).Str("channel", ch.name()).Str("subject", subject).Msg("alert delivery failed")
			continue
		}
		m.logger.Debug().Str("channel", ch.name()).Str("subject", subject).Msg("alert delivered")
	}
}

// Discard is a Notifier that drops everything. Used in tests and when no
// channel is configured.
type Discard struct{}

func (Discard) Alert(context.Context, string, string) {}

// FromConfig builds a Multi from the optional Slack and SMTP settings.
// Unconfigured channels stay registered but are skipped at send time.
func FromConfig(logger zerolog.Logger, slackWebhookURL, smtpHost string, smtpPort int, smtpUser, smtpPassword, emailFrom, emailTo string) *Multi {
	return NewMulti(logger,
		NewSlack(slackWebhookURL),
		NewEmail(smtpHost, smtpPort, smtpUser, smtpPassword, emailFrom, emailTo),
	)
}
