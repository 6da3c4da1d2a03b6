package mailer

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Log writes messages to the logger instead of sending them. Used in development.
type Log struct {
	from   string
	logger zerolog.Logger
}

// NewLog constructs the logging mailer.
func NewLog(from string, logger zerolog.Logger) *Log {
	return &Log{from: from, logger: logger.With().Str("component", "log_mailer").Logger()}
}

func (l *Log) Provider() string { return ProviderLog }

func (l *Log) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	id := uuid.NewString()
	l.logger.Info().
		Str("message_id", id).
		Str("subject", msg.Subject).
		Int("html_bytes", len(msg.HTML)).
		Msg("email captured by log mailer")
	return id, nil
}
