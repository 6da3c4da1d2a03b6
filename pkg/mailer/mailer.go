// Package mailer sends transactional email through Resend, SendGrid or a logging sink.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Provider names.
const (
	ProviderResend   = "resend"
	ProviderSendGrid = "sendgrid"
	ProviderLog      = "log"
)

// ErrNoRecipient is returned when a message has no destination address.
var ErrNoRecipient = errors.New("mail recipient is required")

// Message is a single HTML email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a message and returns the provider reference.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
	Provider() string
}

// Config selects and configures a provider.
type Config struct {
	Provider       string
	From           string
	ResendAPIKey   string
	SendGridAPIKey string
}

// New builds the configured mailer. An unknown or unconfigured provider falls back to logging.
func New(cfg Config, logger zerolog.Logger) (Mailer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case ProviderResend:
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("resend api key must be provided")
		}
		return NewResend(cfg.ResendAPIKey, cfg.From), nil
	case ProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("sendgrid api key must be provided")
		}
		return NewSendGrid(cfg.SendGridAPIKey, cfg.From), nil
	case "", ProviderLog:
		return NewLog(cfg.From, logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	return nil
}
