package mailer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/resend/resend-go/v2"
)

// Resend sends mail through the Resend API.
type Resend struct {
	client *resend.Client
	from   string
}

// NewResend constructs a Resend mailer.
func NewResend(apiKey, from string) *Resend {
	return &Resend{client: resend.NewClient(apiKey), from: from}
}

// WithBaseURL points the client at another API host.
func (r *Resend) WithBaseURL(raw string) (*Resend, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	r.client.BaseURL = parsed
	return r, nil
}

func (r *Resend) Provider() string { return ProviderResend }

func (r *Resend) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	from := msg.From
	if from == "" {
		from = r.from
	}

	sent, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("resend send failed: %w", err)
	}
	return sent.Id, nil
}
