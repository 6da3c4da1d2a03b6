package mailer

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	key  string
	from string
	host string
}

// NewSendGrid constructs a SendGrid mailer.
func NewSendGrid(apiKey, from string) *SendGrid {
	return &SendGrid{key: apiKey, from: from, host: sendgridHost}
}

// WithHost overrides the API host.
func (s *SendGrid) WithHost(host string) *SendGrid {
	s.host = host
	return s
}

func (s *SendGrid) Provider() string { return ProviderSendGrid }

func (s *SendGrid) Send(ctx context.Context, msg Message) (string, error) {
	if err := validate(msg); err != nil {
		return "", err
	}
	from := msg.From
	if from == "" {
		from = s.from
	}

	// sendgrid.API takes no context, so a cancelled caller is honoured before the request goes out.
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("sendgrid send cancelled: %w", err)
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(from, msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return "", fmt.Errorf("sendgrid send failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("sendgrid send failed: status %d: %s", res.StatusCode, res.Body)
	}

	if ids := res.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}

func (s *SendGrid) prepare(from string, msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(toSGEmail(msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(toSGEmail(from))
	m.AddPersonalizations(p)
	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	return m
}

func toSGEmail(raw string) *sgmail.Email {
	if addr, err := mail.ParseAddress(raw); err == nil {
		return sgmail.NewEmail(addr.Name, addr.Address)
	}
	return sgmail.NewEmail("", raw)
}
