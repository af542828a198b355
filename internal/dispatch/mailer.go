package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Email is one outbound message. An empty From uses the mailer's default
// sender.
type Email struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SendGridMailer sends email through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridMailer creates a mailer using apiKey with a default sender.
func NewSendGridMailer(apiKey, from, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, from),
	}
}

// newSendGridMailerWithHost points the client at another API host.
func newSendGridMailerWithHost(apiKey, host, from string) *SendGridMailer {
	req := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	req.Method = "POST"
	return &SendGridMailer{
		client: &sendgrid.Client{Request: req},
		from:   mail.NewEmail("", from),
	}
}

// Send delivers e. Any non-2xx answer from SendGrid is an error.
func (m *SendGridMailer) Send(ctx context.Context, e Email) error {
	if e.To == "" {
		return errors.New("dispatch: email has no recipient")
	}

	from := m.from
	if e.From != "" {
		from = mail.NewEmail("", e.From)
	}
	msg := mail.NewSingleEmail(from, e.Subject, mail.NewEmail("", e.To), e.Text, e.HTML)

	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("dispatch: sendgrid send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch: sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer only logs messages. Used when no SendGrid key is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, e Email) error {
	m.logger.Info("email not sent (no mail provider configured)",
		slog.String("to", e.To),
		slog.String("subject", e.Subject),
	)
	return nil
}
