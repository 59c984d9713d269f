// Package notify sends patient-facing emails.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/curasync/portal/pkg/logging"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
	defaultFromName  = "CuraSync"
)

// EmailSender delivers one email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // plain text
	HTML    string // optional
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Host      string // defaults to the public SendGrid API
}

// SendGridSender sends emails through the SendGrid v3 mail API.
type SendGridSender struct {
	apiKey    string
	host      string
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = sendGridHost
	}
	return &SendGridSender{
		apiKey:    cfg.APIKey,
		host:      host,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger.Component("notify"),
	}
}

// Send delivers msg via SendGrid.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.apiKey == "" {
		return fmt.Errorf("notify: sendgrid sender not configured")
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("notify: recipient required")
	}

	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.fromEmail),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		html,
	)

	request := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "to", msg.To, "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

// StubEmailSender logs instead of sending. Used when SendGrid is not configured.
type StubEmailSender struct {
	logger *logging.Logger
}

// NewStubEmailSender creates a stub sender.
func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger.Component("notify")}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send email", "to", msg.To, "subject", msg.Subject)
	return nil
}
