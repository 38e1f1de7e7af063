package email

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunSender implements Sender by posting the assembled MIME document to
// Mailgun's messages.mime endpoint.
type MailgunSender struct {
	mg *mailgun.MailgunImpl
}

// NewMailgunSender creates a new MailgunSender. apiBase may be empty.
func NewMailgunSender(domain, apiKey, apiBase string) (*MailgunSender, error) {
	if domain == "" || apiKey == "" {
		return nil, fmt.Errorf("mailgun: %w: domain and API key are required", ErrMissingCredentials)
	}
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase != "" {
		mg.SetAPIBase(apiBase)
	}
	return &MailgunSender{mg: mg}, nil
}

// Send implements Sender.
func (s *MailgunSender) Send(ctx context.Context, msg Message) error {
	raw, err := msg.Bytes()
	if err != nil {
		return err
	}

	m := s.mg.NewMIMEMessage(io.NopCloser(bytes.NewReader(raw)), msg.To)
	if _, _, err := s.mg.Send(ctx, m); err != nil {
		return fmt.Errorf("mailgun: failed to send email: %w", err)
	}
	return nil
}
