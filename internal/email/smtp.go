package email

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP relay connection parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
}

// SMTPSender implements Sender over an SMTP relay. It dials per message.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates a new SMTPSender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp: host is required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("smtp: set from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("smtp: set to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	for _, img := range msg.Inline {
		err := m.EmbedReader(img.Filename, bytes.NewReader(img.Data),
			mail.WithFileContentID(img.ContentID),
			mail.WithFileContentType(mail.ContentType(img.ContentType)),
		)
		if err != nil {
			return fmt.Errorf("smtp: embed %s: %w", img.ContentID, err)
		}
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp: create client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp: failed to send email: %w", err)
	}
	return nil
}
