package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// ResendSender implements Sender using the Resend API. Inline images are
// sent as attachments carrying a content id.
type ResendSender struct {
	client *resend.Client
}

// NewResendSender creates a new ResendSender.
func NewResendSender(apiKey string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend: %w: API key is required", ErrMissingCredentials)
	}
	return &ResendSender{client: resend.NewClient(apiKey)}, nil
}

// NewResendSenderWithClient wraps an existing client, e.g. one with a custom base URL.
func NewResendSenderWithClient(client *resend.Client) *ResendSender {
	return &ResendSender{client: client}
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTMLBody,
	}

	if len(msg.Inline) > 0 {
		req.Attachments = make([]*resend.Attachment, len(msg.Inline))
		for i, img := range msg.Inline {
			req.Attachments[i] = &resend.Attachment{
				Filename:    img.Filename,
				Content:     img.Data,
				ContentType: img.ContentType,
				ContentId:   img.ContentID,
			}
		}
	}

	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}
	return nil
}
