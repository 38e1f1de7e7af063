package email

import (
	"context"
	"errors"
)

// Sender is the interface that all email providers must implement.
// A Send call is exactly one delivery attempt.
type Sender interface {
	// Send delivers a fully assembled message to msg.To.
	Send(ctx context.Context, msg Message) error
}

// Transport errors
var (
	ErrUnknownProvider    = errors.New("unknown email provider")
	ErrMissingCredentials = errors.New("email provider credentials are missing")
	ErrImageUnreadable    = errors.New("inline image content is unreadable")
	ErrHeaderLineBreak    = errors.New("address header contains a line break")
)

// Message represents an email message ready to be sent.
type Message struct {
	From     string // sender, optionally "Name <address>"
	To       string // recipient email address
	Subject  string // email subject, used verbatim
	HTMLBody string // HTML email body
	Inline   []InlineImage
}

// InlineImage is an image part referenced from the HTML body by Content-ID.
type InlineImage struct {
	ContentID   string // without angle brackets, e.g. "image1"
	Filename    string // original file name, kept in the disposition
	ContentType string // e.g. "image/png"
	Data        []byte
}

// SenderFunc adapts a function to the Sender interface
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f(ctx, msg)
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
