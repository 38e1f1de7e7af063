package email

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailConfig holds the configuration for the Gmail email sender.
type GmailConfig struct {
	// CredentialsJSON is the OAuth2 service account credentials JSON.
	CredentialsJSON string
	// SenderAddress is the mailbox emails are sent from.
	SenderAddress string
}

// GmailSender implements Sender using the Gmail API users.messages.send call.
type GmailSender struct {
	service *gmail.Service
}

// NewGmailSender creates a GmailSender from service account credentials
// with domain-wide delegation, impersonating the sender mailbox.
func NewGmailSender(ctx context.Context, cfg GmailConfig) (*GmailSender, error) {
	if cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("gmail: %w: credentials JSON is required", ErrMissingCredentials)
	}
	if cfg.SenderAddress == "" {
		return nil, fmt.Errorf("gmail: sender address is required")
	}

	jwtConfig, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to parse credentials: %w", err)
	}
	jwtConfig.Subject = cfg.SenderAddress

	return NewGmailSenderFromTokenSource(ctx, jwtConfig.TokenSource(ctx))
}

// NewGmailSenderWithToken creates a GmailSender using OAuth2 client credentials + refresh token.
// This is useful for personal Gmail accounts without domain-wide delegation.
func NewGmailSenderWithToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*GmailSender, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("gmail: %w: refresh token is required", ErrMissingCredentials)
	}
	oauthCfg := OAuthConfig(clientID, clientSecret, "")
	token := &oauth2.Token{RefreshToken: refreshToken}
	return NewGmailSenderFromTokenSource(ctx, oauthCfg.TokenSource(ctx, token))
}

// NewGmailSenderFromTokenSource creates a GmailSender authorized by ts.
func NewGmailSenderFromTokenSource(ctx context.Context, ts oauth2.TokenSource) (*GmailSender, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}
	return &GmailSender{service: svc}, nil
}

// NewGmailSenderWithService wraps an existing Gmail service, e.g. one
// pointed at a test endpoint.
func NewGmailSenderWithService(svc *gmail.Service) *GmailSender {
	return &GmailSender{service: svc}
}

// Send sends an email via the Gmail API.
func (g *GmailSender) Send(ctx context.Context, msg Message) error {
	raw, err := msg.Bytes()
	if err != nil {
		return err
	}

	gmailMsg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	_, err = g.service.Users.Messages.Send("me", gmailMsg).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail: failed to send email: %w", err)
	}

	return nil
}
