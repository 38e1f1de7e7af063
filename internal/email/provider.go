package email

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/digestmail/digestmail/internal/config"
)

// Provider names accepted in email.provider
const (
	ProviderGmail   = "gmail"
	ProviderResend  = "resend"
	ProviderMailgun = "mailgun"
	ProviderSMTP    = "smtp"
)

// NewSender obtains an authenticated transport handle for the configured
// provider. Any error here aborts a send run before the first recipient.
func NewSender(ctx context.Context, cfg config.EmailConfig) (Sender, error) {
	switch cfg.Provider {
	case ProviderGmail, "":
		return newGmailFromConfig(ctx, cfg)
	case ProviderResend:
		return NewResendSender(cfg.Resend.APIKey)
	case ProviderMailgun:
		return NewMailgunSender(cfg.Mailgun.Domain, cfg.Mailgun.APIKey, cfg.Mailgun.APIBase)
	case ProviderSMTP:
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			TLS:      cfg.SMTP.TLS,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// newGmailFromConfig prefers a service account, then a configured refresh
// token, then the token file written by the installed-app flow.
func newGmailFromConfig(ctx context.Context, cfg config.EmailConfig) (Sender, error) {
	g := cfg.Gmail
	switch {
	case g.CredentialsJSON != "":
		return NewGmailSender(ctx, GmailConfig{
			CredentialsJSON: g.CredentialsJSON,
			SenderAddress:   cfg.SenderAddress,
		})
	case g.RefreshToken != "":
		return NewGmailSenderWithToken(ctx, g.ClientID, g.ClientSecret, g.RefreshToken)
	case g.TokenFile != "":
		tok, err := NewTokenStore(g.TokenFile).Load()
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("gmail: %w: no token at %s, run `digest auth` first", ErrMissingCredentials, g.TokenFile)
		}
		if err != nil {
			return nil, err
		}
		oauthCfg := OAuthConfig(g.ClientID, g.ClientSecret, "")
		return NewGmailSenderFromTokenSource(ctx, oauthCfg.TokenSource(ctx, tok))
	default:
		return nil, fmt.Errorf("gmail: %w", ErrMissingCredentials)
	}
}
