package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// OAuthConfig returns the installed-app OAuth2 configuration for sending mail
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{gmail.GmailSendScope},
	}
}

// TokenStore keeps an OAuth2 token in a JSON file between runs.
type TokenStore struct {
	path string
}

// NewTokenStore creates a TokenStore backed by path
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Path returns the token file location
func (s *TokenStore) Path() string {
	return s.path
}

// Load reads the stored token. It returns os.ErrNotExist when there is none.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file %s: %w", s.path, err)
	}
	return &tok, nil
}

// Save writes the token with owner-only permissions
func (s *TokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file %s: %w", s.path, err)
	}
	return nil
}

// Forget removes the stored token. A missing file is not an error.
func (s *TokenStore) Forget() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file %s: %w", s.path, err)
	}
	return nil
}

// AuthorizeInstalledApp runs the OAuth2 installed-app flow: it listens on a
// loopback port, hands the consent URL to prompt and exchanges the returned
// code for a token.
func AuthorizeInstalledApp(ctx context.Context, clientID, clientSecret string, prompt func(url string)) (*oauth2.Token, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("gmail: %w: client id and secret are required", ErrMissingCredentials)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to open callback listener: %w", err)
	}
	defer ln.Close()

	redirectURL := fmt.Sprintf("http://%s/", ln.Addr().String())
	cfg := OAuthConfig(clientID, clientSecret, redirectURL)
	state := uuid.NewString()

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)
	deliver := func(r result) {
		select {
		case results <- r:
		default:
		}
	}

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			switch {
			case q.Get("state") != state:
				http.Error(w, "state mismatch", http.StatusBadRequest)
				deliver(result{err: errors.New("oauth callback state mismatch")})
			case q.Get("error") != "":
				http.Error(w, "authorization denied", http.StatusBadRequest)
				deliver(result{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
			default:
				w.Write([]byte("Authorization complete. You can close this window."))
				deliver(result{code: q.Get("code")})
			}
		}),
	}
	go srv.Serve(ln)
	defer srv.Close()

	prompt(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := cfg.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		return tok, nil
	}
}
