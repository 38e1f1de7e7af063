// Package digestmail is a Go client for the digestmail compose server.
package digestmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds the configuration for the compose API client.
type Config struct {
	// BaseURL is the root URL of the compose server.
	// Examples: "http://127.0.0.1:8501" or "http://127.0.0.1:8501/api/v1"
	// The "/api/v1" suffix is appended automatically if missing.
	BaseURL string

	// Token is the bearer token issued by `digest token`. Leave empty when
	// the server runs without a token secret.
	Token string

	// HTTPClient is an optional custom HTTP client.
	// If nil, a default client with 30s timeout is used.
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if !strings.HasSuffix(c.BaseURL, "/api/v1") {
		c.BaseURL = c.BaseURL + "/api/v1"
	}
}

// Client calls the compose API.
type Client struct {
	cfg Config
}

// NewClient creates a new client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg}
}

// Draft returns the server's editing session.
func (c *Client) Draft(ctx context.Context) (*Draft, error) {
	var d Draft
	if err := c.do(ctx, http.MethodGet, "/draft", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDraft replaces the subject and body of the editing session.
func (c *Client) UpdateDraft(ctx context.Context, subject, body string) (*Draft, error) {
	var d Draft
	if err := c.do(ctx, http.MethodPut, "/draft", updateDraftRequest{Subject: subject, Body: body}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save persists the editing session on the server.
func (c *Client) Save(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/draft/save", nil, nil)
}

// Load replaces the editing session with the saved draft.
func (c *Client) Load(ctx context.Context) (*Draft, error) {
	var resp loadResponse
	if err := c.do(ctx, http.MethodPost, "/draft/load", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Draft, nil
}

// UploadImage registers one image and appends its placeholder to the body.
func (c *Client) UploadImage(ctx context.Context, filename string, content io.Reader) (*Image, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("images", filename)
	if err != nil {
		return nil, fmt.Errorf("digestmail: failed to build upload: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("digestmail: failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("digestmail: failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/images", &buf)
	if err != nil {
		return nil, fmt.Errorf("digestmail: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := c.send(req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Images) == 0 {
		return nil, fmt.Errorf("digestmail: upload returned no images")
	}
	return &resp.Images[0], nil
}

// Preview renders the editing session for a sample recipient.
func (c *Client) Preview(ctx context.Context, fullName string) (*Preview, error) {
	var p Preview
	if err := c.do(ctx, http.MethodPost, "/preview", previewRequest{FullName: fullName}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Send starts a send run and returns its ID.
func (c *Client) Send(ctx context.Context) (string, error) {
	var resp sendResponse
	if err := c.do(ctx, http.MethodPost, "/send", nil, &resp); err != nil {
		return "", err
	}
	return resp.RunID, nil
}

// Progress returns the latest progress of a run.
func (c *Client) Progress(ctx context.Context, runID string) (*Progress, error) {
	var p Progress
	if err := c.do(ctx, http.MethodGet, "/runs/"+url.PathEscape(runID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// WaitForRun polls a run every interval until it finishes or ctx is done.
// onProgress, when non-nil, sees every polled state.
func (c *Client) WaitForRun(ctx context.Context, runID string, interval time.Duration, onProgress func(*Progress)) (*Progress, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p, err := c.Progress(ctx, runID)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(p)
		}
		if p.Done() {
			return p, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Runs lists recorded runs, most recent first.
func (c *Client) Runs(ctx context.Context, limit int) ([]Run, error) {
	path := "/runs"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp runsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("digestmail: failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("digestmail: failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("digestmail: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("digestmail: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("digestmail: failed to parse response: %w", err)
	}
	return nil
}
