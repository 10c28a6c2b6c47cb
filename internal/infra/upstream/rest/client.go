package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

const (
	analyzePath     = "/api/analyze"
	healthPath      = "/health"
	maxErrorSnippet = 512

	DefaultMaxResponseBytes = 4 << 20
)

// Config for the external analysis service.
type Config struct {
	BaseURL          string
	Timeout          time.Duration // 0 leaves the transport default in place
	MaxResponseBytes int64         // 0 means DefaultMaxResponseBytes
}

// Client forwards scenarios to the external analysis service over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxBytes   int64
}

func NewClient(cfg Config) *Client {
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes:   maxBytes,
	}
}

// BaseURL returns the configured upstream base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Analyze POSTs body verbatim to <base>/api/analyze and returns the response
// bytes when the status is 2xx and the body is valid JSON. A body larger than
// the configured limit is reported as ErrResponseTooLarge, never truncated.
func (c *Client) Analyze(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.StatusError{Code: resp.StatusCode, Body: snippet(raw)}
	}
	if int64(len(raw)) > c.maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", domain.ErrResponseTooLarge, c.maxBytes)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: %q", domain.ErrMalformedBody, snippet(raw))
	}
	return raw, nil
}

// Check probes <base>/health. It is used for health reporting only.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorSnippet))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.StatusError{Code: resp.StatusCode}
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorSnippet {
		return domain.Clip(s, maxErrorSnippet) + "..."
	}
	return strings.ToValidUTF8(s, "")
}
