package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

const (
	DefaultURL        = "http://localhost:3000"
	DefaultStageDelay = 800 * time.Millisecond

	analyzePath = "/api/analyze"
	maxBody     = 4 << 20
)

// Config for talking to the relay.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	StageDelay time.Duration
}

// Client submits scenarios to the relay's analyze endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	stageDelay time.Duration

	Log   logrus.FieldLogger
	Now   func() time.Time
	NewID func() string
}

func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		stageDelay: cfg.StageDelay,
		Log:        logrus.StandardLogger(),
		Now:        time.Now,
		NewID:      domain.NewScenarioID,
	}
}

// Report is what a submission produced. Fallback is true when the relay
// could not be used and the result was computed locally.
type Report struct {
	Result   *domain.Result
	Fallback bool
	Source   string // X-Analysis-Source as reported by the relay, if any
}

// ProgressFunc is called as each stage starts.
type ProgressFunc func(index int, stage Stage)

// Run walks through the stages with the configured pause and then submits
// the scenario. Cancelling ctx stops both.
func (c *Client) Run(ctx context.Context, p Preset, sc domain.Scenario, progress ProgressFunc) (*Report, error) {
	for i, st := range Stages {
		if progress != nil {
			progress(i, st)
		}
		if c.stageDelay <= 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			continue
		}
		t := time.NewTimer(c.stageDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return c.Submit(ctx, p, sc)
}

// Submit posts the scenario to the relay. Transport failures and non-2xx
// answers fall back to the preset's local result; an unreadable 2xx body is
// an error.
func (c *Client) Submit(ctx context.Context, p Preset, sc domain.Scenario) (*Report, error) {
	if sc.Stakeholders == nil {
		sc.Stakeholders = []string{}
	}
	payload, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("encode scenario: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.Log.WithError(err).Warn("relay unreachable, using local result")
		return c.fallback(p), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		c.Log.WithField("status", resp.StatusCode).Warn("relay returned an error, using local result")
		return c.fallback(p), nil
	}

	var res domain.Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode analysis result: %w", err)
	}
	res.Normalize()
	return &Report{Result: &res, Source: resp.Header.Get("X-Analysis-Source")}, nil
}

func (c *Client) fallback(p Preset) *Report {
	return &Report{
		Result:   FallbackResult(p, c.NewID(), domain.FormatTimestamp(c.Now())),
		Fallback: true,
	}
}
