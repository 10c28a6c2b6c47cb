package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

const (
	maxTokens    = 2048
	defaultModel = "gpt-4.1-mini"
)

// Config holds OpenAI parameters.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Client asks a chat model to produce the analysis result directly. It
// satisfies domain.Analyzer, so the relay treats it like any upstream.
type Client struct {
	*openai.Client
	Model string
	Now   func() time.Time
}

func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{Client: openai.NewClientWithConfig(oc), Model: cfg.Model, Now: time.Now}
}

func (c *Client) Analyze(ctx context.Context, body []byte) ([]byte, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(body)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", domain.ErrMalformedBody)
	}

	res, err := c.decode(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (c *Client) decode(content string) (*domain.Result, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var res domain.Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &res); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedBody, err)
	}
	if !res.Decision.ApprovalType.Valid() {
		return nil, fmt.Errorf("%w: approval_type %q", domain.ErrMalformedBody, res.Decision.ApprovalType)
	}

	if res.ScenarioID == "" {
		res.ScenarioID = domain.NewScenarioID()
	}
	if res.Timestamp == "" {
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		res.Timestamp = domain.FormatTimestamp(now())
	}
	res.Strategic.ImpactScore = clamp(res.Strategic.ImpactScore)
	res.Strategic.Confidence = clamp(res.Strategic.Confidence)
	res.Operational.HarmonyScore = clamp(res.Operational.HarmonyScore)
	res.Tactical.Sustainability = clamp(res.Tactical.Sustainability)
	res.Execution.Readiness = clamp(res.Execution.Readiness)
	res.Decision.Confidence = clamp(res.Decision.Confidence)
	res.Normalize()
	return &res, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", domain.ErrQuotaExceeded, apiErr.Message)
		}
		return &domain.StatusError{Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, reqErr.Err)
		}
		return &domain.StatusError{Code: reqErr.HTTPStatusCode}
	}
	return fmt.Errorf("%w: create chat completion: %v", domain.ErrUpstreamUnavailable, err)
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
