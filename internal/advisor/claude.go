package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

// DefaultModel is the model used when neither config nor environment
// overrides it.
const DefaultModel = "claude-sonnet-4-5-20250929"

// GetDefaultModel returns the advisory model, honoring SIZELOOP_MODEL.
func GetDefaultModel() string {
	if m := os.Getenv("SIZELOOP_MODEL"); m != "" {
		return m
	}
	return DefaultModel
}

// RetryConfig bounds retries on advisory API calls.
type RetryConfig struct {
	MaxRetries     int           // attempts after the first (default 3)
	InitialBackoff time.Duration // first retry delay (default 1s)
	MaxBackoff     time.Duration // backoff ceiling (default 30s)
	Timeout        time.Duration // per-attempt timeout (default 60s)
}

// DefaultRetryConfig returns the standard retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Timeout:        60 * time.Second,
	}
}

// Claude calls the Anthropic API for each advisory stage.
type Claude struct {
	client  *anthropic.Client
	model   string
	retry   RetryConfig
	limiter *rate.Limiter
}

var _ Advisor = (*Claude)(nil)

// ClaudeConfig configures NewClaude.
type ClaudeConfig struct {
	APIKey string // falls back to ANTHROPIC_API_KEY
	Model  string // falls back to GetDefaultModel()
	Retry  RetryConfig
	RPS    float64 // sustained request rate limit (default 0.5/s, burst 2)
}

// NewClaude builds the Anthropic-backed advisor.
func NewClaude(cfg ClaudeConfig) (*Claude, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 0.5
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Claude{
		client:  &client,
		model:   model,
		retry:   retry,
		limiter: rate.NewLimiter(rate.Limit(rps), 2),
	}, nil
}

// Call sends the stage prompt and returns the model's raw text response.
func (c *Claude) Call(ctx context.Context, stage string, payload any) (string, error) {
	prompt, err := buildPrompt(stage, payload)
	if err != nil {
		return "", err
	}

	var response *anthropic.Message
	attemptErr := c.retryWithBackoff(ctx, stage, func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: 4096,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if attemptErr != nil {
		return "", fmt.Errorf("advisory %s call failed: %w", stage, attemptErr)
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// retryWithBackoff runs fn with rate limiting, per-attempt timeouts and
// exponential backoff between attempts.
func (c *Claude) retryWithBackoff(ctx context.Context, stage string, fn func(context.Context) error) error {
	var lastErr error
	backoff := c.retry.InitialBackoff

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait canceled: %w", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if attempt > 0 {
				slog.Info("advisory call recovered", "stage", stage, "attempts", attempt+1)
			}
			return nil
		}
		lastErr = err

		if attempt < c.retry.MaxRetries {
			slog.Warn("advisory call failed, retrying",
				"stage", stage, "attempt", attempt+1, "backoff", backoff, "error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
		}
	}
	return lastErr
}

// buildPrompt renders the stage instruction with the payload embedded as
// JSON. Each stage demands a single JSON object back; the extraction layer
// copes when the model decorates it anyway.
func buildPrompt(stage string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s payload: %w", stage, err)
	}

	switch stage {
	case StageAnalysis:
		return fmt.Sprintf(`You are an analog circuit design reviewer.
Given the measured metrics and the design targets below, judge whether the
circuit meets its targets.

Respond with ONLY a JSON object of this shape:
{"pass": bool, "reasons": [string], "suggestions": [{"component": string, "param": string, "action": string, "magnitude": string, "rationale": string}]}

Input:
%s`, data), nil

	case StageOptimize:
		return fmt.Sprintf(`You are an analog circuit optimizer.
Turn the analysis below into a concrete list of parameter changes.

Respond with ONLY a JSON object of this shape:
{"changes": [{"component": string, "param": string, "action": string, "value": string, "rationale": string}]}

Input:
%s`, data), nil

	case StageSizing:
		return fmt.Sprintf(`You are an analog circuit sizing tool.
Apply the requested changes to the base netlist and return the complete
edited netlist. Keep every line you do not change byte-identical. The
netlist must end with .end.

Respond with ONLY a JSON object of this shape:
{"netlist_text": string, "notes": string}

Input:
%s`, data), nil

	default:
		return "", fmt.Errorf("unknown advisory stage %q", stage)
	}
}
