package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/ratelimit"
	"github.com/quantfold/papertrade/pkg/errors"
	"go.uber.org/zap"
)

const systemMessage = "You are a markets analyst for a paper-trading simulator. " +
	"Respond ONLY with compact JSON matching the provided schema. " +
	"Judge strictly from the given data; never invent news or numbers."

// OpenAIClient is an OpenAI-compatible chat-completions Advisor.
type OpenAIClient struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	limiter  *ratelimit.Limiter
	logger   *logger.Logger
}

// NewOpenAIClient creates a rate-limited advisor client against an
// OpenAI-compatible /chat/completions endpoint.
func NewOpenAIClient(log *logger.Logger, endpoint, apiKey, model string, timeout, minInterval time.Duration) *OpenAIClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &OpenAIClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		limiter: ratelimit.NewLimiter(1, minInterval),
		logger:  log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Finish  string      `json:"finish_reason"`
	} `json:"choices"`
}

// Judge implements Advisor.
func (c *OpenAIClient) Judge(ctx context.Context, prompt string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeAdvisorUnavailable, "rate limiter interrupted", err)
	}

	schema, err := SchemaFor(out)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAdvisorBadResponse, "failed to build response schema", err)
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemMessage + "\nSchema: " + schema},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
		MaxTokens:   800,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAdvisorBadResponse, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(errors.ErrCodeAdvisorUnavailable, "failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAdvisorUnavailable, "advisor request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAdvisorUnavailable, "failed to read advisor response", err)
	}

	// Rate limits are surfaced distinctly so callers can back off instead of
	// treating them as generic failures.
	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.Newf(errors.ErrCodeAdvisorRateLimited, "advisor rate limited: %s", strings.TrimSpace(string(body)))
	}

	if resp.StatusCode >= 300 {
		return errors.Newf(errors.ErrCodeAdvisorUnavailable, "advisor http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errors.Wrap(errors.ErrCodeAdvisorBadResponse, "advisor response is not valid JSON", err)
	}

	if len(parsed.Choices) == 0 {
		return errors.New(errors.ErrCodeAdvisorBadResponse, "advisor returned no choices")
	}

	content := extractJSON(parsed.Choices[0].Message.Content)

	if err := json.Unmarshal([]byte(content), out); err != nil {
		c.logger.Warn("Advisor output did not match schema",
			zap.String("content", parsed.Choices[0].Message.Content),
			zap.Error(err),
		)

		return errors.Wrap(errors.ErrCodeAdvisorBadResponse, "advisor output did not match schema", err)
	}

	return nil
}

// extractJSON strips markdown fences and surrounding prose that chat models
// sometimes wrap around their JSON output.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+3:]
		content = strings.TrimPrefix(content, "json")

		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}

	start := strings.IndexAny(content, "{[")
	if start > 0 {
		content = content[start:]
	}

	return strings.TrimSpace(content)
}
