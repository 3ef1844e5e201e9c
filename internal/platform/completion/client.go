// Package completion wraps an OpenAI-compatible chat-completions endpoint.
// The provider is best-effort by contract: a single attempt per call, and any
// transport error, timeout, non-2xx status or empty reply is reported as
// ErrUnavailable so that callers can take their fallback path.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codequest/internal/common/logger"

	"go.uber.org/zap"
)

// ErrUnavailable signals that no completion could be produced. Callers must
// degrade to mock/template behavior instead of propagating it.
var ErrUnavailable = errors.New("completion provider unavailable")

type Client interface {
	IsAvailable() bool
	Complete(ctx context.Context, prompt string) (string, error)
}

type openAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewClient(opts Options) Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := opts.Model
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &openAIClient{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.NewNamedLogger("completion"),
	}
	if !c.IsAvailable() {
		c.log.Warn("OpenAI API key is not configured, completion features are disabled")
	}
	return c
}

func (c *openAIClient) IsAvailable() bool {
	return c.apiKey != "" && c.apiKey != "your_openai_api_key_here"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat-completion request and returns the raw assistant
// content. The prompt is expected to describe a JSON schema; JSON mode is
// requested but the returned text is not guaranteed to parse.
func (c *openAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.IsAvailable() {
		return "", ErrUnavailable
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant that provides structured responses in a valid JSON format."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("completion: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("completion: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warnf("completion request failed: %v", err)
		return "", ErrUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.log.Warnf("completion response read failed: %v", err)
		return "", ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warnf("completion request returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
		return "", ErrUnavailable
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.log.Warnf("completion response is not valid JSON: %v", err)
		return "", ErrUnavailable
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		c.log.Warn("completion returned empty content")
		return "", ErrUnavailable
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
