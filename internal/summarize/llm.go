package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultEndpoint is the OpenAI chat completions API.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultAttempts = 3
	httpTimeout     = 60 * time.Second
)

// ErrNoChoices is returned when the API answers without any generated text.
var ErrNoChoices = errors.New("empty choices in response")

// statusError is a non-200 answer from the API.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("api returned status %d", e.code)
}

// retryable reports whether a status is worth another attempt.
func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	apiKey     string
	endpoint   string
	attempts   int
	client     *http.Client
	newBackOff func() backoff.BackOff
}

// NewOpenAI creates a client that makes up to attempts tries per request.
func NewOpenAI(apiKey, endpoint string, attempts int) *OpenAIClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &OpenAIClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		attempts: attempts,
		client:   &http.Client{Timeout: httpTimeout},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
}

// Complete sends req, retrying transport errors, 429 and 5xx answers.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	op := func() (string, error) {
		text, err := c.call(ctx, req)
		if err == nil {
			return text, nil
		}
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return "", backoff.Permanent(err)
		}
		if errors.Is(err, ErrNoChoices) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.attempts)),
	)
}

// call makes one request. Only the system and user messages are sent, so
// every request starts from an empty conversation.
func (c *OpenAIClient) call(ctx context.Context, req Request) (string, error) {
	reqBody := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		User:        req.SessionKey,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return chatResp.Choices[0].Message.Content, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	User        string        `json:"user,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}
