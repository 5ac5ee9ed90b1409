// Package ollama provides a retrying HTTP client for an Ollama-compatible
// completion service.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the local Ollama endpoint.
	DefaultBaseURL = "http://localhost:11434"
	// DefaultTimeout bounds a single generate or chat call.
	DefaultTimeout = 60 * time.Second
	// DefaultMaxRetries is the attempt cap for one API call.
	DefaultMaxRetries = 3

	// pullTimeout bounds a model download, which can take much longer
	// than a completion call.
	pullTimeout = time.Hour
)

// Params are the generation parameters sent with every completion call.
type Params struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultParams returns the generation parameters used when the
// configuration does not override them.
func DefaultParams() Params {
	return Params{Temperature: 0.7, TopP: 0.9, MaxTokens: 2000}
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelInfo describes one model known to the completion service.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ConnectionError indicates that the completion service could not be
// reached after exhausting all retry attempts.
type ConnectionError struct {
	// URL is the endpoint that failed.
	URL string
	// Attempts is the number of attempts made.
	Attempts int
	// Err is the last underlying failure.
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("completion service unreachable at %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

// Unwrap returns the last underlying failure.
func (e *ConnectionError) Unwrap() error { return e.Err }

// Config holds the client settings.
type Config struct {
	// BaseURL is the service root, e.g. http://localhost:11434.
	BaseURL string
	// Timeout bounds a single completion call.
	Timeout time.Duration
	// MaxRetries is the attempt cap for one API call.
	MaxRetries int
	// Backoff is the base wait; attempt n sleeps Backoff * 2^n.
	// Tests shrink it; production leaves the 1s default.
	Backoff time.Duration
}

// Client talks to the completion service with transport-level retries.
type Client struct {
	baseURL    string
	http       *http.Client
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

// New creates a client, filling unset config fields with defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       &http.Client{},
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
	Params
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends a single prompt and returns the generated text.
// Transport failures are retried; a malformed response body is not an
// error and yields empty content.
func (c *Client) Generate(ctx context.Context, model, prompt, system string, params Params) (string, error) {
	body, err := c.doJSON(ctx, http.MethodPost, "/api/generate", generateRequest{
		Model:  model,
		Prompt: prompt,
		System: system,
		Params: params,
	}, c.timeout)
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Printf("[ollama] malformed generate response: %v", err)
		return "", nil
	}
	return resp.Response, nil
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	System   string    `json:"system,omitempty"`
	Stream   bool      `json:"stream"`
	Params
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Chat sends a multi-turn conversation and returns the reply content.
// The system prompt travels as the reserved "system" field, not as a
// message.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, system string, params Params) (string, error) {
	body, err := c.doJSON(ctx, http.MethodPost, "/api/chat", chatRequest{
		Model:    model,
		Messages: messages,
		System:   system,
		Params:   params,
	}, c.timeout)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Printf("[ollama] malformed chat response: %v", err)
		return "", nil
	}
	return resp.Message.Content, nil
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ListModels returns the models available on the service.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/api/tags", nil, c.timeout)
	if err != nil {
		return nil, err
	}

	var resp tagsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Printf("[ollama] malformed tags response: %v", err)
		return nil, nil
	}
	return resp.Models, nil
}

// PullModel downloads a model unless it is already present locally.
// It reports success as a boolean and never returns an error: pull is an
// optional convenience and failures are only logged.
func (c *Client) PullModel(ctx context.Context, name string) bool {
	models, err := c.ListModels(ctx)
	if err != nil {
		log.Printf("[ollama] list models before pull: %v", err)
		return false
	}
	for _, m := range models {
		if m.Name == name {
			log.Printf("[ollama] model %s already available", name)
			return true
		}
	}

	log.Printf("[ollama] pulling model %s", name)
	if _, err := c.doJSON(ctx, http.MethodPost, "/api/pull", map[string]any{"name": name, "stream": false}, pullTimeout); err != nil {
		log.Printf("[ollama] pull model %s: %v", name, err)
		return false
	}
	return true
}

// doJSON performs one API call with the retry policy: every transport
// failure (connection error, timeout, non-2xx status) is retried with
// exponential backoff until maxRetries attempts have been made.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any, timeout time.Duration) ([]byte, error) {
	url := c.baseURL + path

	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		body, err := c.doOnce(ctx, method, url, reqBody, timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt < c.maxRetries {
			wait := c.backoff * (1 << attempt)
			log.Printf("[ollama] request to %s failed: %v, retrying in %s", url, err, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, &ConnectionError{URL: url, Attempts: attempt, Err: ctx.Err()}
			}
		}
	}

	return nil, &ConnectionError{URL: url, Attempts: c.maxRetries, Err: lastErr}
}

func (c *Client) doOnce(ctx context.Context, method, url string, body []byte, timeout time.Duration) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return respBody, nil
}
