package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultRetryDelay = time.Second
	maxResponseBytes  = 1 << 20
)

// chatClient is the part of a chat-style extractor that does not depend on
// the vendor: one POST per call, retried while the error is transient.
type chatClient struct {
	provider    string
	httpClient  *http.Client
	baseURL     string
	model       string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

func newChatClient(provider, baseURL, model string, temperature float64, timeout time.Duration, maxRetries int) chatClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return chatClient{
		provider:    provider,
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		maxRetries:  maxRetries,
		retryDelay:  defaultRetryDelay,
	}
}

// Provider returns the name of the LLM provider.
func (c *chatClient) Provider() string {
	return c.provider
}

// Model returns the model identifier being used.
func (c *chatClient) Model() string {
	return c.model
}

// withRetry runs call until it succeeds or fails with a permanent error. The
// wait doubles after every transient failure.
func (c *chatClient) withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: cancelled during retry wait: %w", c.provider, ctx.Err())
			case <-time.After(c.retryDelay << (attempt - 1)):
			}
		}

		err := call()
		if err == nil {
			return nil
		}
		if !isTransientError(err) || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%s: exhausted %d retries: %w", c.provider, c.maxRetries, lastErr)
}

// postJSON sends in to path and decodes a 200 response into out. Any other
// status is handed to decodeErr. Transport failures become transient
// APIErrors unless the context is done.
func (c *chatClient) postJSON(ctx context.Context, path string, header http.Header, in, out any, decodeErr func(status int, body []byte) *APIError) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: request failed: %w", c.provider, ctx.Err())
		}
		return &APIError{Provider: c.provider, Message: err.Error(), Type: "network_error"}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Provider: c.provider, Message: "read response: " + err.Error(), Type: "network_error"}
	}
	if resp.StatusCode != http.StatusOK {
		return decodeErr(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.provider, err)
	}
	return nil
}
