package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/referee-finder/internal/domain"
)

// DefaultUserAgent is sent when a provider does not configure its own.
const DefaultUserAgent = "Helixir-RefereeFinder/1.0"

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 10 << 20

// Metrics receives per-request telemetry. *observability.Metrics satisfies it.
type Metrics interface {
	RecordSourceRequest(source, endpoint string, durationSeconds float64)
	RecordSourceRequestFailed(source, endpoint, errorType string)
	RecordSourceRateLimited(source string)
}

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Source names the provider in errors, logs and metrics.
	Source string

	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MinInterval is the minimum spacing between requests.
	MinInterval time.Duration

	// DailyBudget caps requests per UTC day. Zero means unlimited.
	DailyBudget int

	// MaxRetries is the maximum number of retry attempts. Negative disables retries.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "x-api-key").
	APIKeyHeader string

	// Metrics is optional.
	Metrics Metrics
}

// HTTPClient wraps http.Client with rate limiting, retries and typed errors.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with its own rate limiter.
// The client applies rate limiting before each request and automatically
// retries on 429 (Too Many Requests) and 5xx server errors.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Source == "" {
		cfg.Source = "http"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiterWithConfig(RateLimiterConfig{
			RatePerSecond: cfg.RateLimit,
			Burst:         cfg.BurstSize,
			MinInterval:   cfg.MinInterval,
			DailyBudget:   cfg.DailyBudget,
		}),
		config: cfg,
	}
}

// Source returns the provider name this client reports under.
func (c *HTTPClient) Source() string {
	return c.config.Source
}

// RateLimiter exposes the limiter shared by all requests of this client.
func (c *HTTPClient) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// Do executes an HTTP request with rate limiting and retries.
// It waits for the rate limiter before each attempt, sets the User-Agent
// and optional API key headers, and retries on 429 (honouring Retry-After),
// on 5xx and on transport errors.
//
// Transport failures come back as *domain.NetworkError; a status that is
// still retryable after the last attempt comes back as *domain.ExternalAPIError.
// Other responses, including 4xx, are returned to the caller unread.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	endpoint := endpointLabel(req)
	reqURL := redactURL(req)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctxErr := req.Context().Err(); ctxErr != nil {
					return nil, ctxErr
				}
			}
			c.recordFailure(endpoint, "network")
			lastErr = domain.NewNetworkError(c.config.Source, reqURL, err)
			if attempt < c.config.MaxRetries {
				if err := c.waitForRetry(req.Context(), c.config.RetryDelay); err != nil {
					return nil, err
				}
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}
			return nil, lastErr
		}
		c.recordRequest(endpoint, time.Since(start))

		if c.shouldRetry(resp.StatusCode) {
			retryDelay := c.getRetryDelay(resp)
			if resp.StatusCode == http.StatusTooManyRequests && c.config.Metrics != nil {
				c.config.Metrics.RecordSourceRateLimited(c.config.Source)
			}
			c.recordFailure(endpoint, "status_"+strconv.Itoa(resp.StatusCode))

			body := readErrorBody(resp)
			lastErr = domain.NewExternalAPIError(c.config.Source, resp.StatusCode, reqURL, body)

			if attempt < c.config.MaxRetries {
				if err := c.waitForRetry(req.Context(), retryDelay); err != nil {
					return nil, err
				}
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}
			return nil, lastErr
		}

		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

// Get issues a GET and returns the body of a 200 response.
// 404 maps to *domain.NotFoundError (entity "record", id = the request URL);
// any other non-200 maps to *domain.ExternalAPIError.
func (c *HTTPClient) Get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, domain.NewNotFoundError("record", redactURL(req))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewExternalAPIError(c.config.Source, resp.StatusCode, redactURL(req), readErrorBody(resp))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.NewNetworkError(c.config.Source, redactURL(req), fmt.Errorf("reading response: %w", err))
	}
	return body, nil
}

// shouldRetry returns true if the status code indicates we should retry.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// getRetryDelay respects the Retry-After header if present, otherwise uses
// the configured retry delay.
func (c *HTTPClient) getRetryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RetryDelay
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return c.config.RetryDelay
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func (c *HTTPClient) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resetRequestBody resets the request body for retry if possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}

func (c *HTTPClient) recordRequest(endpoint string, d time.Duration) {
	if c.config.Metrics != nil {
		c.config.Metrics.RecordSourceRequest(c.config.Source, endpoint, d.Seconds())
	}
}

func (c *HTTPClient) recordFailure(endpoint, errorType string) {
	if c.config.Metrics != nil {
		c.config.Metrics.RecordSourceRequestFailed(c.config.Source, endpoint, errorType)
	}
}

// EscapePath escapes each slash-separated segment of p and keeps the slashes,
// so identifiers such as DOIs can be placed in a request path.
func EscapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// readErrorBody drains and closes resp.Body, returning up to 1KB of it.
func readErrorBody(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return strings.TrimSpace(string(body))
}

// endpointLabel keeps metric label cardinality low: the last path segment
// unless it looks like an identifier.
func endpointLabel(req *http.Request) string {
	base := path.Base(req.URL.Path)
	if base == "." || base == "/" {
		return "root"
	}
	for _, r := range base {
		if r >= '0' && r <= '9' {
			return path.Base(path.Dir(req.URL.Path))
		}
	}
	return base
}

// redactURL drops query parameters that carry credentials.
func redactURL(req *http.Request) string {
	u := *req.URL
	q := u.Query()
	for _, key := range []string{"api_key", "apikey", "key"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
