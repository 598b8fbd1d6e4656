package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/courseforge/quizgen/internal/pipeline/metrics"
)

// Config holds Canvas LMS API settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"` // service-account token for dev/test setups
	Timeout time.Duration `yaml:"timeout"`
}

// RetryConfig defines retrieval retry behavior: bounded exponential backoff
// with a capped maximum delay.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     4,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        15 * time.Second,
	BackoffMultiple: 2.0,
}

// Client talks to the Canvas LMS REST API for module-content retrieval and
// quiz export. Auth tokens are supplied per call; token refresh is the
// caller's concern.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
}

// NewClient creates a Canvas API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: DefaultRetryConfig,
	}
}

// do performs one authenticated request with retry on transient failures.
// 4xx responses other than 429 are permanent and returned immediately.
func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		err := c.doOnce(ctx, method, path, token, payload, out)
		if err == nil {
			metrics.CanvasCalls.WithLabelValues(op, "ok").Inc()
			return nil
		}
		lastErr = err

		var httpErr *HTTPError
		if isPermanent(err, &httpErr) {
			metrics.CanvasCalls.WithLabelValues(op, "permanent_error").Inc()
			return err
		}
		metrics.CanvasCalls.WithLabelValues(op, "retryable_error").Inc()
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, c.retry.MaxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path, token string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("canvas call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.retry.InitialDelay) * math.Pow(c.retry.BackoffMultiple, float64(attempt))
	if delay > float64(c.retry.MaxDelay) {
		delay = float64(c.retry.MaxDelay)
	}
	return time.Duration(delay)
}

// HTTPError is a non-2xx Canvas response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("canvas http %d: %s", e.Status, e.Body)
}

// isPermanent reports whether the error should not be retried: any 4xx
// except 429. Network errors and 5xx are transient.
func isPermanent(err error, httpErr **HTTPError) bool {
	if he, ok := err.(*HTTPError); ok {
		*httpErr = he
		return he.Status >= 400 && he.Status < 500 && he.Status != http.StatusTooManyRequests
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func escape(s string) string {
	return url.PathEscape(s)
}
