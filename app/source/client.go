package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent  = "eth-comb/1.0"
	defaultMaxRetries = 3
	maxBodySize       = 10 << 20
)

// StatusError is a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type ClientOptions struct {
	UserAgent  string
	Timeout    time.Duration
	RPS        float64 // <= 0 disables pacing
	MaxRetries int
	HTTPClient *http.Client
	// RetryInterval is the first backoff delay; doubled per attempt.
	RetryInterval time.Duration
}

// Client performs idempotent reads against external sources. Transport
// errors, 429 and 5xx responses are retried with exponential backoff; a
// timed out attempt aborts the call.
type Client struct {
	http          *http.Client
	userAgent     string
	timeout       time.Duration
	limiter       *rate.Limiter
	maxRetries    int
	retryInterval time.Duration
	headers       http.Header
}

func NewClient(opts ClientOptions) *Client {
	c := &Client{
		http:          opts.HTTPClient,
		userAgent:     opts.UserAgent,
		timeout:       opts.Timeout,
		limiter:       rate.NewLimiter(rate.Inf, 1),
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
		headers:       http.Header{},
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if opts.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.retryInterval <= 0 {
		c.retryInterval = 500 * time.Millisecond
	}
	return c
}

// WithHeader returns a copy of the client sending an extra header on every request.
func (c *Client) WithHeader(key, value string) *Client {
	clone := *c
	clone.headers = c.headers.Clone()
	clone.headers.Set(key, value)
	return &clone
}

func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil, "")
}

func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.do(ctx, http.MethodGet, url, nil, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// PostJSON is meant for read-only queries such as GraphQL lookups; it is
// retried like a GET.
func (c *Client) PostJSON(ctx context.Context, url string, payload, v any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, url, data, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte, accept string) ([]byte, error) {
	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		var body []byte
		err := WithTimeout(ctx, c.timeout, func(ctx context.Context) error {
			var err error
			body, err = c.roundTrip(ctx, method, url, payload, accept)
			return err
		})
		if err == nil {
			return body, nil
		}

		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, backoff.Permanent(err)
		}
		if errors.Is(err, ErrTimeout) || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}

		slog.Debug("Request failed, retrying", "url", url, "attempt", attempt, "error", err)
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)
	return backoff.RetryWithData[[]byte](op, b)
}

func (c *Client) roundTrip(ctx context.Context, method, url string, payload []byte, accept string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
