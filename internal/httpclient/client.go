// Package httpclient is the retrying, rate-limited HTTP client every
// outbound SEC EDGAR request goes through.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ultrarare-tech/secfetch/internal/ratelimit"
)

// Defaults mirror the contract-level numeric policies in spec.md §4.2.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 6
)

// MissingUserAgentError is returned when Client is constructed without a
// valid contact User-Agent.
type MissingUserAgentError struct {
	UserAgent string
}

func (e *MissingUserAgentError) Error() string {
	return fmt.Sprintf("httpclient: a contact user-agent containing '@' is required, got %q", e.UserAgent)
}

// StatusError is returned for a non-retryable (4xx, non-429) response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: %s returned status %d", e.URL, e.StatusCode)
}

// Client performs GET requests with retries, honoring a shared RateLimiter
// and the SEC's rate-limit response headers.
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    *ratelimit.Limiter
	maxRetries int
}

// Option configures a Client.
type Option func(*Client)

// WithMaxRetries overrides the default retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New constructs a Client. userAgent must be non-empty and contain '@'.
func New(userAgent string, limiter *ratelimit.Limiter, opts ...Option) (*Client, error) {
	if userAgent == "" || !strings.Contains(userAgent, "@") {
		return nil, &MissingUserAgentError{UserAgent: userAgent}
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:  userAgent,
		limiter:    limiter,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetBytes fetches url and returns the raw response body.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.request(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// GetText fetches url and returns the response body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	b, err := c.GetBytes(ctx, url)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetJSON fetches url and decodes the response body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v interface{}) error {
	resp, err := c.request(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// request implements the retry protocol from spec.md §4.2:
//  1. acquire a rate-limit permit
//  2. issue the GET
//  3. on 429, sleep Retry-After (if a positive integer) else min(60, 2^attempt + rand[0,1))
//  4. on 5xx, sleep min(30, 0.5*2^attempt + rand[0,1))
//  5. on timeout/transport error, sleep min(10, 0.5*attempt + rand[0,1))
//  6. otherwise raise on 4xx (non-429), return on 2xx/3xx
func (c *Client) request(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: building request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Connection", "keep-alive")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			sleepFor(ctx, minDuration(10*time.Second, time.Duration(0.5*float64(attempt)*float64(time.Second))+jitter()))
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			sleep := retryAfterOrBackoff(resp.Header.Get("Retry-After"), attempt)
			drainAndClose(resp)
			lastErr = fmt.Errorf("httpclient: %s rate limited (429)", url)
			sleepFor(ctx, sleep)
			continue

		case resp.StatusCode >= 500 && resp.StatusCode < 600:
			sleep := minDuration(30*time.Second, time.Duration(0.5*math.Pow(2, float64(attempt))*float64(time.Second))+jitter())
			drainAndClose(resp)
			lastErr = &StatusError{URL: url, StatusCode: resp.StatusCode}
			sleepFor(ctx, sleep)
			continue

		case resp.StatusCode >= 400:
			drainAndClose(resp)
			return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}

		default:
			return resp, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("httpclient: request failed without error: %s", url)
}

func retryAfterOrBackoff(header string, attempt int) time.Duration {
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return minDuration(60*time.Second, time.Duration(math.Pow(2, float64(attempt))*float64(time.Second))+jitter())
}

func jitter() time.Duration {
	return time.Duration(rand.Float64() * float64(time.Second))
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func sleepFor(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
