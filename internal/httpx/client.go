// Package httpx provides the shared HTTP transport for provider clients:
// base-URL and header policy, a response-size ceiling, and a typed failure
// carrying the retryability decision.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bobmcallan/stockwatch/internal/common"
)

// Sentinel errors callers branch on without inspecting strings.
var (
	// ErrRateLimited wraps any 429 response.
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout marks a request that hit its deadline, as opposed to an
	// explicit cancellation.
	ErrTimeout = errors.New("request timed out")
	// ErrBodyTooLarge marks a response exceeding the byte ceiling. The body
	// is never silently truncated.
	ErrBodyTooLarge = errors.New("response body too large")
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 8 << 20 // 8 MiB

	// bodyExcerptLen bounds the error-message excerpt of a failed response.
	bodyExcerptLen = 512
)

// StatusError represents a non-2xx response.
type StatusError struct {
	StatusCode int
	Endpoint   string
	Body       string // size-bounded, UTF-8-safe excerpt
	Retryable  bool

	wrapped error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d on %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

// Unwrap exposes the rate-limit sentinel for 429 responses.
func (e *StatusError) Unwrap() error {
	return e.wrapped
}

// IsRetryable reports whether err is a transient transport failure:
// a timeout, a 429, or a 5xx.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// Client performs GET requests against a single provider base URL.
type Client struct {
	baseURL      string
	headers      map[string]string
	httpClient   *http.Client
	maxBodyBytes int64
	logger       *common.Logger
}

// Option configures the client
type Option func(*Client)

// WithHeader sets a default header sent with every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithTimeout sets the per-request wall-clock timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithMaxBodyBytes sets the response-size ceiling
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		c.maxBodyBytes = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying http.Client (tests)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a transport rooted at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		headers:      make(map[string]string),
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get performs a GET against path with optional query parameters and
// per-request headers. On 2xx it returns the raw body; on non-2xx it returns
// a *StatusError with the retryable flag set for 429 and all 5xx.
func (c *Client) Get(ctx context.Context, path string, params url.Values, headers map[string]string) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("HTTP request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportErr(ctx, path, err)
	}
	defer resp.Body.Close()

	// Read one byte past the ceiling so oversize is detected, not truncated.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, classifyTransportErr(ctx, path, err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%s: %w", path, ErrBodyTooLarge)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Body:       excerpt(body),
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			se.wrapped = ErrRateLimited
		}
		return nil, se
	}

	return body, nil
}

// classifyTransportErr maps a deadline hit to ErrTimeout while preserving
// explicit cancellation.
func classifyTransportErr(ctx context.Context, path string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", path, context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
		return fmt.Errorf("%s: %w", path, ErrTimeout)
	}
	return fmt.Errorf("failed to execute request %s: %w", path, err)
}

func isClientTimeout(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Timeout()
	}
	type timeouter interface{ Timeout() bool }
	var te timeouter
	return errors.As(err, &te) && te.Timeout()
}

// excerpt bounds the body to bodyExcerptLen bytes; any rune split by the
// byte cut is dropped rather than emitted as a partial sequence.
func excerpt(body []byte) string {
	s := string(body)
	if len(s) > bodyExcerptLen {
		s = s[:bodyExcerptLen]
	}
	return strings.ToValidUTF8(s, "")
}
