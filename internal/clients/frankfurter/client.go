// Package frankfurter provides a Frankfurter API client for daily FX rates.
// The API is unauthenticated.
package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/stockwatch/internal/common"
	"github.com/bobmcallan/stockwatch/internal/httpx"
	"github.com/bobmcallan/stockwatch/internal/interfaces"
	"github.com/bobmcallan/stockwatch/internal/models"
)

const (
	defaultBaseURL = "https://api.frankfurter.app"

	dateFormat = "2006-01-02"
)

// Client is a Frankfurter API client.
type Client struct {
	http    *httpx.Client
	limiter *rate.Limiter
	retry   httpx.Policy
	logger  *common.Logger
}

// Option configures the client
type Option func(*clientOptions)

type clientOptions struct {
	baseURL   string
	rateLimit int
	timeout   time.Duration
	retry     httpx.Policy
	logger    *common.Logger
}

// WithBaseURL sets a custom base URL
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithRateLimit sets the shared requests-per-second budget
func WithRateLimit(rps int) Option {
	return func(o *clientOptions) {
		o.rateLimit = rps
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// WithRetryPolicy sets the retry policy
func WithRetryPolicy(p httpx.Policy) Option {
	return func(o *clientOptions) {
		o.retry = p
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient creates a Frankfurter client.
func NewClient(opts ...Option) *Client {
	o := &clientOptions{
		baseURL: defaultBaseURL,
		timeout: httpx.DefaultTimeout,
		retry:   httpx.DefaultPolicy(),
		logger:  common.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}

	var limiter *rate.Limiter
	if o.rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.rateLimit), 1)
	}

	return &Client{
		http: httpx.NewClient(o.baseURL,
			httpx.WithTimeout(o.timeout),
			httpx.WithLogger(o.logger),
		),
		limiter: limiter,
		retry:   o.retry,
		logger:  o.logger,
	}
}

// Name returns the source identifier recorded on fetched rows.
func (c *Client) Name() string {
	return "frankfurter"
}

// SplitPair splits "USD/JPY" into base and quote currency codes.
func SplitPair(pair string) (base, quote string, err error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 || len(parts[0]) != 3 || len(parts[1]) != 3 {
		return "", "", fmt.Errorf("invalid currency pair %q, want BASE/QUOTE", pair)
	}
	return parts[0], parts[1], nil
}

type timeSeriesResponse struct {
	Base  string                        `json:"base"`
	Rates map[string]map[string]float64 `json:"rates"`
}

// FetchRates retrieves daily rates for pair ("USD/JPY") over [from, to] in
// one request. The response nests rates per date per target currency; a date
// present in the range but missing the requested quote currency is a data
// integrity failure, not something to retry.
func (c *Client) FetchRates(ctx context.Context, pair string, from, to time.Time) ([]models.FXRate, error) {
	base, quote, err := SplitPair(pair)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("from", base)
	params.Set("to", quote)

	path := "/" + from.Format(dateFormat) + ".." + to.Format(dateFormat)

	var body []byte
	err = httpx.DoRateLimited(ctx, c.limiter, c.retry, httpx.IsRetryable, func(ctx context.Context) error {
		var err error
		body, err = c.http.Get(ctx, path, params, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates for %s: %w", pair, err)
	}

	var resp timeSeriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse rates for %s: %w", pair, err)
	}

	rates := make([]models.FXRate, 0, len(resp.Rates))
	for dateStr, byCurrency := range resp.Rates {
		date, err := time.Parse(dateFormat, dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate date %q for %s: %w", dateStr, pair, err)
		}

		value, ok := byCurrency[quote]
		if !ok {
			return nil, fmt.Errorf("rates for %s on %s missing currency %s", pair, dateStr, quote)
		}

		rates = append(rates, models.FXRate{
			Pair:   pair,
			Date:   date,
			Rate:   value,
			Source: c.Name(),
		})
	}

	sort.Slice(rates, func(i, j int) bool {
		return rates[i].Date.Before(rates[j].Date)
	})

	c.logger.Debug().Str("pair", pair).Int("rows", len(rates)).Msg("FX rates fetched")

	return rates, nil
}

var _ interfaces.FXSource = (*Client)(nil)
