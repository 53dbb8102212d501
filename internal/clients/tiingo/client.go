// Package tiingo provides a Tiingo API client for US-listed equities.
package tiingo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/stockwatch/internal/common"
	"github.com/bobmcallan/stockwatch/internal/httpx"
	"github.com/bobmcallan/stockwatch/internal/interfaces"
	"github.com/bobmcallan/stockwatch/internal/models"
)

const (
	defaultBaseURL = "https://api.tiingo.com"

	dateFormat = "2006-01-02"
)

// Client is a Tiingo API client.
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

// NewClient creates a Tiingo client authenticated by apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
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
			httpx.WithHeader("Authorization", "Token "+apiKey),
			httpx.WithHeader("Content-Type", "application/json"),
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
	return "tiingo"
}

type dailyBar struct {
	Date        string  `json:"date"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	AdjClose    float64 `json:"adjClose"`
	Volume      int64   `json:"volume"`
	SplitFactor float64 `json:"splitFactor"`
	DivCash     float64 `json:"divCash"`
}

// FetchDailyPrices retrieves daily bars for symbol over [from, to] in a
// single request.
//
// Tiingo signals rate limiting with a 200 response whose body is a JSON
// object (an error message) instead of the expected array, so acceptance is
// decided by payload shape: anything that does not open an array is treated
// as the rate-limited sentinel and retried. A 404 means the ticker is
// unknown and maps to interfaces.ErrInvalidSymbol.
func (c *Client) FetchDailyPrices(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyPrice, error) {
	params := url.Values{}
	params.Set("startDate", from.Format(dateFormat))
	params.Set("endDate", to.Format(dateFormat))

	path := "/tiingo/daily/" + url.PathEscape(symbol) + "/prices"

	var body []byte
	err := httpx.DoRateLimited(ctx, c.limiter, c.retry, httpx.IsRetryable, func(ctx context.Context) error {
		var err error
		body, err = c.http.Get(ctx, path, params, nil)
		if err != nil {
			return err
		}
		if !isArrayPayload(body) {
			return fmt.Errorf("%s returned non-array payload: %w", path, httpx.ErrRateLimited)
		}
		return nil
	})
	if err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", symbol, interfaces.ErrInvalidSymbol)
		}
		return nil, fmt.Errorf("failed to fetch daily prices for %s: %w", symbol, err)
	}

	var bars []dailyBar
	if err := json.Unmarshal(body, &bars); err != nil {
		return nil, fmt.Errorf("failed to parse daily prices for %s: %w", symbol, err)
	}

	prices := make([]models.DailyPrice, 0, len(bars))
	for _, b := range bars {
		// Dates arrive as RFC3339 timestamps; only the calendar day matters.
		date, err := time.Parse(time.RFC3339, b.Date)
		if err != nil {
			date, err = time.Parse(dateFormat, b.Date)
			if err != nil {
				return nil, fmt.Errorf("failed to parse bar date %q for %s: %w", b.Date, symbol, err)
			}
		}

		prices = append(prices, models.DailyPrice{
			Symbol:      symbol,
			Date:        time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
			Open:        b.Open,
			High:        b.High,
			Low:         b.Low,
			Close:       b.Close,
			AdjClose:    b.AdjClose,
			Volume:      b.Volume,
			Source:      c.Name(),
			SplitFactor: b.SplitFactor,
			DivCash:     b.DivCash,
		})
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Date.Before(prices[j].Date)
	})

	c.logger.Debug().Str("symbol", symbol).Int("rows", len(prices)).Msg("Tiingo prices fetched")

	return prices, nil
}

// isArrayPayload reports whether the body, after leading whitespace, opens
// a JSON array.
func isArrayPayload(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

var _ interfaces.PriceSource = (*Client)(nil)
