// Package jquants provides a J-Quants API client for Tokyo-listed equities.
//
// Daily quotes are served newest-first in pages bounded by an end-date
// cursor, and every numeric field arrives as a string.
package jquants

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/stockwatch/internal/common"
	"github.com/bobmcallan/stockwatch/internal/httpx"
	"github.com/bobmcallan/stockwatch/internal/interfaces"
	"github.com/bobmcallan/stockwatch/internal/models"
)

const (
	defaultBaseURL  = "https://api.jquants.com/v1"
	defaultMaxPages = 20

	// tokenRenewMargin renews the bearer token this long before its stated
	// expiry so in-flight requests never race the cutoff.
	tokenRenewMargin = 5 * time.Minute

	dateFormat = "2006-01-02"
)

// Client is a J-Quants API client. It owns the process-wide bearer token:
// callers never see the raw token or its expiry.
type Client struct {
	http    *httpx.Client
	limiter *rate.Limiter
	retry   httpx.Policy

	refreshToken string
	maxPages     int
	logger       *common.Logger

	mu          sync.Mutex
	idToken     string
	tokenExpiry time.Time
}

// Option configures the client
type Option func(*clientOptions)

type clientOptions struct {
	baseURL   string
	rateLimit int
	timeout   time.Duration
	maxPages  int
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

// WithMaxPages sets the pagination page ceiling
func WithMaxPages(n int) Option {
	return func(o *clientOptions) {
		o.maxPages = n
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

// NewClient creates a J-Quants client authenticated by refreshToken.
func NewClient(refreshToken string, opts ...Option) *Client {
	o := &clientOptions{
		baseURL:  defaultBaseURL,
		timeout:  httpx.DefaultTimeout,
		maxPages: defaultMaxPages,
		retry:    httpx.DefaultPolicy(),
		logger:   common.NewDefaultLogger(),
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
		limiter:      limiter,
		retry:        o.retry,
		refreshToken: refreshToken,
		maxPages:     o.maxPages,
		logger:       o.logger,
	}
}

// Name returns the source identifier recorded on fetched rows.
func (c *Client) Name() string {
	return "jquants"
}

type tokenResponse struct {
	IDToken   string `json:"idToken"`
	ExpiresIn int64  `json:"expiresIn"`
}

// getToken returns a valid bearer token, fetching or renewing under the
// lock so concurrent callers block on one renewal instead of issuing
// duplicates.
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.idToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenRenewMargin)) {
		return c.idToken, nil
	}

	params := url.Values{}
	params.Set("refreshtoken", c.refreshToken)

	var body []byte
	err := httpx.DoRateLimited(ctx, c.limiter, c.retry, httpx.IsRetryable, func(ctx context.Context) error {
		var err error
		body, err = c.http.Get(ctx, "/token/refresh", params, nil)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.IDToken == "" {
		return "", fmt.Errorf("token response missing idToken")
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}

	c.idToken = tr.IDToken
	c.tokenExpiry = time.Now().Add(lifetime)
	c.logger.Debug().Time("expiry", c.tokenExpiry).Msg("J-Quants token refreshed")

	return c.idToken, nil
}

type dailyQuotesResponse struct {
	DailyQuotes []dailyQuote `json:"daily_quotes"`
}

type dailyQuote struct {
	Date            string      `json:"Date"`
	Code            string      `json:"Code"`
	Open            flexFloat64 `json:"Open"`
	High            flexFloat64 `json:"High"`
	Low             flexFloat64 `json:"Low"`
	Close           flexFloat64 `json:"Close"`
	AdjustmentClose flexFloat64 `json:"AdjustmentClose"`
	Volume          flexFloat64 `json:"Volume"`
}

// FetchDailyPrices retrieves daily bars for symbol over [from, to].
//
// Pages are requested newest-first: each page's oldest date, minus one day,
// becomes the next page's end cursor. The walk stops once the oldest date
// reaches from, the page comes back empty, or the cursor stops advancing.
// Hitting the page ceiling first returns interfaces.ErrMaxPages.
func (c *Client) FetchDailyPrices(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyPrice, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"Authorization": "Bearer " + token}

	var prices []models.DailyPrice
	cursor := to
	var lastOldest time.Time

	for page := 0; ; page++ {
		if page >= c.maxPages {
			return nil, fmt.Errorf("%s over %s..%s: %w after %d pages",
				symbol, from.Format(dateFormat), to.Format(dateFormat), interfaces.ErrMaxPages, c.maxPages)
		}

		params := url.Values{}
		params.Set("code", symbol)
		params.Set("from", from.Format(dateFormat))
		params.Set("to", cursor.Format(dateFormat))

		var body []byte
		err := httpx.DoRateLimited(ctx, c.limiter, c.retry, httpx.IsRetryable, func(ctx context.Context) error {
			var err error
			body, err = c.http.Get(ctx, "/prices/daily_quotes", params, headers)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch daily quotes for %s: %w", symbol, err)
		}

		var resp dailyQuotesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse daily quotes for %s: %w", symbol, err)
		}

		var oldest time.Time
		kept := 0
		for _, q := range resp.DailyQuotes {
			if q.Date == "" {
				continue // provider's blank-row convention
			}
			date, err := time.Parse(dateFormat, q.Date)
			if err != nil {
				return nil, fmt.Errorf("failed to parse quote date %q for %s: %w", q.Date, symbol, err)
			}
			if date.IsZero() {
				continue
			}

			prices = append(prices, models.DailyPrice{
				Symbol:   symbol,
				Date:     date,
				Open:     float64(q.Open),
				High:     float64(q.High),
				Low:      float64(q.Low),
				Close:    float64(q.Close),
				AdjClose: float64(q.AdjustmentClose),
				Volume:   int64(q.Volume),
				Source:   c.Name(),
			})
			kept++

			if oldest.IsZero() || date.Before(oldest) {
				oldest = date
			}
		}

		c.logger.Debug().
			Str("symbol", symbol).
			Int("page", page).
			Int("rows", kept).
			Msg("J-Quants page fetched")

		if kept == 0 {
			break // range exhausted
		}
		if !oldest.After(from) {
			break
		}
		if page > 0 && oldest.Equal(lastOldest) {
			// Stale cursor: the provider keeps returning the same trailing
			// window, so further pages cannot add data.
			c.logger.Warn().Str("symbol", symbol).Msg("pagination cursor did not advance, stopping")
			break
		}
		lastOldest = oldest
		cursor = oldest.AddDate(0, 0, -1)
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Date.Before(prices[j].Date)
	})

	return prices, nil
}

var _ interfaces.PriceSource = (*Client)(nil)
