// Package interfaces defines service contracts for stockwatch
package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/stockwatch/internal/models"
)

// Failure classes shared across providers so the orchestrator can branch
// without knowing provider types.
var (
	// ErrInvalidSymbol marks a symbol the provider does not know (404).
	// Permanent: the orchestrator skips the symbol and continues.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrMaxPages marks a paginated fetch that hit its page ceiling before
	// reaching the requested start date. Distinct from ordinary I/O failure.
	ErrMaxPages = errors.New("max pages reached")
)

// PriceSource is the single capability the orchestrator depends on:
// fetch daily prices for one symbol over [from, to], ascending by date.
type PriceSource interface {
	// Name returns the source identifier recorded on fetched rows.
	Name() string

	// FetchDailyPrices retrieves daily bars for symbol over [from, to].
	FetchDailyPrices(ctx context.Context, symbol string, from, to time.Time) ([]models.DailyPrice, error)
}

// FXSource fetches daily rates for one currency pair over [from, to],
// ascending by date.
type FXSource interface {
	Name() string
	FetchRates(ctx context.Context, pair string, from, to time.Time) ([]models.FXRate, error)
}
