package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/stockwatch/internal/models"
)

// PriceStore persists daily price bars and answers the coverage questions
// the collector needs to size its fetch windows.
type PriceStore interface {
	// UpsertDailyPrices writes a batch of bars, inserting new (symbol, date)
	// rows and replacing existing ones. Returns the number of rows affected.
	UpsertDailyPrices(ctx context.Context, prices []models.DailyPrice) (int64, error)

	// LastPriceDates returns the most recent stored date per symbol.
	// Symbols with no stored rows are absent from the map.
	LastPriceDates(ctx context.Context, symbols []string) (map[string]time.Time, error)

	// LoadPriceWindow returns stored bars for symbol with date >= from,
	// ascending by date.
	LoadPriceWindow(ctx context.Context, symbol string, from time.Time) ([]models.DailyPrice, error)
}

// FXStore persists daily FX rates.
type FXStore interface {
	UpsertFXRates(ctx context.Context, rates []models.FXRate) (int64, error)

	// LastFXDates returns the most recent stored date per pair.
	LastFXDates(ctx context.Context, pairs []string) (map[string]time.Time, error)

	// LatestFXRates returns the newest stored rate per pair, for reporting.
	LatestFXRates(ctx context.Context, pairs []string) ([]models.FXRate, error)
}
