package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/stockwatch/internal/common"
	"github.com/bobmcallan/stockwatch/internal/models"
)

// newTestStore connects to the database named by STOCKWATCH_TEST_DATABASE_URL,
// runs migrations, and clears both tables. Tests are skipped when the
// variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("STOCKWATCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("STOCKWATCH_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, url, WithLogger(common.NewSilentLogger()))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))

	_, err = store.pool.Exec(ctx, `TRUNCATE daily_prices, fx_rates`)
	require.NoError(t, err)

	return store
}

func testDay(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func testBar(symbol, date string, close float64) models.DailyPrice {
	return models.DailyPrice{
		Symbol: symbol, Date: testDay(date),
		Open: close - 1, High: close + 1, Low: close - 2, Close: close, AdjClose: close,
		Volume: 1000, Source: "test",
	}
}

func TestMigrateIdempotent(t *testing.T) {
	store := newTestStore(t)
	// newTestStore already migrated once; a second pass applies nothing.
	require.NoError(t, store.Migrate(context.Background()))

	var count int
	require.NoError(t, store.pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestUpsertDailyPricesIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	batch := []models.DailyPrice{
		testBar("AAPL", "2026-01-05", 100),
		testBar("AAPL", "2026-01-06", 101),
		testBar("MSFT", "2026-01-05", 400),
	}

	n1, err := store.UpsertDailyPrices(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n1)

	// Second apply takes the conflict path but reports the same count.
	n2, err := store.UpsertDailyPrices(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, n1, n2)

	window, err := store.LoadPriceWindow(ctx, "AAPL", testDay("2026-01-01"))
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, 100.0, window[0].Close)
}

func TestUpsertDailyPricesOverwritesOnConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertDailyPrices(ctx, []models.DailyPrice{testBar("AAPL", "2026-01-05", 100)})
	require.NoError(t, err)

	revised := testBar("AAPL", "2026-01-05", 105)
	revised.Anomaly = true
	_, err = store.UpsertDailyPrices(ctx, []models.DailyPrice{revised})
	require.NoError(t, err)

	window, err := store.LoadPriceWindow(ctx, "AAPL", testDay("2026-01-01"))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, 105.0, window[0].Close)
	assert.True(t, window[0].Anomaly)
}

func TestUpsertDailyPricesEmptyBatch(t *testing.T) {
	store := newTestStore(t)

	n, err := store.UpsertDailyPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUpsertDailyPricesDuplicateKeysInBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Overlapping pages can repeat a (symbol, date); the batch must still
	// merge cleanly.
	n, err := store.UpsertDailyPrices(ctx, []models.DailyPrice{
		testBar("AAPL", "2026-01-05", 100),
		testBar("AAPL", "2026-01-05", 100),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpsertDailyPricesConstraintViolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bad := testBar("AAPL", "2026-01-05", 100)
	bad.High = 1
	bad.Low = 50

	good := testBar("MSFT", "2026-01-05", 400)

	_, err := store.UpsertDailyPrices(ctx, []models.DailyPrice{good, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily_prices_high_ge_low")

	// Whole batch rolled back, including the valid row.
	window, err := store.LoadPriceWindow(ctx, "MSFT", testDay("2026-01-01"))
	require.NoError(t, err)
	assert.Empty(t, window)
}

func TestLastPriceDates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertDailyPrices(ctx, []models.DailyPrice{
		testBar("AAPL", "2026-01-05", 100),
		testBar("AAPL", "2026-01-07", 102),
	})
	require.NoError(t, err)

	dates, err := store.LastPriceDates(ctx, []string{"AAPL", "MSFT"})
	require.NoError(t, err)

	require.Contains(t, dates, "AAPL")
	assert.Equal(t, testDay("2026-01-07"), dates["AAPL"].UTC())
	assert.NotContains(t, dates, "MSFT", "symbols with no rows are absent")
}

func TestFXRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	batch := []models.FXRate{
		{Pair: "USD/JPY", Date: testDay("2026-01-05"), Rate: 147.2, Source: "test"},
		{Pair: "USD/JPY", Date: testDay("2026-01-06"), Rate: 147.9, Source: "test"},
	}

	n, err := store.UpsertFXRates(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n2, err := store.UpsertFXRates(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, n, n2)

	dates, err := store.LastFXDates(ctx, []string{"USD/JPY"})
	require.NoError(t, err)
	assert.Equal(t, testDay("2026-01-06"), dates["USD/JPY"].UTC())

	latest, err := store.LatestFXRates(ctx, []string{"USD/JPY"})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 147.9, latest[0].Rate)
}

func TestUpsertFXRatesRejectsNonPositiveRate(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpsertFXRates(context.Background(), []models.FXRate{
		{Pair: "USD/JPY", Date: testDay("2026-01-05"), Rate: 0, Source: "test"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fx_rates_rate_positive")
}

func TestLoadPriceWindowBounds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var batch []models.DailyPrice
	for i := 1; i <= 9; i++ {
		batch = append(batch, testBar("AAPL", fmt.Sprintf("2026-01-0%d", i), 100+float64(i)))
	}
	_, err := store.UpsertDailyPrices(ctx, batch)
	require.NoError(t, err)

	window, err := store.LoadPriceWindow(ctx, "AAPL", testDay("2026-01-04"))
	require.NoError(t, err)
	require.Len(t, window, 6)
	assert.Equal(t, testDay("2026-01-04"), window[0].Date.UTC())
	assert.Equal(t, testDay("2026-01-09"), window[5].Date.UTC())
}
