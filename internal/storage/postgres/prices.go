package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bobmcallan/stockwatch/internal/models"
)

var priceColumns = []string{"symbol", "date", "open", "high", "low", "close", "adj_close", "volume", "source", "anomaly"}

// UpsertDailyPrices writes a batch of bars in one transaction: COPY into a
// temp staging table, then merge on (symbol, date) with existing rows fully
// overwritten and fetched_at refreshed server-side. Duplicate keys inside
// the batch collapse to one row. Empty batches are a no-op.
func (s *Store) UpsertDailyPrices(ctx context.Context, prices []models.DailyPrice) (int64, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	var affected int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TEMP TABLE staging_daily_prices
			(LIKE daily_prices INCLUDING DEFAULTS)
			ON COMMIT DROP`)
		if err != nil {
			return fmt.Errorf("failed to create staging table: %w", err)
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"staging_daily_prices"},
			priceColumns,
			pgx.CopyFromSlice(len(prices), func(i int) ([]any, error) {
				p := prices[i]
				return []any{p.Symbol, p.Day(), p.Open, p.High, p.Low, p.Close, p.AdjClose, p.Volume, p.Source, p.Anomaly}, nil
			}),
		)
		if err != nil {
			return constraintErr("failed to stage prices", err)
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO daily_prices (symbol, date, open, high, low, close, adj_close, volume, source, anomaly)
			SELECT DISTINCT ON (symbol, date)
			       symbol, date, open, high, low, close, adj_close, volume, source, anomaly
			FROM staging_daily_prices
			ORDER BY symbol, date
			ON CONFLICT (symbol, date) DO UPDATE SET
				open       = EXCLUDED.open,
				high       = EXCLUDED.high,
				low        = EXCLUDED.low,
				close      = EXCLUDED.close,
				adj_close  = EXCLUDED.adj_close,
				volume     = EXCLUDED.volume,
				source     = EXCLUDED.source,
				anomaly    = EXCLUDED.anomaly,
				fetched_at = now()`)
		if err != nil {
			return constraintErr("failed to merge prices", err)
		}

		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug().Int64("rows", affected).Msg("daily prices upserted")
	return affected, nil
}

// LastPriceDates returns the most recent stored date per symbol. Symbols
// with no rows are absent from the result.
func (s *Store) LastPriceDates(ctx context.Context, symbols []string) (map[string]time.Time, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, MAX(date)
		FROM daily_prices
		WHERE symbol = ANY($1)
		GROUP BY symbol`, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to query last price dates: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time, len(symbols))
	for rows.Next() {
		var symbol string
		var date time.Time
		if err := rows.Scan(&symbol, &date); err != nil {
			return nil, fmt.Errorf("failed to scan last price date: %w", err)
		}
		out[symbol] = date
	}
	return out, rows.Err()
}

// LoadPriceWindow returns stored bars for symbol with date >= from,
// ascending by date.
func (s *Store) LoadPriceWindow(ctx context.Context, symbol string, from time.Time) ([]models.DailyPrice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, date, open, high, low, close, adj_close, volume, source, anomaly
		FROM daily_prices
		WHERE symbol = $1 AND date >= $2
		ORDER BY date`, symbol, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query price window for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []models.DailyPrice
	for rows.Next() {
		var p models.DailyPrice
		if err := rows.Scan(&p.Symbol, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.AdjClose, &p.Volume, &p.Source, &p.Anomaly); err != nil {
			return nil, fmt.Errorf("failed to scan price row for %s: %w", symbol, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
