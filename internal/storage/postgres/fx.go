package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bobmcallan/stockwatch/internal/models"
)

// UpsertFXRates writes a batch of rates with the same staging-then-merge
// shape as daily prices. Empty batches are a no-op.
func (s *Store) UpsertFXRates(ctx context.Context, rates []models.FXRate) (int64, error) {
	if len(rates) == 0 {
		return 0, nil
	}

	var affected int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TEMP TABLE staging_fx_rates
			(LIKE fx_rates INCLUDING DEFAULTS)
			ON COMMIT DROP`)
		if err != nil {
			return fmt.Errorf("failed to create staging table: %w", err)
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"staging_fx_rates"},
			[]string{"pair", "date", "rate", "source"},
			pgx.CopyFromSlice(len(rates), func(i int) ([]any, error) {
				r := rates[i]
				return []any{r.Pair, r.Date, r.Rate, r.Source}, nil
			}),
		)
		if err != nil {
			return constraintErr("failed to stage FX rates", err)
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO fx_rates (pair, date, rate, source)
			SELECT DISTINCT ON (pair, date) pair, date, rate, source
			FROM staging_fx_rates
			ORDER BY pair, date
			ON CONFLICT (pair, date) DO UPDATE SET
				rate       = EXCLUDED.rate,
				source     = EXCLUDED.source,
				fetched_at = now()`)
		if err != nil {
			return constraintErr("failed to merge FX rates", err)
		}

		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug().Int64("rows", affected).Msg("FX rates upserted")
	return affected, nil
}

// LastFXDates returns the most recent stored date per pair.
func (s *Store) LastFXDates(ctx context.Context, pairs []string) (map[string]time.Time, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pair, MAX(date)
		FROM fx_rates
		WHERE pair = ANY($1)
		GROUP BY pair`, pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to query last FX dates: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time, len(pairs))
	for rows.Next() {
		var pair string
		var date time.Time
		if err := rows.Scan(&pair, &date); err != nil {
			return nil, fmt.Errorf("failed to scan last FX date: %w", err)
		}
		out[pair] = date
	}
	return out, rows.Err()
}

// LatestFXRates returns the newest stored rate per pair, ordered by pair.
func (s *Store) LatestFXRates(ctx context.Context, pairs []string) ([]models.FXRate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (pair) pair, date, rate, source
		FROM fx_rates
		WHERE pair = ANY($1)
		ORDER BY pair, date DESC`, pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest FX rates: %w", err)
	}
	defer rows.Close()

	var out []models.FXRate
	for rows.Next() {
		var r models.FXRate
		if err := rows.Scan(&r.Pair, &r.Date, &r.Rate, &r.Source); err != nil {
			return nil, fmt.Errorf("failed to scan FX rate: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
