package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/stockwatch/internal/common"
	"github.com/bobmcallan/stockwatch/internal/interfaces"
	"github.com/bobmcallan/stockwatch/internal/models"
)

// Source names accepted by Run and by the -source flag.
const (
	SourceJQuants     = "jquants"
	SourceTiingo      = "tiingo"
	SourceFrankfurter = "fx"
	SourceAll         = "all"
)

// Outcome captures one source's result for a run. A source that fetched
// records before failing reports both: the records were persisted first.
type Outcome struct {
	Source  string
	Symbols int
	Records int64
	Skipped []string
	Err     error
	Elapsed time.Duration
}

// RunReport aggregates per-source outcomes for one collection run.
type RunReport struct {
	ID       string
	Started  time.Time
	Outcomes []Outcome
}

// Err joins all per-source failures; nil when every source succeeded.
func (r *RunReport) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Source, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Service orchestrates the collection run. Each configured source gets one
// worker goroutine; symbols within a source run sequentially so the
// source's token bucket is the only pacing mechanism. Provider clients left
// nil (missing credential) fail their own source at collection time without
// touching the others.
type Service struct {
	watchlist  []models.WatchlistEntry
	priceStore interfaces.PriceStore
	fxStore    interfaces.FXStore

	tokyo interfaces.PriceSource // nil when the credential is absent
	us    interfaces.PriceSource // nil when the credential is absent
	fx    interfaces.FXSource

	pairs        []string
	benchmark    string
	lookbackDays int
	logger       *common.Logger
	now          func() time.Time
}

// ServiceOption configures the collection service
type ServiceOption func(*Service)

// WithTokyoSource sets the Tokyo equities client
func WithTokyoSource(s interfaces.PriceSource) ServiceOption {
	return func(svc *Service) { svc.tokyo = s }
}

// WithUSSource sets the US equities client
func WithUSSource(s interfaces.PriceSource) ServiceOption {
	return func(svc *Service) { svc.us = s }
}

// WithFXSource sets the FX rates client
func WithFXSource(s interfaces.FXSource) ServiceOption {
	return func(svc *Service) { svc.fx = s }
}

// WithPairs sets the tracked currency pairs
func WithPairs(pairs []string) ServiceOption {
	return func(svc *Service) { svc.pairs = pairs }
}

// WithBenchmark sets the benchmark symbol collected alongside the US
// watchlist so relative-performance indicators have their reference series
func WithBenchmark(symbol string) ServiceOption {
	return func(svc *Service) { svc.benchmark = symbol }
}

// WithLookbackDays sets the backfill horizon for symbols with no history
func WithLookbackDays(days int) ServiceOption {
	return func(svc *Service) { svc.lookbackDays = days }
}

// WithServiceLogger sets the logger
func WithServiceLogger(logger *common.Logger) ServiceOption {
	return func(svc *Service) { svc.logger = logger }
}

// WithClock overrides the time source (tests)
func WithClock(now func() time.Time) ServiceOption {
	return func(svc *Service) { svc.now = now }
}

// NewService creates the collection orchestrator.
func NewService(watchlist []models.WatchlistEntry, priceStore interfaces.PriceStore, fxStore interfaces.FXStore, opts ...ServiceOption) *Service {
	svc := &Service{
		watchlist:    watchlist,
		priceStore:   priceStore,
		fxStore:      fxStore,
		lookbackDays: 450,
		logger:       common.NewDefaultLogger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Run executes a collection pass. only selects a single source by name, or
// SourceAll for everything configured. Sources run concurrently; one
// source's failure never cancels another. The report's Err() is the run's
// terminal failure signal.
func (s *Service) Run(ctx context.Context, only string) *RunReport {
	report := &RunReport{
		ID:      uuid.New().String(),
		Started: s.now(),
	}

	s.logger.Info().Str("run_id", report.ID).Str("source", only).Msg("collection run started")

	type job struct {
		name string
		fn   func(context.Context) Outcome
	}

	var jobs []job
	if only == SourceAll || only == SourceJQuants {
		if entries := s.entriesFor(models.MarketTokyo); len(entries) > 0 {
			jobs = append(jobs, job{SourceJQuants, func(ctx context.Context) Outcome {
				return s.collectPrices(ctx, SourceJQuants, s.tokyo, entries)
			}})
		}
	}
	if only == SourceAll || only == SourceTiingo {
		if entries := s.usEntries(); len(entries) > 0 {
			jobs = append(jobs, job{SourceTiingo, func(ctx context.Context) Outcome {
				return s.collectPrices(ctx, SourceTiingo, s.us, entries)
			}})
		}
	}
	if (only == SourceAll || only == SourceFrankfurter) && len(s.pairs) > 0 {
		jobs = append(jobs, job{SourceFrankfurter, s.collectFX})
	}

	outcomes := make([]Outcome, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			start := s.now()
			out := j.fn(ctx)
			out.Source = j.name
			out.Elapsed = s.now().Sub(start)
			outcomes[i] = out

			evt := s.logger.Info()
			if out.Err != nil {
				evt = s.logger.Error().Err(out.Err)
			}
			evt.Str("run_id", report.ID).
				Str("source", j.name).
				Int("symbols", out.Symbols).
				Int64("records", out.Records).
				Dur("elapsed", out.Elapsed).
				Msg("source collection finished")
		}(i, j)
	}
	wg.Wait()

	report.Outcomes = outcomes
	return report
}

func (s *Service) entriesFor(market models.Market) []models.WatchlistEntry {
	var out []models.WatchlistEntry
	for _, e := range s.watchlist {
		if e.Market == market {
			out = append(out, e)
		}
	}
	return out
}

// usEntries returns NYSE and Nasdaq instruments plus the benchmark, which
// is always collected so relative indicators have a reference series.
func (s *Service) usEntries() []models.WatchlistEntry {
	var out []models.WatchlistEntry
	haveBenchmark := false
	for _, e := range s.watchlist {
		if e.Market == models.MarketNYSE || e.Market == models.MarketNasdaq {
			out = append(out, e)
			if e.Symbol == s.benchmark {
				haveBenchmark = true
			}
		}
	}
	if s.benchmark != "" && !haveBenchmark {
		out = append(out, models.WatchlistEntry{
			Symbol: s.benchmark,
			Name:   s.benchmark,
			Market: models.MarketNYSE,
			Kind:   models.KindFund,
		})
	}
	return out
}

// collectPrices walks one source's symbols sequentially, fetching each
// symbol's gap window and flagging anomalies against the last stored close.
// All fetched records are persisted even when a later symbol fails; the
// fetch error is reported only after the persist attempt.
func (s *Service) collectPrices(ctx context.Context, name string, source interfaces.PriceSource, entries []models.WatchlistEntry) Outcome {
	var out Outcome
	if source == nil {
		out.Err = fmt.Errorf("source not configured (missing credential)")
		return out
	}

	lastDates, err := s.priceStore.LastPriceDates(ctx, symbolsOf(entries))
	if err != nil {
		out.Err = fmt.Errorf("failed to query last dates: %w", err)
		return out
	}

	var batch []models.DailyPrice
	var fetchErr error

	for _, entry := range entries {
		last, hasLast := lastDates[entry.Symbol]
		from, to, ok := FetchWindow(last, hasLast, s.now(), s.lookbackDays)
		if !ok {
			s.logger.Debug().Str("symbol", entry.Symbol).Msg("already current, skipping")
			continue
		}

		prices, err := source.FetchDailyPrices(ctx, entry.Symbol, from, to)
		if err != nil {
			if errors.Is(err, interfaces.ErrInvalidSymbol) {
				s.logger.Warn().Str("symbol", entry.Symbol).Msg("symbol unknown to provider, skipping")
				out.Skipped = append(out.Skipped, entry.Symbol)
				continue
			}
			fetchErr = err
			break
		}
		if len(prices) == 0 {
			continue
		}

		prevClose, err := s.lastStoredClose(ctx, entry.Symbol, last, hasLast)
		if err != nil {
			fetchErr = err
			break
		}
		FlagAnomalies(prices, prevClose, entry.Market, entry.Kind)

		batch = append(batch, prices...)
		out.Symbols++
	}

	if len(batch) > 0 {
		n, err := s.priceStore.UpsertDailyPrices(ctx, batch)
		out.Records = n
		if err != nil {
			out.Err = errors.Join(fetchErr, fmt.Errorf("failed to persist prices: %w", err))
			return out
		}
	}

	out.Err = fetchErr
	return out
}

// lastStoredClose returns the close of the newest persisted bar, seeding
// the anomaly comparison across the persisted/fetched boundary.
func (s *Service) lastStoredClose(ctx context.Context, symbol string, last time.Time, hasLast bool) (float64, error) {
	if !hasLast {
		return 0, nil
	}
	window, err := s.priceStore.LoadPriceWindow(ctx, symbol, last)
	if err != nil {
		return 0, fmt.Errorf("failed to load prior close for %s: %w", symbol, err)
	}
	if len(window) == 0 {
		return 0, nil
	}
	return window[len(window)-1].Close, nil
}

func (s *Service) collectFX(ctx context.Context) Outcome {
	var out Outcome
	if s.fx == nil {
		out.Err = fmt.Errorf("source not configured")
		return out
	}

	lastDates, err := s.fxStore.LastFXDates(ctx, s.pairs)
	if err != nil {
		out.Err = fmt.Errorf("failed to query last FX dates: %w", err)
		return out
	}

	var batch []models.FXRate
	var fetchErr error

	for _, pair := range s.pairs {
		last, hasLast := lastDates[pair]
		from, to, ok := FetchWindow(last, hasLast, s.now(), s.lookbackDays)
		if !ok {
			s.logger.Debug().Str("pair", pair).Msg("already current, skipping")
			continue
		}

		rates, err := s.fx.FetchRates(ctx, pair, from, to)
		if err != nil {
			fetchErr = err
			break
		}
		if len(rates) == 0 {
			continue
		}

		batch = append(batch, rates...)
		out.Symbols++
	}

	if len(batch) > 0 {
		n, err := s.fxStore.UpsertFXRates(ctx, batch)
		out.Records = n
		if err != nil {
			out.Err = errors.Join(fetchErr, fmt.Errorf("failed to persist FX rates: %w", err))
			return out
		}
	}

	out.Err = fetchErr
	return out
}

func symbolsOf(entries []models.WatchlistEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Symbol
	}
	return out
}
