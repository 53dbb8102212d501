package report

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/stockwatch/internal/common"
	"github.com/bobmcallan/stockwatch/internal/interfaces"
	"github.com/bobmcallan/stockwatch/internal/models"
	"github.com/bobmcallan/stockwatch/internal/signals"
)

// Service reads persisted history back, computes the indicator panel per
// instrument, and publishes the summary document.
type Service struct {
	priceStore interfaces.PriceStore
	fxStore    interfaces.FXStore

	benchmark    string
	pairs        []string
	lookbackDays int
	outputPath   string
	logger       *common.Logger
	now          func() time.Time
}

// ServiceOption configures the report service
type ServiceOption func(*Service)

// WithBenchmark sets the benchmark symbol for relative indicators
func WithBenchmark(symbol string) ServiceOption {
	return func(s *Service) { s.benchmark = symbol }
}

// WithPairs sets the currency pairs shown on the FX line
func WithPairs(pairs []string) ServiceOption {
	return func(s *Service) { s.pairs = pairs }
}

// WithLookbackDays sets how much history is read back for indicators
func WithLookbackDays(days int) ServiceOption {
	return func(s *Service) { s.lookbackDays = days }
}

// WithOutputPath sets where the summary document is written
func WithOutputPath(path string) ServiceOption {
	return func(s *Service) { s.outputPath = path }
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source (tests)
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates the summary generator.
func NewService(priceStore interfaces.PriceStore, fxStore interfaces.FXStore, opts ...ServiceOption) *Service {
	s := &Service{
		priceStore:   priceStore,
		fxStore:      fxStore,
		lookbackDays: 450,
		outputPath:   "reports/summary.md",
		logger:       common.NewDefaultLogger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate computes indicators for every watchlist instrument and writes
// the summary document atomically.
func (s *Service) Generate(ctx context.Context, watchlist []models.WatchlistEntry) error {
	now := s.now()
	from := now.AddDate(0, 0, -s.lookbackDays)

	var benchSeries []models.DailyPrice
	if s.benchmark != "" {
		var err error
		benchSeries, err = s.priceStore.LoadPriceWindow(ctx, s.benchmark, from)
		if err != nil {
			return fmt.Errorf("failed to load benchmark history: %w", err)
		}
	}

	indicators := make(map[string]models.SymbolIndicators, len(watchlist))
	for _, e := range watchlist {
		prices, err := s.priceStore.LoadPriceWindow(ctx, e.Symbol, from)
		if err != nil {
			return fmt.Errorf("failed to load history for %s: %w", e.Symbol, err)
		}
		indicators[e.Symbol] = signals.Compute(e.Symbol, prices, benchSeries, e.Symbol == s.benchmark)
	}

	var fxRates []models.FXRate
	if len(s.pairs) > 0 && s.fxStore != nil {
		var err error
		fxRates, err = s.fxStore.LatestFXRates(ctx, s.pairs)
		if err != nil {
			return fmt.Errorf("failed to load FX rates: %w", err)
		}
	}

	content := Render(now, watchlist, indicators, fxRates)
	if err := WriteAtomic(s.outputPath, content); err != nil {
		return err
	}

	s.logger.Info().Str("path", s.outputPath).Int("symbols", len(watchlist)).Msg("summary written")
	return nil
}
