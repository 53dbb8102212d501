package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/stockwatch/internal/clients/frankfurter"
	"github.com/bobmcallan/stockwatch/internal/clients/jquants"
	"github.com/bobmcallan/stockwatch/internal/clients/tiingo"
	"github.com/bobmcallan/stockwatch/internal/collector"
	"github.com/bobmcallan/stockwatch/internal/common"
	"github.com/bobmcallan/stockwatch/internal/httpx"
	"github.com/bobmcallan/stockwatch/internal/interfaces"
	"github.com/bobmcallan/stockwatch/internal/report"
	"github.com/bobmcallan/stockwatch/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	watchlistPath := flag.String("watchlist", "watchlist.yaml", "path to watchlist file")
	source := flag.String("source", collector.SourceAll, "source to collect: all, jquants, tiingo, fx")
	validate := flag.Bool("validate", false, "validate config and watchlist, then exit")
	schedule := flag.String("schedule", "", "cron expression; run as a daemon on this schedule")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(common.GetFullVersion())
		return
	}

	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLoggerFromConfig(cfg.Logging)

	switch *source {
	case collector.SourceAll, collector.SourceJQuants, collector.SourceTiingo, collector.SourceFrankfurter:
	default:
		logger.Error().Str("source", *source).Msg("unknown source, want all, jquants, tiingo or fx")
		os.Exit(1)
	}

	watchlist, err := collector.LoadWatchlist(*watchlistPath)
	if err != nil {
		logger.Error().Err(err).Msg("watchlist error")
		os.Exit(1)
	}

	if *validate {
		logger.Info().
			Str("config", *configPath).
			Int("instruments", len(watchlist)).
			Msg("configuration valid")
		return
	}

	if cfg.Database.URL == "" {
		logger.Error().Msg("database URL is required (set STOCKWATCH_DATABASE_URL or database.url)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.Database.URL, postgres.WithLogger(logger))
	if err != nil {
		logger.Error().Err(err).Msg("storage error")
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Error().Err(err).Msg("migration error")
		os.Exit(1)
	}

	retry := httpx.Policy{
		Attempts:       cfg.Collect.RetryAttempts,
		InitialBackoff: cfg.Collect.GetInitialBackoff(),
		MaxBackoff:     cfg.Collect.GetMaxBackoff(),
	}

	svc := collector.NewService(watchlist, store, store,
		collector.WithTokyoSource(tokyoSource(cfg, retry, logger)),
		collector.WithUSSource(usSource(cfg, retry, logger)),
		collector.WithFXSource(fxSource(cfg, retry, logger)),
		collector.WithPairs(cfg.Clients.Frankfurter.Pairs),
		collector.WithBenchmark(cfg.Indicators.Benchmark),
		collector.WithLookbackDays(cfg.Collect.LookbackDays),
		collector.WithServiceLogger(logger),
	)

	reporter := report.NewService(store, store,
		report.WithBenchmark(cfg.Indicators.Benchmark),
		report.WithPairs(cfg.Clients.Frankfurter.Pairs),
		report.WithLookbackDays(cfg.Collect.LookbackDays),
		report.WithOutputPath(cfg.Report.OutputPath),
		report.WithLogger(logger),
	)

	run := func(ctx context.Context) error {
		runReport := svc.Run(ctx, *source)
		collectErr := runReport.Err()
		if collectErr != nil {
			logger.Error().Err(collectErr).Str("run_id", runReport.ID).Msg("collection finished with errors")
		}
		// The summary reflects whatever was persisted, including partial
		// progress from a failed run.
		if err := reporter.Generate(ctx, watchlist); err != nil {
			return errors.Join(collectErr, err)
		}
		return collectErr
	}

	if *schedule != "" {
		runDaemon(ctx, *schedule, logger, run)
		return
	}

	if err := run(ctx); err != nil {
		os.Exit(1)
	}
}

// runDaemon executes run on the given cron schedule until the process is
// signalled. Scheduled failures are logged, not fatal.
func runDaemon(ctx context.Context, schedule string, logger *common.Logger, run func(context.Context) error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := run(ctx); err != nil {
			logger.Error().Err(err).Msg("scheduled run failed")
		}
	})
	if err != nil {
		logger.Error().Err(err).Str("schedule", schedule).Msg("invalid cron schedule")
		os.Exit(1)
	}

	logger.Info().Str("schedule", schedule).Str("version", common.GetVersion()).Msg("stockwatch daemon started")
	c.Start()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	// Let an in-flight run finish before exiting.
	<-c.Stop().Done()
}

func tokyoSource(cfg *common.Config, retry httpx.Policy, logger *common.Logger) interfaces.PriceSource {
	token, err := common.ResolveAPIKey([]string{"JQUANTS_REFRESH_TOKEN"}, cfg.Clients.JQuants.RefreshToken)
	if err != nil {
		logger.Warn().Msg("J-Quants credential not set, Tokyo collection disabled")
		return nil
	}
	return jquants.NewClient(token,
		jquants.WithBaseURL(cfg.Clients.JQuants.BaseURL),
		jquants.WithRateLimit(cfg.Clients.JQuants.RateLimit),
		jquants.WithTimeout(cfg.Clients.JQuants.GetTimeout()),
		jquants.WithMaxPages(cfg.Clients.JQuants.MaxPages),
		jquants.WithRetryPolicy(retry),
		jquants.WithLogger(logger),
	)
}

func usSource(cfg *common.Config, retry httpx.Policy, logger *common.Logger) interfaces.PriceSource {
	key, err := common.ResolveAPIKey([]string{"TIINGO_API_KEY"}, cfg.Clients.Tiingo.APIKey)
	if err != nil {
		logger.Warn().Msg("Tiingo credential not set, US collection disabled")
		return nil
	}
	return tiingo.NewClient(key,
		tiingo.WithBaseURL(cfg.Clients.Tiingo.BaseURL),
		tiingo.WithRateLimit(cfg.Clients.Tiingo.RateLimit),
		tiingo.WithTimeout(cfg.Clients.Tiingo.GetTimeout()),
		tiingo.WithRetryPolicy(retry),
		tiingo.WithLogger(logger),
	)
}

func fxSource(cfg *common.Config, retry httpx.Policy, logger *common.Logger) interfaces.FXSource {
	return frankfurter.NewClient(
		frankfurter.WithBaseURL(cfg.Clients.Frankfurter.BaseURL),
		frankfurter.WithRateLimit(cfg.Clients.Frankfurter.RateLimit),
		frankfurter.WithTimeout(cfg.Clients.Frankfurter.GetTimeout()),
		frankfurter.WithRetryPolicy(retry),
		frankfurter.WithLogger(logger),
	)
}
