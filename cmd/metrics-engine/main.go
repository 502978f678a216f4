// Command metrics-engine runs one computation pass over a date range
// and optionally exports the results as an Excel workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"macromon/internal/calendar"
	"macromon/internal/config"
	"macromon/internal/engine"
	"macromon/internal/exporter"
	"macromon/internal/infrastructure"
	"macromon/internal/storage"
	"macromon/internal/storage/memory"
	"macromon/internal/storage/migrations"
	"macromon/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "config file path (defaults to macromon.yaml)")
	fromFlag := flag.String("from", "", "run start date, YYYY-MM-DD (defaults to 30 days ago)")
	toFlag := flag.String("to", "", "run end date, YYYY-MM-DD (defaults to today)")
	export := flag.Bool("export", false, "export computed metrics to an Excel workbook")
	flag.Parse()

	if err := run(*configPath, *fromFlag, *toFlag, *export); err != nil {
		slog.Error("run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath, fromFlag, toFlag string, export bool) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	to := calendar.Normalize(time.Now().UTC())
	from := to.AddDate(0, 0, -30)
	if fromFlag != "" {
		if from, err = time.Parse(calendar.DateFormat, fromFlag); err != nil {
			return fmt.Errorf("invalid -from date %q: %w", fromFlag, err)
		}
	}
	if toFlag != "" {
		if to, err = time.Parse(calendar.DateFormat, toFlag); err != nil {
			return fmt.Errorf("invalid -to date %q: %w", toFlag, err)
		}
	}

	ctx := infrastructure.EnsureTraceID(context.Background())
	seriesStore, metricsStore, reader, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	cal, err := calendar.NewFromStrings(cfg.Calendar.Holidays)
	if err != nil {
		return fmt.Errorf("invalid holiday calendar: %w", err)
	}

	eng := engine.New(seriesStore, metricsStore, cal,
		engine.BuildCalculators(cfg.Engine, logger), logger,
		engine.WithLookbackDays(cfg.Engine.LoadLookbackDays))

	result, err := eng.Run(ctx, from, to)
	if err != nil {
		return err
	}

	logger.Info("run complete",
		slog.String("run_id", result.RunID),
		slog.Int("points", result.Points),
		slog.Int("skipped_calculators", len(result.Skipped)),
		slog.Duration("duration", result.Duration))
	for _, skip := range result.Skipped {
		logger.Warn("calculator skipped",
			slog.String("calculator", skip.Calculator),
			slog.String("kind", string(skip.Kind)),
			slog.String("reason", skip.Reason))
	}

	if export {
		exp := exporter.New(reader, cfg.Export.Dir, logger)
		filename := fmt.Sprintf("metrics_%s_%s.xlsx",
			from.Format(calendar.DateFormat), to.Format(calendar.DateFormat))
		path, err := exp.ExportWorkbook(ctx, metricIDs(cfg.Engine), from, to, filename)
		if err != nil {
			return fmt.Errorf("exporting workbook: %w", err)
		}
		logger.Info("workbook written", slog.String("path", path))
	}

	return nil
}

// buildStores opens the configured store. The returned cleanup is safe
// to call exactly once.
func buildStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.SeriesStore, storage.MetricsStore, storage.MetricsReader, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		store := memory.NewStore()
		return store, store, store, func() {}, nil

	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		metricsStore := postgres.NewMetricsStore(pool)
		return postgres.NewSeriesStore(pool), metricsStore, metricsStore, pool.Close, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}
}

// metricIDs lists every metric the configured calculator set can emit,
// for the export sheet order.
func metricIDs(e config.Engine) []string {
	var ids []string
	for _, family := range []string{"base", "reserves"} {
		for _, w := range e.DeltaWindows {
			ids = append(ids,
				fmt.Sprintf("%s_%dd.abs", family, w),
				fmt.Sprintf("%s_%dd.pct", family, w))
		}
	}
	ids = append(ids,
		"base_expanded", "remunerated_liabilities",
		"base_to_expanded", "reserves_to_base", "liabilities_to_reserves")
	for _, w := range e.VolatilityWindows {
		ids = append(ids, fmt.Sprintf("fx.vol_%dd", w))
	}
	ids = append(ids, "fx.trend", fmt.Sprintf("fx.local_pressure_%dd", e.PressureWindow))
	for _, s := range e.AllSeries() {
		ids = append(ids,
			fmt.Sprintf("health.%s.freshness_hours", s),
			fmt.Sprintf("health.%s.coverage_90d", s),
			fmt.Sprintf("health.%s.gap_count", s),
			fmt.Sprintf("health.%s.max_gap_days", s))
	}
	return ids
}
