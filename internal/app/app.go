// Package app wires configuration, stores, the computation engine and
// the HTTP surface into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"macromon/internal/calendar"
	"macromon/internal/config"
	"macromon/internal/engine"
	"macromon/internal/infrastructure"
	"macromon/internal/storage"
	"macromon/internal/storage/memory"
	"macromon/internal/storage/migrations"
	"macromon/internal/storage/postgres"
	handlers "macromon/internal/transport/http"
	"macromon/internal/wshub"
)

const Version = "1.0.0"

// Application is the composed server: configuration, stores, engine,
// progress hub and HTTP router.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Router chi.Router
	Server *http.Server

	Engine *engine.Engine
	Hub    *wshub.Hub
	OTel   *infrastructure.OTelProviders

	pool *postgres.Pool
}

// NewApplication builds the application from configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig builds the application around an already
// loaded configuration.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("service", infrastructure.ServiceName),
		slog.String("version", Version),
		slog.String("store", cfg.Store.Driver))

	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.ServiceVersion = Version
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	app := &Application{
		Config: cfg,
		Logger: logger,
		OTel:   providers,
	}

	seriesStore, metricsStore, reader, err := app.buildStores(context.Background())
	if err != nil {
		return nil, err
	}

	app.Hub = wshub.NewHub(cfg.WebSocket, logger)

	cal, err := calendar.NewFromStrings(cfg.Calendar.Holidays)
	if err != nil {
		return nil, fmt.Errorf("invalid holiday calendar: %w", err)
	}

	app.Engine = engine.New(seriesStore, metricsStore, cal,
		engine.BuildCalculators(cfg.Engine, logger), logger,
		engine.WithProgressSink(app.Hub),
		engine.WithLookbackDays(cfg.Engine.LoadLookbackDays))

	app.Router = handlers.NewRouter(cfg, handlers.RouterDeps{
		Runner:         app.Engine,
		Reader:         reader,
		WebSocket:      app.Hub.ServeWS,
		PrometheusHTTP: providers.PrometheusHTTP,
		Logger:         logger,
	})

	app.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        app.Router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return app, nil
}

// buildStores returns the configured store implementations. The memory
// driver backs local runs and tests; postgres is the production path
// and runs migrations on startup.
func (a *Application) buildStores(ctx context.Context) (storage.SeriesStore, storage.MetricsStore, storage.MetricsReader, error) {
	switch a.Config.Store.Driver {
	case "memory":
		store := memory.NewStore()
		return store, store, store, nil

	case "postgres":
		pool, err := postgres.NewPool(ctx, a.Config.Store.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.pool = pool

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		metricsStore := postgres.NewMetricsStore(pool)
		return postgres.NewSeriesStore(pool), metricsStore, metricsStore, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver: %q", a.Config.Store.Driver)
	}
}

// Start runs the HTTP server until ctx is cancelled or a signal
// arrives, then shuts down gracefully.
func (a *Application) Start(ctx context.Context) error {
	a.Hub.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-sigCh:
		a.Logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return a.Stop(shutdownCtx)
}

// Stop shuts down the server and releases resources.
func (a *Application) Stop(ctx context.Context) error {
	var errs []error

	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	a.Hub.Stop()

	if a.OTel != nil {
		if err := a.OTel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("closing log file: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	a.Logger.Info("application stopped")
	return nil
}
