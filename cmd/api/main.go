package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pricesync-backend/api/routes"
	"github.com/angelmondragon/pricesync-backend/internal/app"
	"github.com/angelmondragon/pricesync-backend/pkg/config"
	"github.com/angelmondragon/pricesync-backend/pkg/db"
	"github.com/angelmondragon/pricesync-backend/pkg/instance"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
	"github.com/angelmondragon/pricesync-backend/pkg/metrics"
	"github.com/angelmondragon/pricesync-backend/pkg/migrate"
	"github.com/angelmondragon/pricesync-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Environment: cfg.App.Env,
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server exited with error", err)
		stop()
		os.Exit(1)
	}
}

// run owns every dependency so deferred closes happen before main exits.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, db.Options{UseSQLite: cfg.FeatureFlags.UseSQLite}, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	pricingApp, err := app.NewPricing(ctx, app.PricingParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient.DB(),
		Redis:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return fmt.Errorf("wire pricing services: %w", err)
	}
	defer func() { err = multierr.Append(err, pricingApp.Close()) }()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"addr":          addr,
		"instance":      instance.GetID(),
		"eventing":      cfg.Eventing.Enabled,
		"price_history": cfg.BigQuery.Enabled,
	})
	logg.Info(ctx, "starting api server")

	deps := routes.Deps{
		DB:           dbClient,
		Redis:        redisClient,
		Locks:        pricingApp.Locks,
		Syncer:       pricingApp.Syncer,
		Sweeper:      pricingApp.Sweeper,
		Products:     pricingApp.Products,
		Catalog:      pricingApp.Products,
		Metadata:     pricingApp.Metadata,
		Galleries:    pricingApp.Galleries,
		DisplayRates: pricingApp.Display,
		HTTPMetrics:  metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
	}
	// A nil *pricehistory.Reader must not become a non-nil interface.
	if pricingApp.History != nil {
		deps.History = pricingApp.History
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server stopped unexpectedly: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	logg.Info(ctx, "api server shut down gracefully")
	return nil
}
