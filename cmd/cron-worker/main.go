package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pricesync-backend/internal/app"
	"github.com/angelmondragon/pricesync-backend/internal/cron"
	"github.com/angelmondragon/pricesync-backend/pkg/config"
	"github.com/angelmondragon/pricesync-backend/pkg/db"
	"github.com/angelmondragon/pricesync-backend/pkg/instance"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
	"github.com/angelmondragon/pricesync-backend/pkg/metrics"
	"github.com/angelmondragon/pricesync-backend/pkg/migrate"
	"github.com/angelmondragon/pricesync-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	jobs := flag.String("jobs", "", "comma separated jobs to run with -once (default: all)")
	flag.Parse()

	// Runs after the deferred closes below.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Environment: cfg.App.Env,
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, db.Options{UseSQLite: cfg.FeatureFlags.UseSQLite}, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	pricingApp, err := app.NewPricing(ctx, app.PricingParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient.DB(),
		Redis:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(ctx, "failed to wire pricing services", err)
		os.Exit(1)
	}
	defer func() {
		closeErr := multierr.Combine(pricingApp.Close(), redisClient.Close(), dbClient.Close())
		if closeErr != nil {
			logg.Error(context.Background(), "error closing dependencies", closeErr)
		}
	}()

	syncJob, err := cron.NewPriceSyncJob(cron.PriceSyncJobParams{
		Logger: logg,
		Syncer: pricingApp.Syncer,
		Limit:  cfg.Source.DefaultLimit,
	})
	if err != nil {
		logg.Error(ctx, "failed to create price sync job", err)
		os.Exit(1)
	}
	expiryJob, err := cron.NewSaleExpiryJob(cron.SaleExpiryJobParams{
		Logger:  logg,
		Sweeper: pricingApp.Sweeper,
	})
	if err != nil {
		logg.Error(ctx, "failed to create sale expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.PricingRunLock), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(syncJob, expiryJob)
	if err != nil {
		logg.Error(ctx, "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"interval": cfg.Cron.Interval.String(),
	})

	if *once {
		report, err := service.RunOnce(ctx, splitJobs(*jobs)...)
		if err != nil {
			logg.Error(ctx, "single cycle failed", err)
			exitCode = 1
			return
		}
		ctx = logg.WithFields(ctx, map[string]any{"skipped": report.Skipped, "failed_jobs": report.Failed()})
		logg.Info(ctx, "single cycle finished")
		if report.Failed() > 0 {
			exitCode = 1
		}
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		exitCode = 1
		return
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func splitJobs(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
