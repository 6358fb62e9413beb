// Package app wires the pricing services shared by the API and the cron
// worker.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/pricesync-backend/internal/cron"
	"github.com/angelmondragon/pricesync-backend/internal/currency"
	"github.com/angelmondragon/pricesync-backend/internal/extract"
	"github.com/angelmondragon/pricesync-backend/internal/overlay"
	"github.com/angelmondragon/pricesync-backend/internal/pricehistory"
	"github.com/angelmondragon/pricesync-backend/internal/pricesync"
	"github.com/angelmondragon/pricesync-backend/internal/pricing"
	product "github.com/angelmondragon/pricesync-backend/internal/products"
	"github.com/angelmondragon/pricesync-backend/internal/sale"
	pkgbigquery "github.com/angelmondragon/pricesync-backend/pkg/bigquery"
	"github.com/angelmondragon/pricesync-backend/pkg/config"
	"github.com/angelmondragon/pricesync-backend/pkg/fx"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
	"github.com/angelmondragon/pricesync-backend/pkg/metrics"
	"github.com/angelmondragon/pricesync-backend/pkg/pubsub"
	"github.com/angelmondragon/pricesync-backend/pkg/redis"
	"github.com/angelmondragon/pricesync-backend/pkg/sourcepage"
)

type PricingParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *gorm.DB
	Redis      *redis.Client
	Registerer prometheus.Registerer
}

// Pricing holds the constructed services.
type Pricing struct {
	Products  *product.Repository
	Metadata  *overlay.MetadataStore
	Galleries *product.GalleryService
	Syncer    *pricesync.Service
	Sweeper   *sale.ExpirySweeper
	Display   currency.DisplayRates
	Locks     cron.LockFactory
	History   *pricehistory.Reader

	events    *pubsub.Client
	analytics *pkgbigquery.Client
}

// NewPricing builds every pricing service from config. Pub/Sub is only
// dialed when eventing is enabled, BigQuery only when price history is.
func NewPricing(ctx context.Context, params PricingParams) (*Pricing, error) {
	cfg := params.Config
	logg := params.Logger
	if cfg == nil || logg == nil || params.DB == nil || params.Redis == nil {
		return nil, fmt.Errorf("config, logger, db and redis are required")
	}

	display, err := currency.NewDisplayRates(cfg.Display.AEDPerUSD, cfg.Display.TomanPerUSD)
	if err != nil {
		return nil, err
	}

	p := &Pricing{
		Products: product.NewRepository(params.DB),
		Metadata: overlay.NewMetadataStore(params.DB),
		Display:  display,
		Locks:    cron.NewRedisLockFactory(params.Redis, params.Redis.LockKey(cron.PricingRunLock), cfg.Cron.LockTTL),
	}
	p.Galleries = product.NewGalleryService(p.Products, overlay.NewGalleryStore(params.DB), logg)

	var publishers pricing.Publishers
	if cfg.Eventing.Enabled {
		p.events, err = pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		publishers = append(publishers, pricesync.NewEventPublisher(p.events, p.events.PricingTopic()))
	}
	if cfg.BigQuery.Enabled {
		p.analytics, err = pkgbigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("bigquery: %w", err)
		}
		table := cfg.BigQuery.PriceHistoryTable
		spec, err := pricehistory.TableSpec()
		if err == nil {
			err = p.analytics.EnsureTable(ctx, table, spec)
		}
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("price history table: %w", err)
		}
		recorder, err := pricehistory.NewRecorder(p.analytics, table, pricehistory.RetryPolicy{})
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("price history recorder: %w", err)
		}
		publishers = append(publishers, recorder)
		p.History, err = pricehistory.NewReader(p.analytics, table)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("price history reader: %w", err)
		}
	}
	publisher := publishers.Compact()

	pricingMetrics := metrics.NewPricingMetrics(params.Registerer)

	p.Syncer, err = pricesync.NewService(pricesync.ServiceParams{
		Rates: fx.NewClient(
			fx.WithBaseURL(cfg.FX.BaseURL),
			fx.WithAPIKey(cfg.FX.APIKey),
			fx.WithTimeout(cfg.FX.Timeout),
		),
		Pages: sourcepage.NewFetcher(
			sourcepage.WithUserAgent(cfg.Source.UserAgent),
			sourcepage.WithMaxBodyBytes(cfg.Source.MaxBodyBytes),
			sourcepage.WithRequestsPerMinute(cfg.Source.RequestsPerMin),
			sourcepage.WithTimeout(cfg.Source.FetchTimeout),
		),
		Strategies:   extract.DefaultRegistry(cfg.Source.GenericHosts),
		Products:     p.Products,
		Metadata:     p.Metadata,
		Display:      display,
		Publisher:    publisher,
		Metrics:      pricingMetrics,
		Logger:       logg,
		FetchTimeout: cfg.Source.FetchTimeout,
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("price sync service: %w", err)
	}

	p.Sweeper, err = sale.NewExpirySweeper(sale.ExpirySweeperParams{
		Products:  p.Products,
		Metadata:  p.Metadata,
		Publisher: publisher,
		Metrics:   pricingMetrics,
		Logger:    logg,
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("sale expiry sweeper: %w", err)
	}
	return p, nil
}

// Close releases the Pub/Sub and BigQuery clients that were opened.
func (p *Pricing) Close() error {
	if p == nil {
		return nil
	}
	var err error
	if p.events != nil {
		err = multierr.Append(err, p.events.Close())
	}
	if p.analytics != nil {
		err = multierr.Append(err, p.analytics.Close())
	}
	return err
}
