package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/pricesync-backend/api/controllers"
	"github.com/angelmondragon/pricesync-backend/api/middleware"
	"github.com/angelmondragon/pricesync-backend/internal/cron"
	"github.com/angelmondragon/pricesync-backend/internal/currency"
	"github.com/angelmondragon/pricesync-backend/pkg/config"
	"github.com/angelmondragon/pricesync-backend/pkg/db"
	"github.com/angelmondragon/pricesync-backend/pkg/enums"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
	"github.com/angelmondragon/pricesync-backend/pkg/metrics"
	"github.com/angelmondragon/pricesync-backend/pkg/redis"
)

// Deps are the services the HTTP surface delegates to.
type Deps struct {
	DB           db.Pinger
	Redis        *redis.Client
	Locks        cron.LockFactory
	Syncer       controllers.PriceSyncer
	Sweeper      controllers.SaleSweeper
	Products     controllers.ProductFinder
	Catalog      controllers.ProductLister
	Metadata     controllers.MetadataOverlays
	Galleries    controllers.Galleries
	History      controllers.PriceHistory
	DisplayRates currency.DisplayRates
	Gatherer     prometheus.Gatherer
	HTTPMetrics  *metrics.HTTPMetrics
	Now          func() time.Time
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// A nil *redis.Client must not reach the interface-typed parameters.
	var redisPinger db.Pinger
	if deps.Redis != nil {
		redisPinger = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/cron/v1", func(r chi.Router) {
		r.Use(middleware.CronSecret(cfg.Cron.Secret, logg))
		r.Post("/sync-prices", controllers.CronSyncPrices(deps.Syncer, deps.Locks, logg))
		r.Post("/expire-sales", controllers.CronExpireSales(deps.Sweeper, deps.Locks, deps.Now, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.OperatorRoleAdmin, enums.OperatorRoleOperator))

		syncPolicy := middleware.NewRateLimitPolicy("admin-sync", cfg.RateLimit.AdminSyncWindow, cfg.RateLimit.AdminSyncLimit)
		if deps.Redis != nil {
			r.With(middleware.RateLimit(syncPolicy, deps.Redis, logg)).
				Post("/pricing/sync", controllers.AdminSyncPrices(deps.Syncer, deps.Locks, logg))
		} else {
			r.Post("/pricing/sync", controllers.AdminSyncPrices(deps.Syncer, deps.Locks, logg))
		}

		r.Get("/products", controllers.AdminListProducts(deps.Catalog, deps.Metadata, logg))
		r.Route("/products/{productId}", func(r chi.Router) {
			r.Get("/metadata", controllers.AdminGetMetadata(deps.Products, deps.Metadata, logg))
			r.Patch("/metadata", controllers.AdminPatchMetadata(deps.Products, deps.Metadata, logg))
			r.Get("/gallery", controllers.AdminGetGallery(deps.Products, deps.Galleries, logg))
			r.Put("/gallery", controllers.AdminPutGallery(deps.Products, deps.Galleries, logg))
			r.Get("/price-history", controllers.AdminPriceHistory(deps.Products, deps.History, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products/{productId}/price", controllers.ProductPrice(deps.Products, deps.Metadata, deps.DisplayRates, logg))
	})

	return r
}
