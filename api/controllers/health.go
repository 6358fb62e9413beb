package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/pricesync-backend/api/responses"
	"github.com/angelmondragon/pricesync-backend/pkg/config"
	"github.com/angelmondragon/pricesync-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

const readyTimeout = 3 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PriceSync-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and Redis. A nil pinger is reported as
// skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PriceSync-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := map[string]string{}
		var failed error
		for name, p := range map[string]db.Pinger{"database": dbP, "redis": redisP} {
			if p == nil {
				checks[name] = "skipped"
				continue
			}
			if err := p.Ping(ctx); err != nil {
				checks[name] = "down"
				if failed == nil {
					failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
						WithDetails(map[string]any{"dependency": name})
				}
				continue
			}
			checks[name] = "up"
		}

		if failed != nil {
			responses.WriteError(r.Context(), logg, w, failed)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
