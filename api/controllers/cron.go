package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/pricesync-backend/api/responses"
	"github.com/angelmondragon/pricesync-backend/api/validators"
	"github.com/angelmondragon/pricesync-backend/internal/cron"
	"github.com/angelmondragon/pricesync-backend/internal/pricesync"
	"github.com/angelmondragon/pricesync-backend/internal/sale"
	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

const maxCronSyncLimit = 1000

// PriceSyncer runs one price sync batch.
type PriceSyncer interface {
	Run(ctx context.Context, req pricesync.Request) (pricesync.Result, error)
}

// SaleSweeper runs one sale expiry sweep.
type SaleSweeper interface {
	Sweep(ctx context.Context, now time.Time) (sale.SweepResult, error)
}

// CronSyncPrices runs a price sync under the shared pricing lock. Query
// parameters productId and limit narrow the batch.
func CronSyncPrices(svc PriceSyncer, locks cron.LockFactory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || locks == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "price sync unavailable"))
			return
		}

		productID, err := validators.ParseQueryUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxCronSyncLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := runSync(r.Context(), svc, locks, pricesync.Request{ProductID: productID, Limit: limit}, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CronExpireSales runs the sale expiry sweep under the shared pricing lock.
func CronExpireSales(sweeper SaleSweeper, locks cron.LockFactory, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if sweeper == nil || locks == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sale expiry unavailable"))
			return
		}

		var result sale.SweepResult
		err := cron.WithLock(r.Context(), locks, logg, func(ctx context.Context) error {
			var runErr error
			result, runErr = sweeper.Sweep(ctx, now().UTC())
			return runErr
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, lockError(err, "sale expiry failed"))
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func runSync(ctx context.Context, svc PriceSyncer, locks cron.LockFactory, req pricesync.Request, logg *logger.Logger) (pricesync.Result, error) {
	var result pricesync.Result
	err := cron.WithLock(ctx, locks, logg, func(ctx context.Context) error {
		var runErr error
		result, runErr = svc.Run(ctx, req)
		return runErr
	})
	if err != nil {
		return pricesync.Result{}, lockError(err, "price sync failed")
	}
	return result, nil
}

// lockError keeps typed errors from the run and turns lock contention into
// a 409.
func lockError(err error, msg string) error {
	if errors.Is(err, cron.ErrRunInProgress) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "pricing run in progress")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
