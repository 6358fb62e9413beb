package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/api/middleware"
	"github.com/angelmondragon/pricesync-backend/api/responses"
	"github.com/angelmondragon/pricesync-backend/api/validators"
	"github.com/angelmondragon/pricesync-backend/internal/cron"
	"github.com/angelmondragon/pricesync-backend/internal/pricesync"
	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

const maxAdminSyncLimit = 25

type adminSyncRequest struct {
	ProductID *string `json:"productId,omitempty" validate:"omitempty,uuid"`
	Limit     int     `json:"limit,omitempty" validate:"omitempty,min=1,max=25"`
}

// AdminSyncPrices lets an operator resync one product or a small batch. An
// untargeted request without a limit syncs at most 25 products.
func AdminSyncPrices(svc PriceSyncer, locks cron.LockFactory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || locks == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "price sync unavailable"))
			return
		}

		var body adminSyncRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req := pricesync.Request{Limit: body.Limit}
		if body.ProductID != nil {
			id, err := uuid.Parse(*body.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			req.ProductID = &id
		}
		if req.Limit == 0 {
			req.Limit = maxAdminSyncLimit
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "requested_by", middleware.OperatorIDFromContext(ctx))
			logg.Info(ctx, "admin price sync requested")
		}

		result, err := runSync(ctx, svc, locks, req, logg)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
