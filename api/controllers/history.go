package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/api/responses"
	"github.com/angelmondragon/pricesync-backend/api/validators"
	"github.com/angelmondragon/pricesync-backend/internal/pricehistory"
	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

// PriceHistory lists recorded price changes for one product.
type PriceHistory interface {
	History(ctx context.Context, productID uuid.UUID, limit int) ([]pricehistory.Entry, error)
}

type priceHistoryResponse struct {
	ProductID uuid.UUID            `json:"productId"`
	Entries   []pricehistory.Entry `json:"entries"`
}

// AdminPriceHistory returns the newest recorded price changes for a product.
// With no history backend configured it answers 404.
func AdminPriceHistory(products ProductFinder, history PriceHistory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "price history is not enabled"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pricehistory.DefaultHistoryLimit, 1, pricehistory.MaxHistoryLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, ok := loadProduct(w, r, products, logg)
		if !ok {
			return
		}
		entries, err := history.History(r.Context(), id, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price history"))
			return
		}
		responses.WriteSuccess(w, priceHistoryResponse{ProductID: id, Entries: entries})
	}
}
