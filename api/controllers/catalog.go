package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/api/responses"
	"github.com/angelmondragon/pricesync-backend/api/validators"
	"github.com/angelmondragon/pricesync-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
	"github.com/angelmondragon/pricesync-backend/pkg/pagination"
)

// ProductLister pages through the catalog.
type ProductLister interface {
	ListPage(ctx context.Context, params pagination.Params) (pagination.Page[models.Product], error)
}

type productSyncStatus struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Price              float64   `json:"price"`
	OriginalPrice      *float64  `json:"originalPrice,omitempty"`
	SourceURL          string    `json:"sourceUrl,omitempty"`
	SourceLastSyncedAt string    `json:"sourceLastSyncedAt,omitempty"`
	SourceSyncError    string    `json:"sourceSyncError,omitempty"`
	SaleEndsAt         string    `json:"saleEndsAt,omitempty"`
}

// AdminListProducts pages products with their sync health so operators can
// spot failing sources.
func AdminListProducts(products ProductLister, store MetadataOverlays, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cursor := r.URL.Query().Get("cursor")
		if _, err := pagination.ParseCursor(cursor); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		page, err := products.ListPage(r.Context(), pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products"))
			return
		}

		items := make([]productSyncStatus, 0, len(page.Items))
		for _, p := range page.Items {
			record, err := store.Get(r.Context(), p.ID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load metadata"))
				return
			}
			items = append(items, productSyncStatus{
				ID:                 p.ID,
				Name:               p.Name,
				Price:              p.Price,
				OriginalPrice:      p.OriginalPrice,
				SourceURL:          record.SourceURL,
				SourceLastSyncedAt: record.SourceLastSyncedAt,
				SourceSyncError:    record.SourceSyncError,
				SaleEndsAt:         record.SaleEndsAt,
			})
		}

		responses.WriteSuccess(w, pagination.Page[productSyncStatus]{Items: items, NextCursor: page.NextCursor})
	}
}
