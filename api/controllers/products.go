package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/api/middleware"
	"github.com/angelmondragon/pricesync-backend/api/responses"
	"github.com/angelmondragon/pricesync-backend/api/validators"
	"github.com/angelmondragon/pricesync-backend/internal/currency"
	"github.com/angelmondragon/pricesync-backend/internal/overlay"
	product "github.com/angelmondragon/pricesync-backend/internal/products"
	"github.com/angelmondragon/pricesync-backend/pkg/db/models"
	"github.com/angelmondragon/pricesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

// ProductFinder loads catalog rows.
type ProductFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// MetadataOverlays reads and patches metadata overlays.
type MetadataOverlays interface {
	Get(ctx context.Context, productID uuid.UUID) (overlay.MetadataOverlay, error)
	Apply(ctx context.Context, productID uuid.UUID, patch overlay.Patch) (overlay.MetadataOverlay, error)
}

// Galleries reads and replaces product galleries.
type Galleries interface {
	Get(ctx context.Context, productID uuid.UUID) (product.Gallery, error)
	Set(ctx context.Context, productID uuid.UUID, urls []string) (product.Gallery, error)
}

type metadataResponse struct {
	ProductID uuid.UUID               `json:"productId"`
	Metadata  overlay.MetadataOverlay `json:"metadata"`
}

// AdminGetMetadata returns the normalized overlay; unknown products yield 404.
func AdminGetMetadata(products ProductFinder, store MetadataOverlays, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := loadProduct(w, r, products, logg)
		if !ok {
			return
		}
		record, err := store.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load metadata"))
			return
		}
		responses.WriteSuccess(w, metadataResponse{ProductID: id, Metadata: record})
	}
}

// AdminPatchMetadata merges a tri-state patch: absent keys are kept, null
// clears and values replace.
func AdminPatchMetadata(products ProductFinder, store MetadataOverlays, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := loadProduct(w, r, products, logg)
		if !ok {
			return
		}

		var patch overlay.Patch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if patch.IsNoop() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "patch has no fields"))
			return
		}
		if problems := patch.Problems(); problems != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid metadata patch").WithDetails(problems))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithProductID(ctx, id.String())
		}
		record, err := store.Apply(ctx, id, patch)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update metadata"))
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(ctx, "updated_by", middleware.OperatorIDFromContext(ctx)), "metadata overlay updated")
		}
		responses.WriteSuccess(w, metadataResponse{ProductID: id, Metadata: record})
	}
}

type galleryRequest struct {
	URLs []string `json:"urls" validate:"max=50,dive,required,http_url"`
}

func AdminGetGallery(products ProductFinder, galleries Galleries, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := loadProduct(w, r, products, logg)
		if !ok {
			return
		}
		gallery, err := galleries.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load gallery"))
			return
		}
		responses.WriteSuccess(w, gallery)
	}
}

// AdminPutGallery replaces the gallery. An empty list removes every image.
func AdminPutGallery(products ProductFinder, galleries Galleries, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := loadProduct(w, r, products, logg)
		if !ok {
			return
		}

		var body galleryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		gallery, err := galleries.Set(r.Context(), id, body.URLs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update gallery"))
			return
		}
		responses.WriteSuccess(w, gallery)
	}
}

type priceResponse struct {
	ProductID uuid.UUID `json:"productId"`
	currency.DisplayPrice
	SaleEndsAt string `json:"saleEndsAt,omitempty"`
	SaleLabel  string `json:"saleLabel,omitempty"`
}

// ProductPrice renders the display price in the requested currency
// (default USD). A region price on the overlay wins over the converted one.
func ProductPrice(products ProductFinder, store MetadataOverlays, rates currency.DisplayRates, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := enums.CurrencyUSD
		if raw := strings.TrimSpace(r.URL.Query().Get("currency")); raw != "" {
			parsed, err := enums.ParseCurrency(raw)
			if err != nil || !parsed.IsDisplay() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency").
					WithDetails(map[string]any{"field": "currency"}))
				return
			}
			target = parsed
		}

		id, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p, err := products.FindByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, productError(err))
			return
		}
		record, err := store.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load metadata"))
			return
		}

		price, err := rates.ProductPrice(p.Price, p.OriginalPrice, currency.RegionPrices{
			PriceAED:         record.PriceAED,
			PriceT:           record.PriceT,
			OriginalPriceAED: record.OriginalPriceAED,
			OriginalPriceT:   record.OriginalPriceT,
		}, target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert price"))
			return
		}

		responses.WriteSuccess(w, priceResponse{
			ProductID:    id,
			DisplayPrice: price,
			SaleEndsAt:   record.SaleEndsAt,
			SaleLabel:    record.SaleLabel,
		})
	}
}

func loadProduct(w http.ResponseWriter, r *http.Request, products ProductFinder, logg *logger.Logger) (uuid.UUID, bool) {
	id, err := productIDParam(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, false
	}
	if _, err := products.FindByID(r.Context(), id); err != nil {
		responses.WriteError(r.Context(), logg, w, productError(err))
		return uuid.Nil, false
	}
	return id, true
}
