package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	product "github.com/angelmondragon/pricesync-backend/internal/products"
	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
)

func productIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "productId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id").
			WithDetails(map[string]any{"field": "productId"})
	}
	return id, nil
}

// productError maps repository lookups to API errors.
func productError(err error) error {
	if errors.Is(err, product.ErrNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
}
