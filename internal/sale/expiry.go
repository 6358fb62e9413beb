package sale

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/internal/overlay"
	"github.com/angelmondragon/pricesync-backend/internal/pricing"
	"github.com/angelmondragon/pricesync-backend/pkg/db/models"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
	"github.com/angelmondragon/pricesync-backend/pkg/metrics"
	"github.com/angelmondragon/pricesync-backend/pkg/types"
)

type productStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdatePrices(ctx context.Context, id uuid.UUID, price float64, original *float64) error
}

type metadataStore interface {
	All(ctx context.Context) (map[uuid.UUID]overlay.MetadataOverlay, error)
	Apply(ctx context.Context, productID uuid.UUID, patch overlay.Patch) (overlay.MetadataOverlay, error)
}

// SweepError is one product the sweep could not restore.
type SweepError struct {
	ProductID uuid.UUID `json:"productId"`
	Error     string    `json:"error"`
}

// SweepResult summarizes one expiry sweep. OK is false only when Errors is
// non-empty; the counts still cover every product that succeeded.
type SweepResult struct {
	OK      bool         `json:"ok"`
	Checked int          `json:"checked"`
	Expired int          `json:"expired"`
	Updated int          `json:"updated"`
	Errors  []SweepError `json:"errors"`
}

type ExpirySweeperParams struct {
	Products  productStore
	Metadata  metadataStore
	Publisher pricing.EventPublisher
	Metrics   *metrics.PricingMetrics
	Logger    *logger.Logger
}

// ExpirySweeper restores products whose recorded sale end day has passed.
type ExpirySweeper struct {
	products  productStore
	metadata  metadataStore
	publisher pricing.EventPublisher
	metrics   *metrics.PricingMetrics
	logg      *logger.Logger
}

func NewExpirySweeper(params ExpirySweeperParams) (*ExpirySweeper, error) {
	if params.Products == nil {
		return nil, errors.New("product store required")
	}
	if params.Metadata == nil {
		return nil, errors.New("metadata store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &ExpirySweeper{
		products:  params.Products,
		metadata:  params.Metadata,
		publisher: params.Publisher,
		metrics:   params.Metrics,
		logg:      logg,
	}, nil
}

// Sweep checks every overlay carrying a sale end date. Ends strictly before
// today's UTC day are restored. A restored product has no end date left, so
// running Sweep again leaves it untouched.
func (s *ExpirySweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	records, err := s.metadata.All(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("load overlays: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	today := types.DateOf(now)
	result := SweepResult{Errors: []SweepError{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		record := records[id]
		end, ok := record.SaleEndDate()
		if !ok {
			continue
		}
		result.Checked++
		if !end.Before(today) {
			continue
		}
		result.Expired++

		restored, err := s.restore(ctx, id, record)
		if err != nil {
			result.Errors = append(result.Errors, SweepError{ProductID: id, Error: err.Error()})
			s.logg.Error(s.logg.WithProductID(ctx, id.String()), "sale restore failed", err)
			continue
		}
		result.Updated++
		s.metrics.IncRestored()
		s.publish(ctx, id, end, restored, now)
	}
	result.OK = len(result.Errors) == 0
	return result, nil
}

func (s *ExpirySweeper) restore(ctx context.Context, id uuid.UUID, record overlay.MetadataOverlay) (float64, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}

	price := product.Price
	if product.OriginalPrice != nil {
		if *product.OriginalPrice > 0 {
			price = *product.OriginalPrice
		}
		if err := s.products.UpdatePrices(ctx, id, price, nil); err != nil {
			return 0, err
		}
	}

	if _, err := s.metadata.Apply(ctx, id, RestorePatch(record)); err != nil {
		return 0, err
	}
	return price, nil
}

// RestorePatch clears the sale window and moves the original region prices
// back into place.
func RestorePatch(record overlay.MetadataOverlay) overlay.Patch {
	patch := overlay.ClearSaleWindow()
	if record.OriginalPriceAED != nil {
		patch.PriceAED = overlay.Set(*record.OriginalPriceAED)
		patch.OriginalPriceAED = overlay.Clear[float64]()
	}
	if record.OriginalPriceT != nil {
		patch.PriceT = overlay.Set(*record.OriginalPriceT)
		patch.OriginalPriceT = overlay.Clear[float64]()
	}
	patch.SourceSalePrice = overlay.Clear[float64]()
	return patch
}

func (s *ExpirySweeper) publish(ctx context.Context, id uuid.UUID, end types.Date, restored float64, now time.Time) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, pricing.Event{
		Type:       pricing.EventSaleExpired,
		ProductID:  id,
		OccurredAt: now.UTC(),
		Data:       pricing.SaleExpiredData{SaleEnd: end.String(), RestoredUSD: restored},
	})
	if err != nil {
		s.logg.Warn(s.logg.WithProductID(ctx, id.String()), "sale_expired event not published: "+err.Error())
	}
}
