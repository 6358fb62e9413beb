// Package pricesync runs a batch of products through fetch, extraction, sale
// decision and conversion, sharing one FX snapshot across the whole batch.
package pricesync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/internal/currency"
	"github.com/angelmondragon/pricesync-backend/internal/extract"
	"github.com/angelmondragon/pricesync-backend/internal/overlay"
	"github.com/angelmondragon/pricesync-backend/internal/pricing"
	"github.com/angelmondragon/pricesync-backend/internal/sale"
	"github.com/angelmondragon/pricesync-backend/pkg/db/models"
	"github.com/angelmondragon/pricesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
	"github.com/angelmondragon/pricesync-backend/pkg/fx"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
	"github.com/angelmondragon/pricesync-backend/pkg/metrics"
)

const defaultFetchTimeout = 20 * time.Second

type ratesSource interface {
	Latest(ctx context.Context) (fx.Rates, error)
}

type pageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

type strategyResolver interface {
	Resolve(rawURL string) (extract.Strategy, error)
}

type productStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdatePrices(ctx context.Context, id uuid.UUID, price float64, original *float64) error
}

type metadataStore interface {
	Get(ctx context.Context, productID uuid.UUID) (overlay.MetadataOverlay, error)
	All(ctx context.Context) (map[uuid.UUID]overlay.MetadataOverlay, error)
	Apply(ctx context.Context, productID uuid.UUID, patch overlay.Patch) (overlay.MetadataOverlay, error)
}

// Request selects the products of one run. A nil ProductID means every
// product with a source URL; Limit <= 0 means no limit.
type Request struct {
	ProductID *uuid.UUID `json:"productId,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// ItemResult reports what happened to one product.
type ItemResult struct {
	ProductID  uuid.UUID        `json:"productId"`
	SourceURL  string           `json:"sourceUrl,omitempty"`
	Status     enums.SyncStatus `json:"status"`
	ErrorKind  pricing.Kind     `json:"errorKind,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	BeforeUSD  *float64         `json:"beforeUsd,omitempty"`
	AfterUSD   *float64         `json:"afterUsd,omitempty"`
	SaleActive bool             `json:"saleActive"`
	SaleEndsAt string           `json:"saleEndsAt,omitempty"`
}

// Result summarizes a run. OK is false when at least one product failed; the
// other counts still describe the products that went through.
type Result struct {
	OK         bool               `json:"ok"`
	FXSnapshot pricing.FXSnapshot `json:"fxSnapshot"`
	Updated    int                `json:"updated"`
	Failed     int                `json:"failed"`
	Skipped    int                `json:"skipped"`
	Results    []ItemResult       `json:"results"`
}

type ServiceParams struct {
	Rates        ratesSource
	Pages        pageFetcher
	Strategies   strategyResolver
	Products     productStore
	Metadata     metadataStore
	Display      currency.DisplayRates
	Publisher    pricing.EventPublisher
	Metrics      *metrics.PricingMetrics
	Logger       *logger.Logger
	FetchTimeout time.Duration
	Now          func() time.Time
}

// Service is the price sync orchestrator.
type Service struct {
	rates        ratesSource
	pages        pageFetcher
	strategies   strategyResolver
	products     productStore
	metadata     metadataStore
	display      currency.DisplayRates
	publisher    pricing.EventPublisher
	metrics      *metrics.PricingMetrics
	logg         *logger.Logger
	fetchTimeout time.Duration
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Rates == nil:
		return nil, errors.New("rates source required")
	case params.Pages == nil:
		return nil, errors.New("page fetcher required")
	case params.Strategies == nil:
		return nil, errors.New("strategy registry required")
	case params.Products == nil:
		return nil, errors.New("product store required")
	case params.Metadata == nil:
		return nil, errors.New("metadata store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	timeout := params.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		rates:        params.Rates,
		pages:        params.Pages,
		strategies:   params.Strategies,
		products:     params.Products,
		metadata:     params.Metadata,
		display:      params.Display,
		publisher:    params.Publisher,
		metrics:      params.Metrics,
		logg:         logg,
		fetchTimeout: timeout,
		now:          now,
	}, nil
}

// Run syncs the selected products sequentially. The FX snapshot is fetched
// first; when it is unavailable the run stops before touching any product
// and returns a CodeDependency error wrapping pricing.ErrFXUnavailable.
// Per-product failures never abort the run.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	ctx = s.logg.WithRunID(ctx, uuid.NewString())

	conv, err := s.snapshot(ctx)
	if err != nil {
		s.metrics.IncFXFailure()
		s.logg.Error(ctx, "price sync aborted", err)
		return Result{}, err
	}

	targets, err := s.targets(ctx, req)
	if err != nil {
		return Result{}, err
	}

	result := Result{FXSnapshot: conv.Snapshot(), Results: make([]ItemResult, 0, len(targets))}
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			result.OK = result.Failed == 0
			return result, err
		}
		item := s.syncOne(ctx, conv, t)
		switch item.Status {
		case enums.SyncStatusUpdated:
			result.Updated++
		case enums.SyncStatusFailed:
			result.Failed++
		case enums.SyncStatusSkipped:
			result.Skipped++
		}
		s.metrics.IncProduct(string(item.Status))
		result.Results = append(result.Results, item)
	}
	result.OK = result.Failed == 0

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"updated": result.Updated,
		"failed":  result.Failed,
		"skipped": result.Skipped,
	}), "price sync finished")
	return result, nil
}

func (s *Service) snapshot(ctx context.Context) (*currency.SnapshotConverter, error) {
	rates, err := s.rates.Latest(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("%w: %w", pricing.ErrFXUnavailable, err), "fx snapshot unavailable")
	}
	snap, err := pricing.NewFXSnapshot(rates.USDPerKRW, rates.AEDPerKRW, rates.FetchedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fx snapshot invalid")
	}
	conv, err := currency.NewSnapshotConverter(snap, s.display)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fx snapshot invalid")
	}
	return conv, nil
}

type target struct {
	id     uuid.UUID
	record overlay.MetadataOverlay
}

func (s *Service) targets(ctx context.Context, req Request) ([]target, error) {
	if req.ProductID != nil {
		record, err := s.metadata.Get(ctx, *req.ProductID)
		if err != nil {
			return nil, err
		}
		return []target{{id: *req.ProductID, record: record}}, nil
	}

	all, err := s.metadata.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]target, 0, len(all))
	for id, record := range all {
		if record.SourceURL == "" {
			continue
		}
		out = append(out, target{id: id, record: record})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id.String() < out[j].id.String() })
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (s *Service) syncOne(ctx context.Context, conv *currency.SnapshotConverter, t target) ItemResult {
	ctx = s.logg.WithProductID(ctx, t.id.String())
	item := ItemResult{ProductID: t.id, SourceURL: t.record.SourceURL}

	if t.record.SourceURL == "" {
		item.Status = enums.SyncStatusSkipped
		item.Reason = "no source url"
		return item
	}

	product, err := s.products.FindByID(ctx, t.id)
	if err != nil {
		return s.fail(ctx, item, fmt.Errorf("%w: %w", pricing.ErrPersistence, err))
	}
	before := product.Price
	item.BeforeUSD = &before

	strategy, err := s.strategies.Resolve(t.record.SourceURL)
	if err != nil {
		return s.fail(ctx, item, err)
	}

	markup, err := s.fetch(ctx, t.record.SourceURL)
	if err != nil {
		return s.fail(ctx, item, err)
	}

	now := s.now()
	parsed, err := strategy.Extract(extract.CleanText(markup), now)
	if err != nil {
		return s.fail(ctx, item, err)
	}

	decision := sale.Decide(parsed, now)
	prices := decision.Convert(conv)
	if err := s.products.UpdatePrices(ctx, t.id, prices.PriceUSD, prices.OriginalUSD); err != nil {
		return s.fail(ctx, item, err)
	}
	patch := sale.SyncPatch(parsed, decision, prices, string(enums.CurrencyKRW), now)
	if _, err := s.metadata.Apply(ctx, t.id, patch); err != nil {
		return s.fail(ctx, item, err)
	}

	after := prices.PriceUSD
	item.Status = enums.SyncStatusUpdated
	item.AfterUSD = &after
	item.SaleActive = decision.Active
	if decision.Active {
		item.SaleEndsAt = parsed.SaleEndsAt()
	}
	s.publish(ctx, item, now)
	return item
}

// fetch bounds the page download so a stalled source fails only this item.
func (s *Service) fetch(ctx context.Context, rawURL string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	markup, err := s.pages.Fetch(fetchCtx, rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", pricing.ErrFetch, err)
	}
	return markup, nil
}

func (s *Service) fail(ctx context.Context, item ItemResult, err error) ItemResult {
	item.Status = enums.SyncStatusFailed
	item.ErrorKind = pricing.KindOf(err)
	item.Reason = fmt.Sprintf("%s: %v", item.ErrorKind, err)
	s.logg.Warn(s.logg.WithField(ctx, "error_kind", string(item.ErrorKind)), "product sync failed: "+err.Error())

	if _, perr := s.metadata.Apply(ctx, item.ProductID, sale.FailurePatch(item.Reason)); perr != nil {
		s.logg.Error(ctx, "could not record sync error", perr)
	}
	return item
}

func (s *Service) publish(ctx context.Context, item ItemResult, now time.Time) {
	if s.publisher == nil {
		return
	}
	data := pricing.PriceSyncedData{
		AfterUSD:   *item.AfterUSD,
		SaleActive: item.SaleActive,
		SaleEndsAt: item.SaleEndsAt,
		SourceURL:  item.SourceURL,
	}
	if item.BeforeUSD != nil {
		data.BeforeUSD = *item.BeforeUSD
	}
	err := s.publisher.Publish(ctx, pricing.Event{
		Type:       pricing.EventPriceSynced,
		ProductID:  item.ProductID,
		OccurredAt: now.UTC(),
		Data:       data,
	})
	if err != nil {
		s.logg.Warn(ctx, "price_synced event not published: "+err.Error())
	}
}
