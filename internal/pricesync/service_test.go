package pricesync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/pricesync-backend/internal/currency"
	"github.com/angelmondragon/pricesync-backend/internal/extract"
	"github.com/angelmondragon/pricesync-backend/internal/overlay"
	"github.com/angelmondragon/pricesync-backend/internal/pricing"
	product "github.com/angelmondragon/pricesync-backend/internal/products"
	"github.com/angelmondragon/pricesync-backend/internal/sale"
	"github.com/angelmondragon/pricesync-backend/pkg/db/models"
	"github.com/angelmondragon/pricesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pricesync-backend/pkg/errors"
	"github.com/angelmondragon/pricesync-backend/pkg/fx"
)

const scenarioPage = `<html><head><script>var price = "99,000원";</script></head><body>
<div><span>정가</span> <del>80,000원</del></div><div><em>할인가</em> <strong>60,000원</strong></div>
<p>이벤트 기간: 2025.01.01 ~ 2025.01.10</p></body></html>`

type stubRates struct {
	rates fx.Rates
	err   error
	calls int
}

func (s *stubRates) Latest(context.Context) (fx.Rates, error) {
	s.calls++
	return s.rates, s.err
}

type stubPages struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	hang  map[string]bool
	calls []string
}

func (s *stubPages) Fetch(ctx context.Context, rawURL string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, rawURL)
	s.mu.Unlock()
	if s.hang[rawURL] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := s.errs[rawURL]; err != nil {
		return "", err
	}
	return s.pages[rawURL], nil
}

type recordingPublisher struct {
	events []pricing.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e pricing.Event) error {
	r.events = append(r.events, e)
	return nil
}

type fixture struct {
	conn     *gorm.DB
	products *product.Repository
	metadata *overlay.MetadataStore
	rates    *stubRates
	pages    *stubPages
	events   *recordingPublisher
	now      time.Time
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.ProductMetadataOverlay{}))

	display, err := currency.NewDisplayRates(3.6725, 58000)
	require.NoError(t, err)

	f := &fixture{
		conn:     conn,
		products: product.NewRepository(conn),
		metadata: overlay.NewMetadataStore(conn),
		rates:    &stubRates{rates: fx.Rates{USDPerKRW: 0.00073, AEDPerKRW: 0.0027, FetchedAt: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)}},
		pages:    &stubPages{pages: map[string]string{}, errs: map[string]error{}, hang: map[string]bool{}},
		events:   &recordingPublisher{},
		now:      time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC),
	}
	f.svc, err = NewService(ServiceParams{
		Rates:        f.rates,
		Pages:        f.pages,
		Strategies:   extract.DefaultRegistry(nil),
		Products:     f.products,
		Metadata:     f.metadata,
		Display:      display,
		Publisher:    f.events,
		FetchTimeout: 50 * time.Millisecond,
		Now:          func() time.Time { return f.now },
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) seed(t *testing.T, price float64, sourceURL string) uuid.UUID {
	t.Helper()
	p := &models.Product{Name: "Glow Serum", Price: price, IsActive: true}
	require.NoError(t, f.products.Create(context.Background(), p))
	if sourceURL != "" {
		_, err := f.metadata.Put(context.Background(), p.ID, overlay.MetadataOverlay{SourceURL: sourceURL})
		require.NoError(t, err)
	}
	return p.ID
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestRun_ScenarioSyncThenExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const src = "https://smartstore.naver.com/beauty/products/1001"
	id := f.seed(t, 50, src)
	f.pages.pages[src] = scenarioPage

	res, err := f.svc.Run(ctx, Request{})
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, f.rates.calls)
	require.Len(t, res.Results, 1)
	item := res.Results[0]
	assert.Equal(t, enums.SyncStatusUpdated, item.Status)
	assert.Equal(t, 50.0, *item.BeforeUSD)
	assert.Equal(t, 43.8, *item.AfterUSD)
	assert.True(t, item.SaleActive)
	assert.Equal(t, "2025-01-10T23:59:59Z", item.SaleEndsAt)

	p, err := f.products.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 43.8, p.Price)
	require.NotNil(t, p.OriginalPrice)
	assert.Equal(t, 58.4, *p.OriginalPrice)

	rec, err := f.metadata.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10T23:59:59Z", rec.SourceSaleEnd)
	assert.Equal(t, "2025-01-10T23:59:59Z", rec.SaleEndsAt)
	assert.Equal(t, 162.0, *rec.PriceAED)
	assert.Equal(t, 216.0, *rec.OriginalPriceAED)
	assert.Equal(t, 2540400.0, *rec.PriceT)
	assert.Equal(t, "KRW", rec.SourcePriceCurrency)
	assert.Equal(t, 80000.0, *rec.SourceRegularPrice)
	assert.Equal(t, 60000.0, *rec.SourceSalePrice)
	assert.Equal(t, "2025-01-05T09:00:00Z", rec.SourceLastSyncedAt)
	assert.Empty(t, rec.SourceSyncError)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, pricing.EventPriceSynced, f.events.events[0].Type)

	sweeper, err := sale.NewExpirySweeper(sale.ExpirySweeperParams{Products: f.products, Metadata: f.metadata})
	require.NoError(t, err)
	sweep, err := sweeper.Sweep(ctx, time.Date(2025, 1, 11, 0, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, sweep.OK)
	assert.Equal(t, 1, sweep.Updated)

	p, err = f.products.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 58.4, p.Price)
	assert.Nil(t, p.OriginalPrice)

	rec, err = f.metadata.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, rec.SourceSaleEnd)
	assert.Empty(t, rec.SaleEndsAt)
	assert.Equal(t, 216.0, *rec.PriceAED)
	assert.Nil(t, rec.OriginalPriceAED)
}

func TestRun_FXFailureAbortsBeforeWrites(t *testing.T) {
	f := newFixture(t)
	const src = "https://smartstore.naver.com/beauty/products/1"
	id := f.seed(t, 50, src)
	f.pages.pages[src] = scenarioPage
	f.rates.err = errors.New("feed down")

	_, err := f.svc.Run(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, pricing.ErrFXUnavailable)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Empty(t, f.pages.calls)

	p, err := f.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 50.0, p.Price)
	rec, err := f.metadata.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, rec.SourceSyncError)
}

func TestRun_InvalidRatesAbort(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 50, "https://smartstore.naver.com/beauty/products/1")
	f.rates.rates.AEDPerKRW = 0

	_, err := f.svc.Run(context.Background(), Request{})
	assert.ErrorIs(t, err, pricing.ErrFXUnavailable)
}

func TestRun_PerProductFailuresDoNotStopBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const (
		good    = "https://smartstore.naver.com/a/products/1"
		foreign = "https://shop.example.com/item/2"
		broken  = "https://smartstore.naver.com/a/products/3"
		empty   = "https://smartstore.naver.com/a/products/4"
		stalled = "https://smartstore.naver.com/a/products/5"
	)
	ids := map[string]uuid.UUID{}
	for _, src := range []string{good, foreign, broken, empty, stalled} {
		ids[src] = f.seed(t, 10, src)
	}
	f.pages.pages[good] = "판매가 42,000원"
	f.pages.errs[broken] = errors.New("status 503")
	f.pages.pages[empty] = "<p>품절</p>"
	f.pages.hang[stalled] = true
	f.seed(t, 10, "")

	res, err := f.svc.Run(ctx, Request{})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 4, res.Failed)
	assert.Len(t, res.Results, 5)

	kinds := map[uuid.UUID]pricing.Kind{}
	for _, r := range res.Results {
		kinds[r.ProductID] = r.ErrorKind
	}
	assert.Equal(t, pricing.KindNone, kinds[ids[good]])
	assert.Equal(t, pricing.KindUnsupportedSource, kinds[ids[foreign]])
	assert.Equal(t, pricing.KindFetch, kinds[ids[broken]])
	assert.Equal(t, pricing.KindExtraction, kinds[ids[empty]])
	assert.Equal(t, pricing.KindFetch, kinds[ids[stalled]])

	p, err := f.products.FindByID(ctx, ids[empty])
	require.NoError(t, err)
	assert.Equal(t, 10.0, p.Price, "extraction failure must not touch prices")

	rec, err := f.metadata.Get(ctx, ids[empty])
	require.NoError(t, err)
	assert.Contains(t, rec.SourceSyncError, "extraction")
	assert.Empty(t, rec.SourceLastSyncedAt)

	rec, err = f.metadata.Get(ctx, ids[good])
	require.NoError(t, err)
	assert.Nil(t, rec.OriginalPriceAED)
	assert.Equal(t, 113.4, *rec.PriceAED)
}

func TestRun_SuccessClearsPreviousError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const src = "https://smartstore.naver.com/a/products/9"
	id := f.seed(t, 10, src)
	_, err := f.metadata.Apply(ctx, id, sale.FailurePatch("fetch: status 503"))
	require.NoError(t, err)
	f.pages.pages[src] = "판매가 42,000원"

	_, err = f.svc.Run(ctx, Request{ProductID: &id})
	require.NoError(t, err)

	rec, err := f.metadata.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, rec.SourceSyncError)
	p, err := f.products.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 30.66, p.Price)
}

func TestRun_TargetedWithoutSourceIsSkipped(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, 10, "")

	res, err := f.svc.Run(context.Background(), Request{ProductID: &id})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, enums.SyncStatusSkipped, res.Results[0].Status)
}

func TestRun_MissingProductIsPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	_, err := f.metadata.Put(context.Background(), id, overlay.MetadataOverlay{SourceURL: "https://smartstore.naver.com/a/products/7"})
	require.NoError(t, err)

	res, err := f.svc.Run(context.Background(), Request{ProductID: &id})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, pricing.KindPersistence, res.Results[0].ErrorKind)
}

func TestRun_LimitAppliesInIDOrder(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 4; i++ {
		f.seed(t, 10, "https://smartstore.naver.com/a/products/x")
	}
	f.pages.pages["https://smartstore.naver.com/a/products/x"] = "판매가 42,000원"

	res, err := f.svc.Run(context.Background(), Request{Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Less(t, res.Results[0].ProductID.String(), res.Results[1].ProductID.String())
}
