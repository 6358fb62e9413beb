package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/pricesync-backend/internal/cron"
	"github.com/angelmondragon/pricesync-backend/internal/currency"
	"github.com/angelmondragon/pricesync-backend/internal/overlay"
	"github.com/angelmondragon/pricesync-backend/internal/pricesync"
	product "github.com/angelmondragon/pricesync-backend/internal/products"
	"github.com/angelmondragon/pricesync-backend/internal/sale"
	pkgAuth "github.com/angelmondragon/pricesync-backend/pkg/auth"
	"github.com/angelmondragon/pricesync-backend/pkg/config"
	"github.com/angelmondragon/pricesync-backend/pkg/db/models"
	"github.com/angelmondragon/pricesync-backend/pkg/enums"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
	"github.com/angelmondragon/pricesync-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubLock struct{}

func (stubLock) Acquire(context.Context) (bool, error) { return true, nil }
func (stubLock) Release(context.Context) error         { return nil }

type stubSyncer struct{ calls int }

func (s *stubSyncer) Run(ctx context.Context, req pricesync.Request) (pricesync.Result, error) {
	s.calls++
	return pricesync.Result{OK: true}, nil
}

type stubSweeper struct{ calls int }

func (s *stubSweeper) Sweep(ctx context.Context, now time.Time) (sale.SweepResult, error) {
	s.calls++
	return sale.SweepResult{OK: true}, nil
}

type stubProducts struct{ id uuid.UUID }

func (s stubProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id != s.id {
		return nil, fmt.Errorf("%w: %s", product.ErrNotFound, id)
	}
	return &models.Product{ID: id, Price: 58.4}, nil
}

type stubMetadata struct{}

func (stubMetadata) Get(ctx context.Context, id uuid.UUID) (overlay.MetadataOverlay, error) {
	return overlay.MetadataOverlay{}, nil
}

func (stubMetadata) Apply(ctx context.Context, id uuid.UUID, patch overlay.Patch) (overlay.MetadataOverlay, error) {
	return patch.Apply(overlay.MetadataOverlay{}), nil
}

type stubGalleries struct{}

func (stubGalleries) Get(ctx context.Context, id uuid.UUID) (product.Gallery, error) {
	return product.Gallery{ProductID: id, URLs: []string{}}, nil
}

func (stubGalleries) Set(ctx context.Context, id uuid.UUID, urls []string) (product.Gallery, error) {
	return product.Gallery{ProductID: id, URLs: urls}, nil
}

type fixture struct {
	handler  http.Handler
	cfg      *config.Config
	syncer   *stubSyncer
	sweeper  *stubSweeper
	product  uuid.UUID
	registry *prometheus.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := &config.Config{
		App:  config.AppConfig{Env: "test"},
		JWT:  config.JWTConfig{Secret: "jwt-secret", Issuer: "pricesync", ExpirationMinutes: 10},
		Cron: config.CronConfig{Secret: "cron-secret"},
	}
	rates, err := currency.NewDisplayRates(3.6725, 58000)
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	f := fixture{cfg: cfg, syncer: &stubSyncer{}, sweeper: &stubSweeper{}, product: uuid.New(), registry: prometheus.NewRegistry()}
	f.handler = NewRouter(cfg, logger.Nop(), Deps{
		DB:           stubPinger{},
		Locks:        func() (cron.Lock, error) { return stubLock{}, nil },
		Syncer:       f.syncer,
		Sweeper:      f.sweeper,
		Products:     stubProducts{id: f.product},
		Metadata:     stubMetadata{},
		Galleries:    stubGalleries{},
		DisplayRates: rates,
		Gatherer:     f.registry,
		HTTPMetrics:  metrics.NewHTTPMetrics(f.registry),
	})
	return f
}

func (f fixture) token(t *testing.T, role enums.OperatorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(f.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{OperatorID: "op-7", Role: role})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return token
}

func (f fixture) do(method, path, bearer, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		if rec := f.do(http.MethodGet, path, "", ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
	}
}

func TestRequestMetricsUseRoutePattern(t *testing.T) {
	f := newFixture(t)
	path := "/api/admin/v1/products/" + f.product.String() + "/metadata"
	if rec := f.do(http.MethodGet, path, f.token(t, enums.OperatorRoleAdmin), ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	mfs, err := f.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var routes []string
	for _, mf := range mfs {
		if mf.GetName() != "pricesync_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "route" {
					routes = append(routes, label.GetValue())
				}
			}
		}
	}
	want := "/api/admin/v1/products/{productId}/metadata"
	for _, route := range routes {
		if strings.Contains(route, f.product.String()) {
			t.Fatalf("raw product id leaked into route label %q", route)
		}
		if route == want {
			return
		}
	}
	t.Fatalf("expected route %q in %v", want, routes)
}

func TestCronRoutesRequireSecret(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(http.MethodPost, "/api/cron/v1/sync-prices", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/cron/v1/expire-sales", "nope", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if f.syncer.calls != 0 || f.sweeper.calls != 0 {
		t.Fatal("handlers must not run without the secret")
	}

	if rec := f.do(http.MethodPost, "/api/cron/v1/sync-prices", "cron-secret", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/cron/v1/expire-sales", "cron-secret", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if f.syncer.calls != 1 || f.sweeper.calls != 1 {
		t.Fatalf("unexpected calls sync=%d sweep=%d", f.syncer.calls, f.sweeper.calls)
	}
}

func TestCronSecretIsNotAnOperatorToken(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodPost, "/api/admin/v1/pricing/sync", "cron-secret", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAdminRoutesRequireRole(t *testing.T) {
	f := newFixture(t)
	metadataPath := "/api/admin/v1/products/" + f.product.String() + "/metadata"

	if rec := f.do(http.MethodGet, metadataPath, "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, metadataPath, f.token(t, enums.OperatorRoleViewer), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}

	operator := f.token(t, enums.OperatorRoleOperator)
	if rec := f.do(http.MethodGet, metadataPath, operator, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if rec := f.do(http.MethodPatch, metadataPath, operator, `{"tagline":"Soft matte"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	galleryPath := "/api/admin/v1/products/" + f.product.String() + "/gallery"
	if rec := f.do(http.MethodPut, galleryPath, operator, `{"urls":["https://cdn.example.com/1.jpg"]}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	historyPath := "/api/admin/v1/products/" + f.product.String() + "/price-history"
	if rec := f.do(http.MethodGet, historyPath, operator, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with history disabled, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/admin/v1/pricing/sync", f.token(t, enums.OperatorRoleAdmin), `{"limit":3}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPublicPriceRoute(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/products/"+f.product.String()+"/price?currency=AED", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"price":214.47`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	if rec := f.do(http.MethodGet, "/api/v1/products/"+uuid.NewString()+"/price", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
