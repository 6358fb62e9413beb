package sale

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pricesync-backend/internal/currency"
	"github.com/angelmondragon/pricesync-backend/internal/pricing"
	"github.com/angelmondragon/pricesync-backend/pkg/types"
)

func mustDate(t *testing.T, y, m, d int) types.Date {
	t.Helper()
	date, err := types.NewDate(y, m, d)
	if err != nil {
		t.Fatalf("date: %v", err)
	}
	return date
}

func salePrice(regular, sale int64) pricing.ParsedPrice {
	s := decimal.NewFromInt(sale)
	return pricing.ParsedPrice{RegularKRW: decimal.NewFromInt(regular), SaleKRW: &s, SaleDetected: true}
}

func TestIsActive(t *testing.T) {
	now := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

	withEnd := func(p pricing.ParsedPrice, end types.Date) pricing.ParsedPrice {
		p.SaleEnd = end
		return p
	}
	zero := decimal.Zero

	cases := []struct {
		name   string
		parsed pricing.ParsedPrice
		want   bool
	}{
		{"no end date", salePrice(80000, 60000), true},
		{"ends later", withEnd(salePrice(80000, 60000), mustDate(t, 2025, 1, 10)), true},
		{"ends today", withEnd(salePrice(80000, 60000), mustDate(t, 2025, 1, 5)), true},
		{"ended yesterday", withEnd(salePrice(80000, 60000), mustDate(t, 2025, 1, 4)), false},
		{"not detected", pricing.ParsedPrice{RegularKRW: decimal.NewFromInt(42000)}, false},
		{"zero sale", pricing.ParsedPrice{RegularKRW: decimal.NewFromInt(42000), SaleKRW: &zero, SaleDetected: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsActive(tc.parsed, now); got != tc.want {
				t.Fatalf("IsActive = %v, want %v", got, tc.want)
			}
		})
	}
}

func scenarioConverter(t *testing.T) *currency.SnapshotConverter {
	t.Helper()
	snap, err := pricing.NewFXSnapshot(0.00073, 0.0027, time.Now())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	display, err := currency.NewDisplayRates(3.6725, 42000)
	if err != nil {
		t.Fatalf("display: %v", err)
	}
	conv, err := currency.NewSnapshotConverter(snap, display)
	if err != nil {
		t.Fatalf("converter: %v", err)
	}
	return conv
}

func TestDecideAndConvert_ActiveSale(t *testing.T) {
	parsed := salePrice(80000, 60000)
	parsed.SaleStart = mustDate(t, 2025, 1, 1)
	parsed.SaleEnd = mustDate(t, 2025, 1, 10)
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	d := Decide(parsed, now)
	if !d.Active {
		t.Fatalf("expected active sale")
	}
	prices := d.Convert(scenarioConverter(t))
	if prices.PriceUSD != 43.8 {
		t.Fatalf("price = %v, want 43.8", prices.PriceUSD)
	}
	if prices.OriginalUSD == nil || *prices.OriginalUSD != 58.4 {
		t.Fatalf("original = %v, want 58.4", prices.OriginalUSD)
	}
	if prices.PriceAED != 162 || prices.OriginalAED == nil || *prices.OriginalAED != 216 {
		t.Fatalf("aed = %v / %v", prices.PriceAED, prices.OriginalAED)
	}

	patch := SyncPatch(parsed, d, prices, "KRW", now)
	merged := patch.Apply(overlayWithSource())
	if merged.SourceSaleEnd != "2025-01-10T23:59:59Z" || merged.SaleEndsAt != "2025-01-10T23:59:59Z" {
		t.Fatalf("sale end = %q / %q", merged.SourceSaleEnd, merged.SaleEndsAt)
	}
	if merged.SourceSaleStart != "2025-01-01T00:00:00Z" {
		t.Fatalf("sale start = %q", merged.SourceSaleStart)
	}
	if merged.SourceSyncError != "" || merged.SourceLastSyncedAt == "" {
		t.Fatalf("sync health not updated: %+v", merged)
	}
}

func TestDecideAndConvert_NoSaleClearsWindow(t *testing.T) {
	parsed := pricing.ParsedPrice{RegularKRW: decimal.NewFromInt(80000)}
	now := time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)

	d := Decide(parsed, now)
	if d.Active {
		t.Fatalf("expected no sale")
	}
	prices := d.Convert(scenarioConverter(t))
	if prices.PriceUSD != 58.4 || prices.OriginalUSD != nil {
		t.Fatalf("prices = %+v", prices)
	}

	current := overlayWithSource()
	current.SourceSaleEnd = "2025-01-10T23:59:59Z"
	current.OriginalPriceAED = f64(216)
	current.SourceSyncError = "fetch: timeout"

	merged := SyncPatch(parsed, d, prices, "KRW", now).Apply(current)
	if merged.SourceSaleEnd != "" || merged.OriginalPriceAED != nil {
		t.Fatalf("stale sale not cleared: %+v", merged)
	}
	if merged.SourceSyncError != "" {
		t.Fatalf("expected error marker cleared")
	}
	if merged.PriceAED == nil || *merged.PriceAED != 216 {
		t.Fatalf("aed = %v", merged.PriceAED)
	}
}

func TestFailurePatchKeepsLastSync(t *testing.T) {
	current := overlayWithSource()
	current.SourceLastSyncedAt = "2025-01-04T00:00:00Z"
	merged := FailurePatch("extraction: no price").Apply(current)
	if merged.SourceLastSyncedAt != "2025-01-04T00:00:00Z" {
		t.Fatalf("last sync changed to %q", merged.SourceLastSyncedAt)
	}
	if merged.SourceSyncError != "extraction: no price" {
		t.Fatalf("error marker = %q", merged.SourceSyncError)
	}
}
