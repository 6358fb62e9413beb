// Package sale decides whether a scraped sale is live and restores prices
// once a recorded sale window has passed.
package sale

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pricesync-backend/internal/currency"
	"github.com/angelmondragon/pricesync-backend/internal/overlay"
	"github.com/angelmondragon/pricesync-backend/internal/pricing"
)

// IsActive reports whether parsed describes a sale that is live at now: a
// detected positive sale price whose end day, if any, has not passed.
func IsActive(parsed pricing.ParsedPrice, now time.Time) bool {
	if !parsed.SaleDetected || parsed.SaleKRW == nil || !parsed.SaleKRW.IsPositive() {
		return false
	}
	if parsed.SaleEnd.IsZero() {
		return true
	}
	return !now.After(parsed.SaleEnd.EndOfDay())
}

// Decision is the outcome of applying the active-at-sync rule.
type Decision struct {
	Active       bool
	EffectiveKRW decimal.Decimal
	RegularKRW   decimal.Decimal
}

func Decide(parsed pricing.ParsedPrice, now time.Time) Decision {
	d := Decision{
		Active:       IsActive(parsed, now),
		EffectiveKRW: parsed.RegularKRW,
		RegularKRW:   parsed.RegularKRW,
	}
	if d.Active {
		d.EffectiveKRW = *parsed.SaleKRW
	}
	return d
}

// Prices are the converted amounts a sync writes. The Original* fields are
// nil unless the sale is active.
type Prices struct {
	PriceUSD    float64
	OriginalUSD *float64
	PriceAED    float64
	OriginalAED *float64
	PriceT      float64
	OriginalT   *float64
}

// Convert turns a decision into canonical USD and region prices.
func (d Decision) Convert(conv *currency.SnapshotConverter) Prices {
	effective := conv.FromKRW(d.EffectiveKRW)
	p := Prices{
		PriceUSD: currency.Float2(effective.USD),
		PriceAED: currency.Float2(effective.AED),
		PriceT:   currency.Float2(effective.Toman),
	}
	if d.Active {
		regular := conv.FromKRW(d.RegularKRW)
		usd, aed, toman := currency.Float2(regular.USD), currency.Float2(regular.AED), currency.Float2(regular.Toman)
		p.OriginalUSD, p.OriginalAED, p.OriginalT = &usd, &aed, &toman
	}
	return p
}

// SyncPatch builds the overlay patch for a successful sync. Sale-window
// fields are set when the sale is active and cleared otherwise, so a sale
// that disappeared from the source page does not linger in the overlay.
func SyncPatch(parsed pricing.ParsedPrice, d Decision, prices Prices, sourceCurrency string, syncedAt time.Time) overlay.Patch {
	patch := overlay.Patch{
		PriceAED:            overlay.Set(prices.PriceAED),
		PriceT:              overlay.Set(prices.PriceT),
		OriginalPriceAED:    ptrField(prices.OriginalAED),
		OriginalPriceT:      ptrField(prices.OriginalT),
		SourcePriceCurrency: overlay.Set(sourceCurrency),
		SourceRegularPrice:  overlay.Set(parsed.RegularKRW.InexactFloat64()),
		SourceLastSyncedAt:  overlay.Set(syncedAt.UTC().Format(time.RFC3339)),
		SourceSyncError:     overlay.Clear[string](),
	}

	if !d.Active {
		window := overlay.ClearSaleWindow()
		patch.SourceSalePrice = overlay.Clear[float64]()
		patch.SourceSaleStart = window.SourceSaleStart
		patch.SourceSaleEnd = window.SourceSaleEnd
		patch.SaleEndsAt = window.SaleEndsAt
		return patch
	}

	patch.SourceSalePrice = overlay.Set(parsed.SaleKRW.InexactFloat64())
	patch.SourceSaleStart = dateField(parsed.SaleStart.StartOfDayISO())
	patch.SourceSaleEnd = dateField(parsed.SaleEndsAt())
	patch.SaleEndsAt = dateField(parsed.SaleEndsAt())
	return patch
}

// FailurePatch records a sync error without touching prices or the last
// successful sync time.
func FailurePatch(reason string) overlay.Patch {
	return overlay.Patch{SourceSyncError: overlay.Set(reason)}
}

func ptrField(v *float64) overlay.Field[float64] {
	if v == nil {
		return overlay.Clear[float64]()
	}
	return overlay.Set(*v)
}

func dateField(iso string) overlay.Field[string] {
	if iso == "" {
		return overlay.Clear[string]()
	}
	return overlay.Set(iso)
}
