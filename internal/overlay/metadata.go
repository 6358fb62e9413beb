// Package overlay stores sparse per-product documents for fields the
// relational schema does not reliably carry. Every document is normalized on
// the way in and out, and a document with nothing meaningful in it is
// deleted rather than stored empty.
package overlay

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pricesync-backend/pkg/types"
)

// SaleCalendarEntry is one admin-curated day in a sale calendar.
type SaleCalendarEntry struct {
	Date  string   `json:"date"`
	Label string   `json:"label,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

// ColorShade is an admin-curated swatch.
type ColorShade struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

// MetadataOverlay is the full overlay document for one product.
type MetadataOverlay struct {
	PriceAED         *float64 `json:"priceAed,omitempty"`
	PriceT           *float64 `json:"priceT,omitempty"`
	OriginalPriceAED *float64 `json:"originalPriceAed,omitempty"`
	OriginalPriceT   *float64 `json:"originalPriceT,omitempty"`

	SourceURL           string   `json:"sourceUrl,omitempty"`
	SourcePriceCurrency string   `json:"sourcePriceCurrency,omitempty"`
	SourceRegularPrice  *float64 `json:"sourceRegularPrice,omitempty"`
	SourceSalePrice     *float64 `json:"sourceSalePrice,omitempty"`

	SourceSaleStart string              `json:"sourceSaleStart,omitempty"`
	SourceSaleEnd   string              `json:"sourceSaleEnd,omitempty"`
	SaleEndsAt      string              `json:"saleEndsAt,omitempty"`
	SaleLabel       string              `json:"saleLabel,omitempty"`
	SaleBadges      []string            `json:"saleBadges,omitempty"`
	SaleCalendar    []SaleCalendarEntry `json:"saleCalendar,omitempty"`

	SourceLastSyncedAt string `json:"sourceLastSyncedAt,omitempty"`
	SourceSyncError    string `json:"sourceSyncError,omitempty"`

	Tagline           string       `json:"tagline,omitempty"`
	RelatedProductIDs []string     `json:"relatedProductIds,omitempty"`
	ColorShades       []ColorShade `json:"colorShades,omitempty"`
}

var hexColorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Normalize returns a cleaned copy of m. Strings are trimmed, amounts must be
// finite and positive, id and badge lists are deduplicated, timestamps must
// parse, and malformed calendar or shade elements are dropped one by one.
func Normalize(m MetadataOverlay) MetadataOverlay {
	return MetadataOverlay{
		PriceAED:         positiveAmount(m.PriceAED),
		PriceT:           positiveAmount(m.PriceT),
		OriginalPriceAED: positiveAmount(m.OriginalPriceAED),
		OriginalPriceT:   positiveAmount(m.OriginalPriceT),

		SourceURL:           strings.TrimSpace(m.SourceURL),
		SourcePriceCurrency: strings.ToUpper(strings.TrimSpace(m.SourcePriceCurrency)),
		SourceRegularPrice:  positiveAmount(m.SourceRegularPrice),
		SourceSalePrice:     positiveAmount(m.SourceSalePrice),

		SourceSaleStart: normalizeDayTimestamp(m.SourceSaleStart, false),
		SourceSaleEnd:   normalizeDayTimestamp(m.SourceSaleEnd, true),
		SaleEndsAt:      normalizeDayTimestamp(m.SaleEndsAt, true),
		SaleLabel:       strings.TrimSpace(m.SaleLabel),
		SaleBadges:      dedupeStrings(m.SaleBadges),
		SaleCalendar:    normalizeCalendar(m.SaleCalendar),

		SourceLastSyncedAt: normalizeTimestamp(m.SourceLastSyncedAt),
		SourceSyncError:    strings.TrimSpace(m.SourceSyncError),

		Tagline:           strings.TrimSpace(m.Tagline),
		RelatedProductIDs: dedupeStrings(m.RelatedProductIDs),
		ColorShades:       normalizeShades(m.ColorShades),
	}
}

// IsEmpty reports whether no field carries a meaningful value. Callers pass a
// normalized document.
func (m MetadataOverlay) IsEmpty() bool {
	return m.PriceAED == nil && m.PriceT == nil &&
		m.OriginalPriceAED == nil && m.OriginalPriceT == nil &&
		m.SourceURL == "" && m.SourcePriceCurrency == "" &&
		m.SourceRegularPrice == nil && m.SourceSalePrice == nil &&
		m.SourceSaleStart == "" && m.SourceSaleEnd == "" && m.SaleEndsAt == "" &&
		m.SaleLabel == "" && len(m.SaleBadges) == 0 && len(m.SaleCalendar) == 0 &&
		m.SourceLastSyncedAt == "" && m.SourceSyncError == "" &&
		m.Tagline == "" && len(m.RelatedProductIDs) == 0 && len(m.ColorShades) == 0
}

// SaleEndDate returns the day the recorded sale ends. The source-reported
// end wins over the generic one.
func (m MetadataOverlay) SaleEndDate() (types.Date, bool) {
	for _, raw := range []string{m.SourceSaleEnd, m.SaleEndsAt} {
		if raw == "" {
			continue
		}
		if d, err := types.ParseDate(raw); err == nil {
			return d, true
		}
	}
	return types.Date{}, false
}

// RegionPricesSet reports whether any region price is present.
func (m MetadataOverlay) RegionPricesSet() bool {
	return m.PriceAED != nil || m.PriceT != nil || m.OriginalPriceAED != nil || m.OriginalPriceT != nil
}

func positiveAmount(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return nil
	}
	rounded, _ := decimal.NewFromFloat(*v).Round(2).Float64()
	if rounded <= 0 {
		return nil
	}
	return &rounded
}

func normalizeTimestamp(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// normalizeDayTimestamp accepts YYYY-MM-DD or RFC3339. Bare days become the
// start or end of that day in UTC.
func normalizeDayTimestamp(raw string, endOfDay bool) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) == len(types.DateLayout) {
		d, err := types.ParseDate(raw)
		if err != nil {
			return ""
		}
		if endOfDay {
			return d.EndOfDayISO()
		}
		return d.StartOfDayISO()
	}
	return normalizeTimestamp(raw)
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeCalendar(entries []SaleCalendarEntry) []SaleCalendarEntry {
	var out []SaleCalendarEntry
	for _, e := range entries {
		d, err := types.ParseDate(e.Date)
		if err != nil {
			continue
		}
		out = append(out, SaleCalendarEntry{
			Date:  d.String(),
			Label: strings.TrimSpace(e.Label),
			Price: positiveAmount(e.Price),
		})
	}
	return out
}

func normalizeShades(shades []ColorShade) []ColorShade {
	var out []ColorShade
	for _, s := range shades {
		name := strings.TrimSpace(s.Name)
		hex := strings.ToLower(strings.TrimSpace(s.Hex))
		if name == "" || !hexColorRe.MatchString(hex) {
			continue
		}
		out = append(out, ColorShade{Name: name, Hex: hex})
	}
	return out
}
