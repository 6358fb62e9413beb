package overlay

import (
	"bytes"
	"encoding/json"
	"strings"
)

type fieldState uint8

const (
	fieldUnset fieldState = iota
	fieldClear
	fieldSet
)

// Field is a tri-state patch value. The zero value is Unset and leaves the
// stored value alone. In JSON an absent key is Unset, null is Clear and any
// other value is Set.
type Field[T any] struct {
	state fieldState
	value T
}

func Set[T any](v T) Field[T] { return Field[T]{state: fieldSet, value: v} }

func Clear[T any]() Field[T] { return Field[T]{state: fieldClear} }

func Unset[T any]() Field[T] { return Field[T]{} }

func (f Field[T]) IsUnset() bool { return f.state == fieldUnset }
func (f Field[T]) IsClear() bool { return f.state == fieldClear }
func (f Field[T]) IsSet() bool   { return f.state == fieldSet }

// Value returns the Set value and true, or the zero value and false.
func (f Field[T]) Value() (T, bool) {
	return f.value, f.state == fieldSet
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Clear[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Set(v)
	return nil
}

func apply[T any](f Field[T], current T) T {
	switch f.state {
	case fieldSet:
		return f.value
	case fieldClear:
		var zero T
		return zero
	default:
		return current
	}
}

func applyPtr[T any](f Field[T], current *T) *T {
	switch f.state {
	case fieldSet:
		v := f.value
		return &v
	case fieldClear:
		return nil
	default:
		return current
	}
}

// Patch describes an edit to a MetadataOverlay field by field.
type Patch struct {
	PriceAED         Field[float64] `json:"priceAed"`
	PriceT           Field[float64] `json:"priceT"`
	OriginalPriceAED Field[float64] `json:"originalPriceAed"`
	OriginalPriceT   Field[float64] `json:"originalPriceT"`

	SourceURL           Field[string]  `json:"sourceUrl"`
	SourcePriceCurrency Field[string]  `json:"sourcePriceCurrency"`
	SourceRegularPrice  Field[float64] `json:"sourceRegularPrice"`
	SourceSalePrice     Field[float64] `json:"sourceSalePrice"`

	SourceSaleStart Field[string]              `json:"sourceSaleStart"`
	SourceSaleEnd   Field[string]              `json:"sourceSaleEnd"`
	SaleEndsAt      Field[string]              `json:"saleEndsAt"`
	SaleLabel       Field[string]              `json:"saleLabel"`
	SaleBadges      Field[[]string]            `json:"saleBadges"`
	SaleCalendar    Field[[]SaleCalendarEntry] `json:"saleCalendar"`

	SourceLastSyncedAt Field[string] `json:"sourceLastSyncedAt"`
	SourceSyncError    Field[string] `json:"sourceSyncError"`

	Tagline           Field[string]       `json:"tagline"`
	RelatedProductIDs Field[[]string]     `json:"relatedProductIds"`
	ColorShades       Field[[]ColorShade] `json:"colorShades"`
}

// Apply merges the patch into current and returns the normalized result.
func (p Patch) Apply(current MetadataOverlay) MetadataOverlay {
	return Normalize(MetadataOverlay{
		PriceAED:         applyPtr(p.PriceAED, current.PriceAED),
		PriceT:           applyPtr(p.PriceT, current.PriceT),
		OriginalPriceAED: applyPtr(p.OriginalPriceAED, current.OriginalPriceAED),
		OriginalPriceT:   applyPtr(p.OriginalPriceT, current.OriginalPriceT),

		SourceURL:           apply(p.SourceURL, current.SourceURL),
		SourcePriceCurrency: apply(p.SourcePriceCurrency, current.SourcePriceCurrency),
		SourceRegularPrice:  applyPtr(p.SourceRegularPrice, current.SourceRegularPrice),
		SourceSalePrice:     applyPtr(p.SourceSalePrice, current.SourceSalePrice),

		SourceSaleStart: apply(p.SourceSaleStart, current.SourceSaleStart),
		SourceSaleEnd:   apply(p.SourceSaleEnd, current.SourceSaleEnd),
		SaleEndsAt:      apply(p.SaleEndsAt, current.SaleEndsAt),
		SaleLabel:       apply(p.SaleLabel, current.SaleLabel),
		SaleBadges:      apply(p.SaleBadges, current.SaleBadges),
		SaleCalendar:    apply(p.SaleCalendar, current.SaleCalendar),

		SourceLastSyncedAt: apply(p.SourceLastSyncedAt, current.SourceLastSyncedAt),
		SourceSyncError:    apply(p.SourceSyncError, current.SourceSyncError),

		Tagline:           apply(p.Tagline, current.Tagline),
		RelatedProductIDs: apply(p.RelatedProductIDs, current.RelatedProductIDs),
		ColorShades:       apply(p.ColorShades, current.ColorShades),
	})
}

// Problems lists Set values that normalization would silently discard,
// keyed by JSON field name. A nil map means the patch is clean. Clearing a
// field is always allowed; only a malformed replacement is reported.
func (p Patch) Problems() map[string]string {
	problems := map[string]string{}
	amounts := []struct {
		name  string
		field Field[float64]
	}{
		{"priceAed", p.PriceAED},
		{"priceT", p.PriceT},
		{"originalPriceAed", p.OriginalPriceAED},
		{"originalPriceT", p.OriginalPriceT},
		{"sourceRegularPrice", p.SourceRegularPrice},
		{"sourceSalePrice", p.SourceSalePrice},
	}
	for _, a := range amounts {
		if v, ok := a.field.Value(); ok && positiveAmount(&v) == nil {
			problems[a.name] = "must be a positive finite amount"
		}
	}

	days := []struct {
		name     string
		field    Field[string]
		endOfDay bool
	}{
		{"sourceSaleStart", p.SourceSaleStart, false},
		{"sourceSaleEnd", p.SourceSaleEnd, true},
		{"saleEndsAt", p.SaleEndsAt, true},
	}
	for _, d := range days {
		if v, ok := d.field.Value(); ok && strings.TrimSpace(v) != "" && normalizeDayTimestamp(v, d.endOfDay) == "" {
			problems[d.name] = "must be YYYY-MM-DD or RFC3339"
		}
	}
	if v, ok := p.SourceLastSyncedAt.Value(); ok && strings.TrimSpace(v) != "" && normalizeTimestamp(v) == "" {
		problems["sourceLastSyncedAt"] = "must be RFC3339"
	}

	if len(problems) == 0 {
		return nil
	}
	return problems
}

// IsNoop reports whether every field is Unset.
func (p Patch) IsNoop() bool {
	states := []fieldState{
		p.PriceAED.state, p.PriceT.state, p.OriginalPriceAED.state, p.OriginalPriceT.state,
		p.SourceURL.state, p.SourcePriceCurrency.state, p.SourceRegularPrice.state, p.SourceSalePrice.state,
		p.SourceSaleStart.state, p.SourceSaleEnd.state, p.SaleEndsAt.state, p.SaleLabel.state,
		p.SaleBadges.state, p.SaleCalendar.state,
		p.SourceLastSyncedAt.state, p.SourceSyncError.state,
		p.Tagline.state, p.RelatedProductIDs.state, p.ColorShades.state,
	}
	for _, s := range states {
		if s != fieldUnset {
			return false
		}
	}
	return true
}

// ClearSaleWindow clears every sale-window field: start, both end fields,
// label, badges and calendar.
func ClearSaleWindow() Patch {
	return Patch{
		SourceSaleStart: Clear[string](),
		SourceSaleEnd:   Clear[string](),
		SaleEndsAt:      Clear[string](),
		SaleLabel:       Clear[string](),
		SaleBadges:      Clear[[]string](),
		SaleCalendar:    Clear[[]SaleCalendarEntry](),
	}
}
