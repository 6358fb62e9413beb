package currency

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pricesync-backend/pkg/enums"
)

// DisplayRates are the fixed constants used to show catalog prices in AED
// and Toman without a network call.
type DisplayRates struct {
	AEDPerUSD   decimal.Decimal
	TomanPerUSD decimal.Decimal
}

func NewDisplayRates(aedPerUSD, tomanPerUSD float64) (DisplayRates, error) {
	if aedPerUSD <= 0 || tomanPerUSD <= 0 {
		return DisplayRates{}, fmt.Errorf("display rates must be positive")
	}
	return DisplayRates{
		AEDPerUSD:   decimal.NewFromFloat(aedPerUSD),
		TomanPerUSD: decimal.NewFromFloat(tomanPerUSD),
	}, nil
}

func (r DisplayRates) perUSD(c enums.Currency) (decimal.Decimal, error) {
	switch c {
	case enums.CurrencyUSD:
		return decimal.NewFromInt(1), nil
	case enums.CurrencyAED:
		return r.AEDPerUSD, nil
	case enums.CurrencyIRT:
		return r.TomanPerUSD, nil
	default:
		return decimal.Zero, fmt.Errorf("currency %q is not a display currency", c)
	}
}

// FromUSD converts a USD amount into a display currency.
func (r DisplayRates) FromUSD(usd decimal.Decimal, to enums.Currency) (decimal.Decimal, error) {
	rate, err := r.perUSD(to)
	if err != nil {
		return decimal.Zero, err
	}
	return Round2(usd.Mul(rate)), nil
}

// ToUSD converts a display-currency amount back into USD.
func (r DisplayRates) ToUSD(amount decimal.Decimal, from enums.Currency) (decimal.Decimal, error) {
	rate, err := r.perUSD(from)
	if err != nil {
		return decimal.Zero, err
	}
	return Round2(amount.Div(rate)), nil
}

// RegionPrices are the manually curated or sync-written overlay prices.
// Nil means "not set".
type RegionPrices struct {
	PriceAED         *float64
	PriceT           *float64
	OriginalPriceAED *float64
	OriginalPriceT   *float64
}

// DisplayPrice is a product price rendered in one currency.
type DisplayPrice struct {
	Currency      enums.Currency `json:"currency"`
	Price         float64        `json:"price"`
	OriginalPrice *float64       `json:"originalPrice,omitempty"`
	FromOverlay   bool           `json:"fromOverlay"`
}

// ProductPrice renders a product's canonical USD price in the requested
// currency. A region price stored on the overlay, whether written by sync or
// by an operator, wins verbatim over the USD-derived amount and is flagged
// FromOverlay.
func (r DisplayRates) ProductPrice(priceUSD float64, originalUSD *float64, region RegionPrices, to enums.Currency) (DisplayPrice, error) {
	out := DisplayPrice{Currency: to}

	stored, storedOriginal := region.forCurrency(to)
	if stored != nil {
		out.Price = *stored
		out.FromOverlay = true
		out.OriginalPrice = storedOriginal
		return out, nil
	}

	price, err := r.FromUSD(decimal.NewFromFloat(priceUSD), to)
	if err != nil {
		return DisplayPrice{}, err
	}
	out.Price = Float2(price)

	if originalUSD != nil && *originalUSD > priceUSD {
		original, err := r.FromUSD(decimal.NewFromFloat(*originalUSD), to)
		if err != nil {
			return DisplayPrice{}, err
		}
		v := Float2(original)
		out.OriginalPrice = &v
	}
	return out, nil
}

func (p RegionPrices) forCurrency(c enums.Currency) (*float64, *float64) {
	switch c {
	case enums.CurrencyAED:
		return p.PriceAED, p.OriginalPriceAED
	case enums.CurrencyIRT:
		return p.PriceT, p.OriginalPriceT
	default:
		return nil, nil
	}
}
