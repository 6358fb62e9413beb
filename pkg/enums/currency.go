package enums

import (
	"fmt"
	"strings"
)

// Currency represents a monetary denomination known to the pricing engine.
// USD is canonical, KRW is the marketplace source currency, AED and IRT
// (Toman) are display currencies.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyKRW Currency = "KRW"
	CurrencyAED Currency = "AED"
	CurrencyIRT Currency = "IRT"
)

var validCurrencies = []Currency{
	CurrencyUSD,
	CurrencyKRW,
	CurrencyAED,
	CurrencyIRT,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsDisplay reports whether the currency can be shown to shoppers.
func (c Currency) IsDisplay() bool {
	return c == CurrencyUSD || c == CurrencyAED || c == CurrencyIRT
}

// ParseCurrency converts a raw string into a Currency. "T" and "TOMAN" are
// accepted as aliases for IRT.
func ParseCurrency(value string) (Currency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	switch normalized {
	case "T", "TOMAN":
		return CurrencyIRT, nil
	}
	for _, candidate := range validCurrencies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
