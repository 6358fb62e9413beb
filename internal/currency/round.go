// Package currency converts amounts between the canonical USD price, the KRW
// source price and the AED/Toman display currencies.
package currency

import "github.com/shopspring/decimal"

// Round2 rounds half-up to two decimal places. Amounts handled here are
// never negative, so decimal's half-away-from-zero rounding is half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Float2 rounds to two decimals and returns a float64 for storage.
func Float2(d decimal.Decimal) float64 {
	f, _ := Round2(d).Float64()
	return f
}
