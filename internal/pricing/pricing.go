// Package pricing holds the value types and error kinds shared by the
// extraction, conversion, sale lifecycle and sync packages.
package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pricesync-backend/pkg/types"
)

// ParsedPrice is what an extraction strategy reads from a listing page. It is
// recomputed on every sync and never stored as its own record.
type ParsedPrice struct {
	RegularKRW   decimal.Decimal  `json:"regularPriceKrw"`
	SaleKRW      *decimal.Decimal `json:"salePriceKrw,omitempty"`
	SaleStart    types.Date       `json:"saleStart"`
	SaleEnd      types.Date       `json:"saleEnd"`
	SaleDetected bool             `json:"saleDetected"`
}

// SaleEndsAt returns the end-of-day timestamp for the sale end, or "" when
// the page carried no end date.
func (p ParsedPrice) SaleEndsAt() string {
	return p.SaleEnd.EndOfDayISO()
}

// FXSnapshot is the set of KRW-based rates shared by every product in one
// sync run.
type FXSnapshot struct {
	USDPerKRW decimal.Decimal `json:"usdPerKrw"`
	AEDPerKRW decimal.Decimal `json:"aedPerKrw"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Validate reports an ErrFXUnavailable failure when any rate is not positive.
func (s FXSnapshot) Validate() error {
	if !s.USDPerKRW.IsPositive() {
		return Fail(ErrFXUnavailable, "usd rate %s is not positive", s.USDPerKRW)
	}
	if !s.AEDPerKRW.IsPositive() {
		return Fail(ErrFXUnavailable, "aed rate %s is not positive", s.AEDPerKRW)
	}
	return nil
}

// NewFXSnapshot builds a snapshot from float rates, rejecting NaN, infinities
// and non-positive values.
func NewFXSnapshot(usdPerKRW, aedPerKRW float64, fetchedAt time.Time) (FXSnapshot, error) {
	usd, err := positiveDecimal("USD", usdPerKRW)
	if err != nil {
		return FXSnapshot{}, err
	}
	aed, err := positiveDecimal("AED", aedPerKRW)
	if err != nil {
		return FXSnapshot{}, err
	}
	return FXSnapshot{USDPerKRW: usd, AEDPerKRW: aed, FetchedAt: fetchedAt}, nil
}

func positiveDecimal(symbol string, v float64) (decimal.Decimal, error) {
	if !IsPositiveFinite(v) {
		return decimal.Zero, Fail(ErrFXUnavailable, "%s rate %v is not a finite positive number", symbol, v)
	}
	return decimal.NewFromFloat(v), nil
}

// IsPositiveFinite reports whether v is a usable amount or rate.
func IsPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Fail wraps one of the sentinel kinds with a formatted detail message.
func Fail(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
