package currency

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pricesync-backend/internal/pricing"
)

// Converted is one KRW amount expressed in every currency the sync writes.
type Converted struct {
	USD   decimal.Decimal
	AED   decimal.Decimal
	Toman decimal.Decimal
}

// SnapshotConverter converts KRW source amounts with a per-run FX snapshot.
// Toman has no live rate, so it is derived from the USD amount with the
// display constant.
type SnapshotConverter struct {
	snapshot pricing.FXSnapshot
	display  DisplayRates
}

func NewSnapshotConverter(snapshot pricing.FXSnapshot, display DisplayRates) (*SnapshotConverter, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return &SnapshotConverter{snapshot: snapshot, display: display}, nil
}

func (c *SnapshotConverter) Snapshot() pricing.FXSnapshot {
	return c.snapshot
}

// FromKRW converts and rounds a KRW amount.
func (c *SnapshotConverter) FromKRW(krw decimal.Decimal) Converted {
	usd := Round2(krw.Mul(c.snapshot.USDPerKRW))
	return Converted{
		USD:   usd,
		AED:   Round2(krw.Mul(c.snapshot.AEDPerKRW)),
		Toman: Round2(usd.Mul(c.display.TomanPerUSD)),
	}
}
