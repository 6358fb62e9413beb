package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

type EventType string

const (
	EventPriceSynced EventType = "price_synced"
	EventSaleExpired EventType = "sale_expired"
)

// Event is a price change notification for downstream consumers.
type Event struct {
	Type       EventType
	ProductID  uuid.UUID
	OccurredAt time.Time
	Data       any
}

// PriceSyncedData is the payload of EventPriceSynced.
type PriceSyncedData struct {
	BeforeUSD  float64 `json:"beforeUsd"`
	AfterUSD   float64 `json:"afterUsd"`
	SaleActive bool    `json:"saleActive"`
	SaleEndsAt string  `json:"saleEndsAt,omitempty"`
	SourceURL  string  `json:"sourceUrl"`
}

// SaleExpiredData is the payload of EventSaleExpired.
type SaleExpiredData struct {
	SaleEnd     string  `json:"saleEnd"`
	RestoredUSD float64 `json:"restoredUsd"`
}

// EventPublisher delivers events. Implementations must be safe to call with
// a nil receiver disabled by configuration.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Publishers fans one event out to every non-nil publisher. All publishers
// are attempted; their errors are combined.
type Publishers []EventPublisher

func (ps Publishers) Publish(ctx context.Context, event Event) error {
	var err error
	for _, p := range ps {
		if p == nil {
			continue
		}
		err = multierr.Append(err, p.Publish(ctx, event))
	}
	return err
}

// Compact drops nil entries and returns nil when nothing is left, so callers
// can skip publishing entirely.
func (ps Publishers) Compact() EventPublisher {
	out := make(Publishers, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}
