// Package pricehistory records every price change in BigQuery and reads the
// per-product history back for operators.
package pricehistory

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/internal/pricing"
	pkgbigquery "github.com/angelmondragon/pricesync-backend/pkg/bigquery"
)

// Row is one record in the price history table.
type Row struct {
	EventID     string                  `bigquery:"event_id"`
	EventType   string                  `bigquery:"event_type"`
	ProductID   string                  `bigquery:"product_id"`
	OccurredAt  time.Time               `bigquery:"occurred_at"`
	PreviousUSD cbigquery.NullFloat64   `bigquery:"previous_usd"`
	PriceUSD    cbigquery.NullFloat64   `bigquery:"price_usd"`
	SaleActive  bool                    `bigquery:"sale_active"`
	SaleEndsAt  cbigquery.NullString    `bigquery:"sale_ends_at"`
	SourceURL   cbigquery.NullString    `bigquery:"source_url"`
	SaleEnd     cbigquery.NullString    `bigquery:"sale_end"`
	IngestedAt  cbigquery.NullTimestamp `bigquery:"ingested_at"`
}

// TableSpec is the layout used when the history table has to be created.
func TableSpec() (pkgbigquery.TableSpec, error) {
	schema, err := cbigquery.InferSchema(Row{})
	if err != nil {
		return pkgbigquery.TableSpec{}, err
	}
	return pkgbigquery.TableSpec{
		Schema:         schema,
		PartitionField: "occurred_at",
		ClusterFields:  []string{"product_id"},
		Description:    "Canonical USD price changes and sale expiries per product",
	}, nil
}

// Entry is the API view of a history row.
type Entry struct {
	EventType   pricing.EventType `json:"eventType"`
	OccurredAt  time.Time         `json:"occurredAt"`
	PreviousUSD *float64          `json:"previousUsd,omitempty"`
	PriceUSD    *float64          `json:"priceUsd,omitempty"`
	SaleActive  bool              `json:"saleActive"`
	SaleEndsAt  string            `json:"saleEndsAt,omitempty"`
	SaleEnd     string            `json:"saleEnd,omitempty"`
	SourceURL   string            `json:"sourceUrl,omitempty"`
}

// RowFromEvent maps a pricing event onto a history row. ok is false for
// events that carry no price information.
func RowFromEvent(event pricing.Event, now time.Time) (row Row, ok bool) {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	row = Row{
		EventID:    uuid.NewString(),
		EventType:  string(event.Type),
		ProductID:  event.ProductID.String(),
		OccurredAt: occurred.UTC(),
		IngestedAt: cbigquery.NullTimestamp{Timestamp: now.UTC(), Valid: true},
	}

	switch data := event.Data.(type) {
	case pricing.PriceSyncedData:
		row.PreviousUSD = nullFloat(data.BeforeUSD)
		row.PriceUSD = nullFloat(data.AfterUSD)
		row.SaleActive = data.SaleActive
		row.SaleEndsAt = nullString(data.SaleEndsAt)
		row.SourceURL = nullString(data.SourceURL)
	case pricing.SaleExpiredData:
		row.PriceUSD = nullFloat(data.RestoredUSD)
		row.SaleEnd = nullString(data.SaleEnd)
	default:
		return Row{}, false
	}
	return row, true
}

func (r Row) entry() Entry {
	e := Entry{
		EventType:  pricing.EventType(r.EventType),
		OccurredAt: r.OccurredAt.UTC(),
		SaleActive: r.SaleActive,
		SaleEndsAt: r.SaleEndsAt.StringVal,
		SaleEnd:    r.SaleEnd.StringVal,
		SourceURL:  r.SourceURL.StringVal,
	}
	if r.PreviousUSD.Valid {
		v := r.PreviousUSD.Float64
		e.PreviousUSD = &v
	}
	if r.PriceUSD.Valid {
		v := r.PriceUSD.Float64
		e.PriceUSD = &v
	}
	return e
}

func nullFloat(v float64) cbigquery.NullFloat64 {
	if v <= 0 {
		return cbigquery.NullFloat64{}
	}
	return cbigquery.NullFloat64{Float64: v, Valid: true}
}

func nullString(v string) cbigquery.NullString {
	if v == "" {
		return cbigquery.NullString{}
	}
	return cbigquery.NullString{StringVal: v, Valid: true}
}
