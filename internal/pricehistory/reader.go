package pricehistory

import (
	"context"
	"errors"
	"fmt"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	pkgbigquery "github.com/angelmondragon/pricesync-backend/pkg/bigquery"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500

	historySQL = `
SELECT
  event_type,
  occurred_at,
  previous_usd,
  price_usd,
  sale_active,
  sale_ends_at,
  sale_end,
  source_url
FROM %s
WHERE product_id = @product_id
ORDER BY occurred_at DESC
LIMIT @limit
`
)

type rowIterator interface {
	Next(dst any) error
}

type queryFunc func(ctx context.Context, sql string, params []cbigquery.QueryParameter) (rowIterator, error)

// Reader lists recorded price changes for one product, newest first.
type Reader struct {
	query    queryFunc
	tableRef string
}

func NewReader(client *pkgbigquery.Client, table string) (*Reader, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	query := func(ctx context.Context, sql string, params []cbigquery.QueryParameter) (rowIterator, error) {
		it, err := client.Query(ctx, sql, params)
		if err != nil {
			return nil, err
		}
		return it, nil
	}
	return newReader(query, client.TableRef(table))
}

func newReader(query queryFunc, tableRef string) (*Reader, error) {
	if query == nil {
		return nil, errors.New("query func required")
	}
	if tableRef == "" {
		return nil, errors.New("price history table is required")
	}
	return &Reader{query: query, tableRef: tableRef}, nil
}

// History returns at most limit entries for productID. A non-positive limit
// uses DefaultHistoryLimit.
func (r *Reader) History(ctx context.Context, productID uuid.UUID, limit int) ([]Entry, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	iter, err := r.query(ctx, fmt.Sprintf(historySQL, r.tableRef), []cbigquery.QueryParameter{
		{Name: "product_id", Value: productID.String()},
		{Name: "limit", Value: int64(limit)},
	})
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}

	entries := make([]Entry, 0, limit)
	for {
		var row Row
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading price history row: %w", err)
		}
		entries = append(entries, row.entry())
	}
	return entries, nil
}
