package pricehistory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/pricesync-backend/internal/pricing"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// RetryPolicy controls how many times BigQuery inserts are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Recorder is a pricing.EventPublisher that appends one history row per
// event.
type Recorder struct {
	client tableInserter
	table  string
	retry  RetryPolicy
	now    func() time.Time
}

func NewRecorder(client tableInserter, table string, retry RetryPolicy) (*Recorder, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("price history table is required")
	}

	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff <= 0 {
		retry.MaximumBackoff = defaultMaximumBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = retry.InitialBackoff
	}

	return &Recorder{
		client: client,
		table:  table,
		retry:  retry,
		now:    time.Now,
	}, nil
}

// Publish streams one row per event. The event id doubles as the
// BigQuery insert id, so a retried insert is deduplicated server side.
func (r *Recorder) Publish(ctx context.Context, event pricing.Event) error {
	if r == nil || r.client == nil {
		return nil
	}
	row, ok := RowFromEvent(event, r.now())
	if !ok {
		return nil
	}
	saver := &cbigquery.StructSaver{Struct: &row, InsertID: row.EventID}
	return r.insertWithRetry(ctx, []any{saver})
}

func (r *Recorder) insertWithRetry(ctx context.Context, rows []any) error {
	var lastErr error
	for attempt := 0; attempt < r.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, r.retry.delay(attempt)); err != nil {
				return err
			}
		}
		lastErr = r.client.InsertRows(ctx, r.table, rows)
		if lastErr == nil || !isRetryableBigQueryError(lastErr) {
			break
		}
	}
	if lastErr != nil {
		return fmt.Errorf("insert %s rows: %w", r.table, lastErr)
	}
	return nil
}

// delay is the wait before the given retry attempt: InitialBackoff doubled
// per attempt and capped at MaximumBackoff.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt && d < p.MaximumBackoff; i++ {
		d *= 2
	}
	return min(d, p.MaximumBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableBigQueryError(err error) bool {
	if err == nil {
		return false
	}

	var multi *cbigquery.MultiError
	if errors.As(err, &multi) {
		if multi == nil || len(*multi) == 0 {
			return false
		}
		for _, inner := range *multi {
			if !isRetryableBigQueryError(inner) {
				return false
			}
		}
		return true
	}

	var pme *cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if pme == nil || len(*pme) == 0 {
			return false
		}
		for _, rowErr := range *pme {
			if !isRetryableBigQueryError(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return isRetryableHTTPCode(apiErr.Code)
	}

	var statusErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &statusErr) {
		if st := statusErr.GRPCStatus(); st != nil {
			return isRetryableGRPCCode(st.Code())
		}
	}

	return false
}

func isRetryableHTTPCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isRetryableGRPCCode(code codes.Code) bool {
	switch code {
	case codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable:
		return true
	default:
		return false
	}
}
