package overlay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/internal/pricing"
	"github.com/angelmondragon/pricesync-backend/pkg/db"
)

// ErrConcurrentUpdate is returned when a row kept changing under a writer
// for every attempt.
var ErrConcurrentUpdate = errors.New("overlay row changed concurrently")

const defaultMaxAttempts = 5

type rowState[T any] struct {
	value   T
	version int64
	found   bool
}

// rowBackend is the per-table persistence a CAS loop needs. update and
// remove report false when the stored version no longer matches.
type rowBackend[T any] interface {
	load(ctx context.Context, id uuid.UUID) (rowState[T], error)
	insert(ctx context.Context, id uuid.UUID, value T, now time.Time) error
	update(ctx context.Context, id uuid.UUID, value T, version int64, now time.Time) (bool, error)
	remove(ctx context.Context, id uuid.UUID, version int64) (bool, error)
}

type docRules[T any] struct {
	normalize func(T) T
	empty     func(T) bool
}

// casMutate runs fn over the current row value and writes the normalized
// result guarded by the row version. Empty results delete the row.
func casMutate[T any](
	ctx context.Context,
	backend rowBackend[T],
	rules docRules[T],
	id uuid.UUID,
	attempts int,
	now func() time.Time,
	fn func(T) T,
) (T, error) {
	var zero T
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		current, err := backend.load(ctx, id)
		if err != nil {
			return zero, persistenceErr("load", id, err)
		}

		next := rules.normalize(fn(current.value))

		var written bool
		switch {
		case rules.empty(next) && !current.found:
			return next, nil
		case rules.empty(next):
			written, err = backend.remove(ctx, id, current.version)
		case !current.found:
			err = backend.insert(ctx, id, next, now())
			if db.IsUniqueViolation(err, "") {
				err = nil
			} else {
				written = err == nil
			}
		default:
			written, err = backend.update(ctx, id, next, current.version, now())
		}
		if err != nil {
			return zero, persistenceErr("write", id, err)
		}
		if written {
			return next, nil
		}
	}
	return zero, fmt.Errorf("%w: product %s", ErrConcurrentUpdate, id)
}

func persistenceErr(op string, id uuid.UUID, err error) error {
	return fmt.Errorf("%w: %s overlay %s: %w", pricing.ErrPersistence, op, id, err)
}
