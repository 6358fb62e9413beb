package pricing

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrFetch             = errors.New("source fetch failed")
	ErrExtraction        = errors.New("price extraction failed")
	ErrFXUnavailable     = errors.New("fx snapshot unavailable")
	ErrPersistence       = errors.New("persistence failed")
)

// Kind is the stable, machine-readable name of a failure class.
type Kind string

const (
	KindNone              Kind = ""
	KindUnsupportedSource Kind = "unsupported_source"
	KindFetch             Kind = "fetch"
	KindExtraction        Kind = "extraction"
	KindFX                Kind = "fx"
	KindPersistence       Kind = "persistence"
	KindUnknown           Kind = "unknown"
)

// KindOf classifies err. Deadline and cancellation errors count as fetch
// failures because the only blocking per-item call is the page fetch.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnsupportedSource):
		return KindUnsupportedSource
	case errors.Is(err, ErrFetch), errors.Is(err, context.DeadlineExceeded):
		return KindFetch
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrFXUnavailable):
		return KindFX
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindUnknown
	}
}
