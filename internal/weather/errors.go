package weather

import (
	"context"
	"errors"
)

var (
	// ErrInvalidQuery is returned for empty or placeholder queries, before any lookup.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotFound is returned when every applicable source has been exhausted,
	// or when a collaborator reports that the requested item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSourceUnavailable marks transport failures, timeouts, non-2xx responses
	// and open circuit breakers. The resolver never returns it directly.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrParse marks an upstream payload that could not be decoded at all.
	ErrParse = errors.New("malformed upstream payload")
)

// Classify maps an external-call error to a short label for logs and metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unavailable"
	}
}
