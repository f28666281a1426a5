package riot

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks an entity that is legitimately absent. It is terminal
	// and callers must not treat it as a failure.
	ErrNotFound = errors.New("entity not found")

	// ErrRateLimited and ErrServiceUnavailable are transient; the client retries
	// them itself and only surfaces them when the context ends mid-retry.
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrFatal marks an unexpected status. It is never retried.
	ErrFatal = errors.New("fatal api response")
)

// StatusError carries the details of a fatal response.
type StatusError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Path, e.StatusCode, body)
}

func (e *StatusError) Unwrap() error { return ErrFatal }

// IsTransient reports whether err is one of the retried error classes.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServiceUnavailable)
}
