package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable wraps network failures talking to the analysis service.
	ErrUpstreamUnavailable = errors.New("analysis upstream unavailable")
	// ErrMalformedBody is returned when the upstream body is not valid JSON.
	ErrMalformedBody = errors.New("analysis upstream returned malformed body")
	// ErrResponseTooLarge is returned when the upstream body exceeds the relay's read limit.
	ErrResponseTooLarge = errors.New("analysis upstream response too large")
	// ErrCanceled marks a relay abandoned because the caller went away.
	ErrCanceled = errors.New("analysis request canceled by caller")
	// ErrInvalidRequest marks an inbound body that cannot be forwarded.
	ErrInvalidRequest = errors.New("invalid analysis request")
	// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")
	// ErrNotFound is returned by archive lookups with no matching record.
	ErrNotFound = errors.New("analysis record not found")
)

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("analysis upstream status %d", e.Code)
	}
	return fmt.Sprintf("analysis upstream status %d: %s", e.Code, e.Body)
}
