package ticket

import "errors"

// Sentinel errors for the ticket adapter. Callers treat both as
// recoverable for the current cycle: skip the check and retry on the
// next scheduled sweep.
var (
	// ErrRateLimited means the process-wide request ceiling was hit.
	// Distinct from transport failure so callers can back off instead
	// of counting it against the service.
	ErrRateLimited = errors.New("ticket: rate limit exceeded")

	// ErrUnavailable means the external service errored or a poll
	// exhausted its attempt budget without a terminal result.
	ErrUnavailable = errors.New("ticket: external service unavailable")
)
