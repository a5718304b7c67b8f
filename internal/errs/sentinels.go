// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across api/cache/service layers.
var (
	// ErrNoSession indicates no token pair is stored locally.
	ErrNoSession = errors.New("no session")

	// ErrSessionExpired indicates a 401 that survived the single refresh attempt
	// (or arrived with no refresh token to try). The local session is cleared
	// before this error is returned.
	ErrSessionExpired = errors.New("session expired")

	// ErrAlreadyReported indicates the server rejected a duplicate report (409).
	ErrAlreadyReported = errors.New("already reported")

	// ErrInFlight indicates the same action is already pending for this target.
	ErrInFlight = errors.New("action already in flight")

	// ErrNotFound indicates the requested entity is not in the local cache.
	ErrNotFound = errors.New("not found")
)
