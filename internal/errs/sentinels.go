// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrBadRequest indicates malformed or missing input.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates a missing/invalid caller credential or failed login.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a valid caller without rights on the target (owner-only checks).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique constraint or duplicate-membership violation.
	ErrConflict = errors.New("conflict")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrVersionConflict indicates a concurrent document update won the race.
	ErrVersionConflict = errors.New("version conflict")
)

