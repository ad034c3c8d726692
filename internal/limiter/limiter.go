// Package limiter throttles password logins per (email, client address) pair.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter tracks failed logins and temporary lockouts.
type Limiter interface {
	// Allow reports whether a login attempt may proceed and, if not, for how long it stays blocked.
	Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
	// Success clears the failure history of the pair.
	Success(ctx context.Context, email string, ipHash []byte) error
	// Failure counts a failed attempt and reports whether it put the pair into lockout.
	Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
}

// HashIP hashes a client address so raw addresses are never persisted.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
