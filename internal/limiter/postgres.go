package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the part of a pgx pool the limiter uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG keeps failure counters in the auth_limiter table.
// Failures older than window restart the count; maxFails inside it blocks the pair for blockFor.
type PG struct {
	q        querier
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

// NewPG builds a limiter on an open pool, usually the registry's own.
func NewPG(pool *pgxpool.Pool, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	return newPG(pool, window, maxFails, blockFor)
}

func newPG(q querier, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	return &PG{q: q, window: window, maxFails: maxFails, blockFor: blockFor}
}

const (
	sqlBlockedUntil = `SELECT blocked_until FROM auth_limiter WHERE email=$1 AND ip_hash=$2`

	sqlReset = `
INSERT INTO auth_limiter (email, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 0, 'epoch', now())
ON CONFLICT (email, ip_hash)
DO UPDATE SET fail_count = 0, blocked_until = 'epoch', updated_at = now()`

	// $3 window, $4 maxFails, $5 blockFor. Reaching maxFails sets the block and zeroes the counter.
	sqlFail = `
INSERT INTO auth_limiter AS l (email, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, 'epoch', now())
ON CONFLICT (email, ip_hash) DO UPDATE SET
  fail_count = CASE
    WHEN now() - l.updated_at > $3::interval THEN 1
    WHEN l.fail_count + 1 >= $4 THEN 0
    ELSE l.fail_count + 1 END,
  blocked_until = CASE
    WHEN now() - l.updated_at <= $3::interval AND l.fail_count + 1 >= $4 THEN now() + $5::interval
    ELSE l.blocked_until END,
  updated_at = now()
RETURNING blocked_until`
)

// Allow reports whether the pair may attempt a login, with the remaining block otherwise.
func (l *PG) Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	var until time.Time
	err := l.q.QueryRow(ctx, sqlBlockedUntil, email, ipHash).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if left := time.Until(until); left > 0 {
		return false, left, nil
	}
	return true, 0, nil
}

// Success resets the pair.
func (l *PG) Success(ctx context.Context, email string, ipHash []byte) error {
	_, err := l.q.Exec(ctx, sqlReset, email, ipHash)
	return err
}

// Failure records one failed attempt in a single statement.
func (l *PG) Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	var until time.Time
	if err := l.q.QueryRow(ctx, sqlFail, email, ipHash, l.window, l.maxFails, l.blockFor).Scan(&until); err != nil {
		return false, 0, err
	}
	if left := time.Until(until); left > 0 {
		return true, left, nil
	}
	return false, 0, nil
}
