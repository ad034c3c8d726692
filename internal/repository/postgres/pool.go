// Package postgres contains PostgreSQL implementations of repository interfaces.
// File sharing state is stored in the files row itself, collaborators as a JSONB array.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of *pgxpool.Pool the repositories need.
// pgxmock.PgxPoolIface satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// DB is shared by the user and file repositories. The pool's lifetime is owned by the caller.
type DB struct{ Pool PgxPool }

const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err came from a unique index (email, s3_key, share_token).
func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == pgUniqueViolation
}
