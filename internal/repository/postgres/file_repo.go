package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/and161185/nanocloud/internal/errs"
	"github.com/and161185/nanocloud/internal/model"
	"github.com/and161185/nanocloud/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// FileRepo implements FileRepository using PostgreSQL.
type FileRepo struct{ db *DB }

// NewFileRepo constructs a file repository.
func NewFileRepo(db *DB) *FileRepo { return &FileRepo{db: db} }

const fileCols = `id, original_filename, content_type, size_bytes, storage_key, owner_id, created_at,
is_public, COALESCE(share_token, ''), collaborators, version`

// Create inserts a new file row.
func (r *FileRepo) Create(ctx context.Context, f *model.File) error {
	collab, err := encodeCollaborators(f.Collaborators)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO files (id, original_filename, content_type, size_bytes, storage_key, owner_id, created_at,
                   is_public, share_token, collaborators, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, 1)`
	_, err = r.db.Pool.Exec(ctx, q,
		f.ID, f.OriginalName, f.ContentType, f.Size, f.StorageKey, f.OwnerID, f.CreatedAt,
		f.IsPublic, f.ShareToken, collab)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	if err != nil {
		return err
	}
	f.Version = 1
	return nil
}

// GetByID selects a file by id.
func (r *FileRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.File, error) {
	q := `SELECT ` + fileCols + ` FROM files WHERE id=$1`
	return scanFile(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByShareToken selects the file holding token.
func (r *FileRepo) GetByShareToken(ctx context.Context, token string) (*model.File, error) {
	q := `SELECT ` + fileCols + ` FROM files WHERE share_token=$1`
	return scanFile(r.db.Pool.QueryRow(ctx, q, token))
}

// ListByOwner returns owned files, newest first, optionally filtered by name.
func (r *FileRepo) ListByOwner(ctx context.Context, owner uuid.UUID, query string) ([]model.File, error) {
	if query == "" {
		q := `SELECT ` + fileCols + ` FROM files WHERE owner_id=$1 ORDER BY created_at DESC, id`
		return r.list(ctx, q, owner)
	}
	q := `SELECT ` + fileCols + ` FROM files WHERE owner_id=$1 AND original_filename ILIKE $2 ORDER BY created_at DESC, id`
	return r.list(ctx, q, owner, "%"+escapeLike(query)+"%")
}

// ListSharedWith returns files whose collaborator list contains userID, newest first.
func (r *FileRepo) ListSharedWith(ctx context.Context, userID uuid.UUID) ([]model.File, error) {
	q := `SELECT ` + fileCols + ` FROM files
WHERE collaborators @> jsonb_build_array(jsonb_build_object('userId', $1::text))
ORDER BY created_at DESC, id`
	return r.list(ctx, q, userID.String())
}

func (r *FileRepo) list(ctx context.Context, q string, args ...any) ([]model.File, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// Update locks the row, applies fn and writes back the sharing columns.
func (r *FileRepo) Update(ctx context.Context, id uuid.UUID, fn repository.UpdateFunc) (res *model.File, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
			res = nil
		}
	}()

	q := `SELECT ` + fileCols + ` FROM files WHERE id=$1 FOR UPDATE`
	cur, err := scanFile(tx.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}

	next := *cur
	next.Collaborators = slices.Clone(cur.Collaborators)
	if err = fn(&next); err != nil {
		return nil, err
	}

	collab, err := encodeCollaborators(next.Collaborators)
	if err != nil {
		return nil, err
	}

	const upd = `
UPDATE files
SET is_public=$2, share_token=NULLIF($3, ''), collaborators=$4, version=version+1
WHERE id=$1
RETURNING version`
	var ver int64
	if err = tx.QueryRow(ctx, upd, id, next.IsPublic, next.ShareToken, collab).Scan(&ver); err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("share token: %w", errs.ErrConflict)
		}
		return nil, err
	}

	cur.IsPublic = next.IsPublic
	cur.ShareToken = next.ShareToken
	cur.Collaborators = next.Collaborators
	cur.Version = ver
	return cur, nil
}

// Delete removes a file row.
func (r *FileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM files WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func scanFile(row pgx.Row) (*model.File, error) {
	var (
		f      model.File
		collab []byte
	)
	err := row.Scan(&f.ID, &f.OriginalName, &f.ContentType, &f.Size, &f.StorageKey, &f.OwnerID, &f.CreatedAt,
		&f.IsPublic, &f.ShareToken, &collab, &f.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if len(collab) > 0 {
		if err := json.Unmarshal(collab, &f.Collaborators); err != nil {
			return nil, fmt.Errorf("decode collaborators of %s: %w", f.ID, err)
		}
	}
	return &f, nil
}

func encodeCollaborators(c []model.Collaborator) ([]byte, error) {
	if c == nil {
		c = []model.Collaborator{}
	}
	return json.Marshal(c)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
