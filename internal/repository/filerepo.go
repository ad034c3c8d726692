package repository

import (
	"context"

	"github.com/and161185/nanocloud/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UpdateFunc mutates the current state of a file inside an atomic update.
// Returning an error aborts the update and nothing is written.
type UpdateFunc func(f *model.File) error

// FileRepository stores file records together with their sharing state.
// It never touches the object store.
type FileRepository interface {
	// Create inserts a new record; a duplicate storage key yields errs.ErrConflict.
	Create(ctx context.Context, f *model.File) error

	// GetByID returns a file by id or errs.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*model.File, error)

	// GetByShareToken returns the file holding token, public or not.
	GetByShareToken(ctx context.Context, token string) (*model.File, error)

	// ListByOwner returns files owned by owner, newest first. A non-empty query
	// keeps only files whose original name contains it, case-insensitively.
	ListByOwner(ctx context.Context, owner uuid.UUID, query string) ([]model.File, error)

	// ListSharedWith returns files where userID is a collaborator, newest first.
	ListSharedWith(ctx context.Context, userID uuid.UUID) ([]model.File, error)

	// Update re-reads the file, applies fn and persists sharing state
	// (IsPublic, ShareToken, Collaborators) as one atomic unit, bumping Version.
	// A share token already held by another file yields errs.ErrConflict.
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*model.File, error)

	// Delete removes the record or returns errs.ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) error
}
