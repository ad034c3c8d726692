package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/nanocloud/internal/errs"
	"github.com/and161185/nanocloud/internal/model"
	"github.com/and161185/nanocloud/internal/objstore"
	"github.com/and161185/nanocloud/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// Default grant lifetimes.
const (
	DefaultUploadTTL   = time.Hour
	DefaultDownloadTTL = 15 * time.Minute
)

// FileService is the file registry: upload grants, metadata and access checks.
type FileService interface {
	// RequestUpload returns a pre-signed upload URL for a new object of owner.
	RequestUpload(ctx context.Context, owner uuid.UUID, filename, contentType string) (model.UploadGrant, error)
	// Create records an uploaded object.
	Create(ctx context.Context, owner uuid.UUID, meta model.FileMeta) (*model.File, error)
	// List returns owner's files, newest first, optionally filtered by name.
	List(ctx context.Context, owner uuid.UUID, query string) ([]model.File, error)
	// ListShared returns files where caller is a collaborator.
	ListShared(ctx context.Context, caller uuid.UUID) ([]model.File, error)
	// Get returns a file regardless of caller.
	Get(ctx context.Context, id uuid.UUID) (*model.File, error)
	// GetForCaller returns a file the caller owns or collaborates on.
	GetForCaller(ctx context.Context, id, caller uuid.UUID) (*model.File, error)
	// DownloadURL returns a short-lived GET URL for an owner or collaborator.
	DownloadURL(ctx context.Context, id, caller uuid.UUID) (string, error)
	// Delete removes the stored object and then the record. Owner only.
	Delete(ctx context.Context, id, caller uuid.UUID) error
}

type FileServiceImpl struct {
	files       repository.FileRepository
	store       objstore.ObjectStore
	uploadTTL   time.Duration
	downloadTTL time.Duration
	now         func() time.Time
}

var _ FileService = (*FileServiceImpl)(nil)

// NewFileService constructs FileService. Non-positive TTLs fall back to defaults.
func NewFileService(files repository.FileRepository, store objstore.ObjectStore, uploadTTL, downloadTTL time.Duration) *FileServiceImpl {
	if uploadTTL <= 0 {
		uploadTTL = DefaultUploadTTL
	}
	if downloadTTL <= 0 {
		downloadTTL = DefaultDownloadTTL
	}
	return &FileServiceImpl{files: files, store: store, uploadTTL: uploadTTL, downloadTTL: downloadTTL, now: time.Now}
}

// UploadPrefix is the key prefix all objects of owner live under.
func UploadPrefix(owner uuid.UUID) string {
	return "uploads/" + owner.String() + "/"
}

var keyNameCleaner = strings.NewReplacer("/", "_", `\`, "_")

// RequestUpload builds the key uploads/{owner}/{unixMillis}-{filename} and presigns a PUT for it.
func (s *FileServiceImpl) RequestUpload(ctx context.Context, owner uuid.UUID, filename, contentType string) (model.UploadGrant, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return model.UploadGrant{}, fmt.Errorf("%w: filename is required", errs.ErrBadRequest)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	now := s.now()
	key := fmt.Sprintf("%s%d-%s", UploadPrefix(owner), now.UnixMilli(), keyNameCleaner.Replace(filename))
	url, err := s.store.PresignPut(ctx, key, contentType, s.uploadTTL)
	if err != nil {
		return model.UploadGrant{}, err
	}
	return model.UploadGrant{URL: url, Key: key, ExpiresAt: now.Add(s.uploadTTL)}, nil
}

// Create validates caller-reported metadata and stores a new private record.
func (s *FileServiceImpl) Create(ctx context.Context, owner uuid.UUID, meta model.FileMeta) (*model.File, error) {
	switch {
	case strings.TrimSpace(meta.OriginalName) == "":
		return nil, fmt.Errorf("%w: originalFilename is required", errs.ErrBadRequest)
	case meta.StorageKey == "":
		return nil, fmt.Errorf("%w: s3Key is required", errs.ErrBadRequest)
	case meta.ContentType == "":
		return nil, fmt.Errorf("%w: mimetype is required", errs.ErrBadRequest)
	case meta.Size == nil:
		return nil, fmt.Errorf("%w: fileSize is required", errs.ErrBadRequest)
	case *meta.Size < 0:
		return nil, fmt.Errorf("%w: fileSize must not be negative", errs.ErrBadRequest)
	case !strings.HasPrefix(meta.StorageKey, UploadPrefix(owner)):
		return nil, fmt.Errorf("%w: s3Key outside the caller's upload area", errs.ErrBadRequest)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	f := &model.File{
		ID:            id,
		OriginalName:  strings.TrimSpace(meta.OriginalName),
		ContentType:   meta.ContentType,
		Size:          *meta.Size,
		StorageKey:    meta.StorageKey,
		OwnerID:       owner,
		CreatedAt:     s.now().UTC(),
		Collaborators: []model.Collaborator{},
	}
	if err := s.files.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// List returns owned files newest first.
func (s *FileServiceImpl) List(ctx context.Context, owner uuid.UUID, query string) ([]model.File, error) {
	return s.files.ListByOwner(ctx, owner, strings.TrimSpace(query))
}

// ListShared returns files shared with caller newest first.
func (s *FileServiceImpl) ListShared(ctx context.Context, caller uuid.UUID) ([]model.File, error) {
	return s.files.ListSharedWith(ctx, caller)
}

// Get returns a file by id.
func (s *FileServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.File, error) {
	return s.files.GetByID(ctx, id)
}

// GetForCaller returns a file visible to caller.
func (s *FileServiceImpl) GetForCaller(ctx context.Context, id, caller uuid.UUID) (*model.File, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(f, caller) {
		return nil, errs.ErrForbidden
	}
	return f, nil
}

// DownloadURL presigns a GET for a readable file.
func (s *FileServiceImpl) DownloadURL(ctx context.Context, id, caller uuid.UUID) (string, error) {
	f, err := s.GetForCaller(ctx, id, caller)
	if err != nil {
		return "", err
	}
	return s.store.PresignGet(ctx, f.StorageKey, "", s.downloadTTL)
}

// Delete removes the object first; the record stays if the store refuses.
func (s *FileServiceImpl) Delete(ctx context.Context, id, caller uuid.UUID) error {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if f.OwnerID != caller {
		return errs.ErrForbidden
	}
	if err := s.store.Delete(ctx, f.StorageKey); err != nil {
		return err
	}
	return s.files.Delete(ctx, id)
}

func canRead(f *model.File, caller uuid.UUID) bool {
	return f.OwnerID == caller || f.CollaboratorIndex(caller) >= 0
}
