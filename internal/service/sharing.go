package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/nanocloud/internal/crypto"
	"github.com/and161185/nanocloud/internal/errs"
	"github.com/and161185/nanocloud/internal/model"
	"github.com/and161185/nanocloud/internal/objstore"
	"github.com/and161185/nanocloud/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// maxTokenAttempts bounds share token redraws on collision.
const maxTokenAttempts = 5

// SharingService mediates every change to a file's sharing state. Only the owner mutates it.
type SharingService interface {
	// Info returns public state and collaborators. Owner only.
	Info(ctx context.Context, id, caller uuid.UUID) (model.SharingInfo, error)
	// SetPublic publishes or unpublishes a file. The share token survives unpublishing.
	SetPublic(ctx context.Context, id, caller uuid.UUID, enable bool) (model.SharingState, error)
	// AddCollaborator grants a registered user access to a file.
	AddCollaborator(ctx context.Context, id, caller uuid.UUID, email string, perm model.Permission) ([]model.Collaborator, error)
	// RemoveCollaborator revokes access; removing a non-member is a no-op.
	RemoveCollaborator(ctx context.Context, id, caller, userID uuid.UUID) ([]model.Collaborator, error)
	// UpdateCollaboratorPermission changes the permission of an existing collaborator in place.
	UpdateCollaboratorPermission(ctx context.Context, id, caller, userID uuid.UUID, perm model.Permission) ([]model.Collaborator, error)
	// ResolvePublicAccess returns a download descriptor for a public file's token.
	ResolvePublicAccess(ctx context.Context, token string) (model.PublicFile, error)
}

type SharingServiceImpl struct {
	files       repository.FileRepository
	users       UserDirectory
	store       objstore.ObjectStore
	baseURL     string
	downloadTTL time.Duration
	newToken    func() (string, error)
}

var _ SharingService = (*SharingServiceImpl)(nil)

// NewSharingService constructs SharingService. baseURL prefixes public links.
func NewSharingService(files repository.FileRepository, users UserDirectory, store objstore.ObjectStore, baseURL string, downloadTTL time.Duration) *SharingServiceImpl {
	if downloadTTL <= 0 {
		downloadTTL = DefaultDownloadTTL
	}
	return &SharingServiceImpl{
		files:       files,
		users:       users,
		store:       store,
		baseURL:     strings.TrimRight(baseURL, "/"),
		downloadTTL: downloadTTL,
		newToken:    pkgcrypto.ShareToken,
	}
}

// PublicLink returns the share URL for token.
func (s *SharingServiceImpl) PublicLink(token string) string {
	return s.baseURL + "/share/" + token
}

func (s *SharingServiceImpl) state(f *model.File) model.SharingState {
	st := model.SharingState{IsPublic: f.IsPublic}
	if f.PubliclyReadable() {
		link := s.PublicLink(f.ShareToken)
		st.PublicLink = &link
	}
	return st
}

func ownedBy(caller uuid.UUID) func(*model.File) error {
	return func(f *model.File) error {
		if f.OwnerID != caller {
			return errs.ErrForbidden
		}
		return nil
	}
}

// ownerFile loads the file and checks caller is its owner.
func (s *SharingServiceImpl) ownerFile(ctx context.Context, id, caller uuid.UUID) (*model.File, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownedBy(caller)(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Info returns the owner's view of sharing state.
func (s *SharingServiceImpl) Info(ctx context.Context, id, caller uuid.UUID) (model.SharingInfo, error) {
	f, err := s.ownerFile(ctx, id, caller)
	if err != nil {
		return model.SharingInfo{}, err
	}
	return model.SharingInfo{SharingState: s.state(f), Collaborators: f.Collaborators}, nil
}

// SetPublic toggles the public flag, minting a token on first publish.
func (s *SharingServiceImpl) SetPublic(ctx context.Context, id, caller uuid.UUID, enable bool) (model.SharingState, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		candidate := ""
		if enable {
			tok, err := s.freshToken(ctx)
			if err != nil {
				return model.SharingState{}, err
			}
			candidate = tok
		}

		f, err := s.files.Update(ctx, id, func(cur *model.File) error {
			if err := ownedBy(caller)(cur); err != nil {
				return err
			}
			cur.IsPublic = enable
			if enable && !cur.HasShareToken() {
				cur.ShareToken = candidate
			}
			return nil
		})
		if errors.Is(err, errs.ErrConflict) {
			// token taken between the check and the write
			continue
		}
		if err != nil {
			return model.SharingState{}, err
		}
		return s.state(f), nil
	}
	return model.SharingState{}, fmt.Errorf("share token: %d collisions in a row", maxTokenAttempts)
}

// freshToken draws tokens until one is not held by any file.
func (s *SharingServiceImpl) freshToken(ctx context.Context) (string, error) {
	for i := 0; i < maxTokenAttempts; i++ {
		tok, err := s.newToken()
		if err != nil {
			return "", err
		}
		_, err = s.files.GetByShareToken(ctx, tok)
		if errors.Is(err, errs.ErrNotFound) {
			return tok, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("share token: %d collisions in a row", maxTokenAttempts)
}

// AddCollaborator appends a registered user to the collaborator list.
func (s *SharingServiceImpl) AddCollaborator(ctx context.Context, id, caller uuid.UUID, email string, perm model.Permission) ([]model.Collaborator, error) {
	if _, err := s.ownerFile(ctx, id, caller); err != nil {
		return nil, err
	}

	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", errs.ErrBadRequest)
	}
	if perm == "" {
		perm = model.PermissionView
	}
	if !perm.Valid() {
		return nil, fmt.Errorf("%w: permission must be view or edit", errs.ErrBadRequest)
	}

	invitee, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: no user with email %s", errs.ErrNotFound, email)
		}
		return nil, err
	}

	f, err := s.files.Update(ctx, id, func(cur *model.File) error {
		if err := ownedBy(caller)(cur); err != nil {
			return err
		}
		if invitee.ID == cur.OwnerID {
			return fmt.Errorf("%w: owner cannot be a collaborator", errs.ErrConflict)
		}
		if cur.CollaboratorIndex(invitee.ID) >= 0 {
			return fmt.Errorf("%w: user is already a collaborator", errs.ErrConflict)
		}
		cur.Collaborators = append(cur.Collaborators, model.Collaborator{
			UserID:     invitee.ID,
			Email:      invitee.Email,
			Permission: perm,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f.Collaborators, nil
}

// RemoveCollaborator drops userID from the list if present.
func (s *SharingServiceImpl) RemoveCollaborator(ctx context.Context, id, caller, userID uuid.UUID) ([]model.Collaborator, error) {
	f, err := s.files.Update(ctx, id, func(cur *model.File) error {
		if err := ownedBy(caller)(cur); err != nil {
			return err
		}
		cur.Collaborators = slices.DeleteFunc(cur.Collaborators, func(c model.Collaborator) bool {
			return c.UserID == userID
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f.Collaborators, nil
}

// UpdateCollaboratorPermission sets perm on an existing collaborator, keeping list order.
func (s *SharingServiceImpl) UpdateCollaboratorPermission(ctx context.Context, id, caller, userID uuid.UUID, perm model.Permission) ([]model.Collaborator, error) {
	if !perm.Valid() {
		if _, err := s.ownerFile(ctx, id, caller); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: permission must be view or edit", errs.ErrBadRequest)
	}

	f, err := s.files.Update(ctx, id, func(cur *model.File) error {
		if err := ownedBy(caller)(cur); err != nil {
			return err
		}
		i := cur.CollaboratorIndex(userID)
		if i < 0 {
			return fmt.Errorf("%w: user is not a collaborator", errs.ErrNotFound)
		}
		cur.Collaborators[i].Permission = perm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f.Collaborators, nil
}

// ResolvePublicAccess resolves token only while the file is public.
func (s *SharingServiceImpl) ResolvePublicAccess(ctx context.Context, token string) (model.PublicFile, error) {
	if !pkgcrypto.IsShareToken(token) {
		return model.PublicFile{}, errs.ErrNotFound
	}
	f, err := s.files.GetByShareToken(ctx, token)
	if err != nil {
		return model.PublicFile{}, err
	}
	if !f.IsPublic {
		return model.PublicFile{}, errs.ErrNotFound
	}

	url, err := s.store.PresignGet(ctx, f.StorageKey, f.OriginalName, s.downloadTTL)
	if err != nil {
		return model.PublicFile{}, err
	}
	return model.PublicFile{
		Filename:    f.OriginalName,
		Size:        f.Size,
		ContentType: f.ContentType,
		DownloadURL: url,
	}, nil
}
