package httpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/nanocloud/internal/errs"
	"github.com/and161185/nanocloud/internal/model"
	"github.com/and161185/nanocloud/internal/service"
	"github.com/gofrs/uuid/v5"
)

var (
	_ service.AuthService    = (*fakeAuth)(nil)
	_ service.FileService    = (*fakeFiles)(nil)
	_ service.SharingService = (*fakeSharing)(nil)
	_ service.SummaryService = (*fakeSummary)(nil)
)

type fakeAuth struct {
	loginIP string
	err     error
}

func (f *fakeAuth) tokenFor(id uuid.UUID) string { return "tok-" + id.String() }

func (f *fakeAuth) user(email string) model.User {
	return model.User{ID: uuid.Must(uuid.NewV4()), Email: email, DisplayName: "alice", PwdHash: []byte("secret-hash")}
}

func (f *fakeAuth) Register(_ context.Context, _ string, email, _ string) (model.Tokens, model.User, error) {
	if f.err != nil {
		return model.Tokens{}, model.User{}, f.err
	}
	u := f.user(email)
	return model.Tokens{AccessToken: f.tokenFor(u.ID), ExpiresAt: time.Now().Add(time.Hour)}, u, nil
}

func (f *fakeAuth) Login(_ context.Context, email, _ string, ip string) (model.Tokens, model.User, error) {
	f.loginIP = ip
	if f.err != nil {
		return model.Tokens{}, model.User{}, f.err
	}
	u := f.user(email)
	return model.Tokens{AccessToken: f.tokenFor(u.ID), ExpiresAt: time.Now().Add(time.Hour)}, u, nil
}

func (f *fakeAuth) ParseToken(token string) (uuid.UUID, error) {
	id, err := uuid.FromString(strings.TrimPrefix(token, "tok-"))
	if err != nil || !strings.HasPrefix(token, "tok-") {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return id, nil
}

func (f *fakeAuth) Me(_ context.Context, id uuid.UUID) (model.User, error) {
	return model.User{ID: id, Email: "me@example.com", DisplayName: "me", PwdHash: []byte("secret-hash")}, nil
}

type fakeFiles struct {
	err       error
	lastQuery string
	lastMeta  model.FileMeta
	lastOwner uuid.UUID
	deleted   uuid.UUID
	files     []model.File
}

func (f *fakeFiles) RequestUpload(_ context.Context, owner uuid.UUID, filename, _ string) (model.UploadGrant, error) {
	if f.err != nil {
		return model.UploadGrant{}, f.err
	}
	key := fmt.Sprintf("uploads/%s/1-%s", owner, filename)
	return model.UploadGrant{URL: "https://s3.example/" + key, Key: key}, nil
}

func (f *fakeFiles) Create(_ context.Context, owner uuid.UUID, meta model.FileMeta) (*model.File, error) {
	f.lastMeta, f.lastOwner = meta, owner
	if f.err != nil {
		return nil, f.err
	}
	return &model.File{
		ID: uuid.Must(uuid.NewV4()), OriginalName: meta.OriginalName, ContentType: meta.ContentType,
		Size: *meta.Size, StorageKey: meta.StorageKey, OwnerID: owner,
	}, nil
}

func (f *fakeFiles) List(_ context.Context, owner uuid.UUID, query string) ([]model.File, error) {
	f.lastOwner, f.lastQuery = owner, query
	return f.files, f.err
}

func (f *fakeFiles) ListShared(_ context.Context, caller uuid.UUID) ([]model.File, error) {
	f.lastOwner = caller
	return f.files, f.err
}

func (f *fakeFiles) Get(_ context.Context, id uuid.UUID) (*model.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.File{ID: id}, nil
}

func (f *fakeFiles) GetForCaller(ctx context.Context, id, _ uuid.UUID) (*model.File, error) {
	return f.Get(ctx, id)
}

func (f *fakeFiles) DownloadURL(_ context.Context, id, _ uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://s3.example/get/" + id.String(), nil
}

func (f *fakeFiles) Delete(_ context.Context, id, _ uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = id
	return nil
}

type fakeSharing struct {
	err      error
	lastPerm model.Permission
	lastUser uuid.UUID
	public   *bool
}

func (f *fakeSharing) Info(context.Context, uuid.UUID, uuid.UUID) (model.SharingInfo, error) {
	return model.SharingInfo{}, f.err
}

func (f *fakeSharing) SetPublic(_ context.Context, _, _ uuid.UUID, enable bool) (model.SharingState, error) {
	f.public = &enable
	if f.err != nil {
		return model.SharingState{}, f.err
	}
	if !enable {
		return model.SharingState{}, nil
	}
	link := "http://localhost:5173/share/abc"
	return model.SharingState{IsPublic: true, PublicLink: &link}, nil
}

func (f *fakeSharing) AddCollaborator(_ context.Context, _, _ uuid.UUID, email string, perm model.Permission) ([]model.Collaborator, error) {
	f.lastPerm = perm
	if f.err != nil {
		return nil, f.err
	}
	return []model.Collaborator{{UserID: uuid.Must(uuid.NewV4()), Email: email, Permission: perm}}, nil
}

func (f *fakeSharing) RemoveCollaborator(_ context.Context, _, _, userID uuid.UUID) ([]model.Collaborator, error) {
	f.lastUser = userID
	return nil, f.err
}

func (f *fakeSharing) UpdateCollaboratorPermission(_ context.Context, _, _, userID uuid.UUID, perm model.Permission) ([]model.Collaborator, error) {
	f.lastUser, f.lastPerm = userID, perm
	if f.err != nil {
		return nil, f.err
	}
	return []model.Collaborator{{UserID: userID, Permission: perm}}, nil
}

func (f *fakeSharing) ResolvePublicAccess(_ context.Context, token string) (model.PublicFile, error) {
	if f.err != nil {
		return model.PublicFile{}, f.err
	}
	return model.PublicFile{Filename: "a.txt", Size: 3, ContentType: "text/plain", DownloadURL: "https://s3.example/" + token}, nil
}

type fakeSummary struct{ err error }

func (f *fakeSummary) Summarize(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "short: " + text, nil
}
