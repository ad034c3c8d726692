// Package convert maps domain models to and from the JSON wire format of the HTTP API.
package convert

import (
	"time"

	"github.com/and161185/nanocloud/internal/model"
)

// --- requests ---

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UploadURLRequest is the body of POST /api/files/generate-upload-url.
type UploadURLRequest struct {
	Filename string `json:"filename"`
	Filetype string `json:"filetype"`
}

// FinalizeUploadRequest is the body of POST /api/files/finalize-upload.
type FinalizeUploadRequest struct {
	OriginalFilename string `json:"originalFilename"`
	S3Key            string `json:"s3Key"`
	Mimetype         string `json:"mimetype"`
	FileSize         *int64 `json:"fileSize"`
}

// FileMeta converts the request into registry metadata.
func (r FinalizeUploadRequest) FileMeta() model.FileMeta {
	return model.FileMeta{
		OriginalName: r.OriginalFilename,
		ContentType:  r.Mimetype,
		StorageKey:   r.S3Key,
		Size:         r.FileSize,
	}
}

// SetPublicRequest is the body of POST /api/sharing/:fileId/public.
type SetPublicRequest struct {
	IsPublic *bool `json:"isPublic"`
}

// AddCollaboratorRequest is the body of POST /api/sharing/:fileId/collaborators.
type AddCollaboratorRequest struct {
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

// PermissionRequest is the body of PATCH /api/sharing/:fileId/collaborators/:userId.
type PermissionRequest struct {
	Permission string `json:"permission"`
}

// SummarizeRequest is the body of POST /api/ai/summarize.
type SummarizeRequest struct {
	Text string `json:"text"`
}

// --- responses ---

// User is the public profile of an account; credential material is never included.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResponse carries an issued access token.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// Collaborator is one entry of a file's collaborator list.
type Collaborator struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

// File is the registry record as returned by file endpoints.
type File struct {
	ID               string         `json:"_id"`
	OriginalFilename string         `json:"originalFilename"`
	S3Key            string         `json:"s3Key"`
	Mimetype         string         `json:"mimetype"`
	FileSize         int64          `json:"fileSize"`
	UploadDate       time.Time      `json:"uploadDate"`
	Owner            string         `json:"owner"`
	IsPublic         bool           `json:"isPublic"`
	ShareToken       *string        `json:"shareToken"`
	Collaborators    []Collaborator `json:"collaborators"`
}

// UploadGrant is the response of generate-upload-url.
type UploadGrant struct {
	UploadURL string    `json:"uploadUrl"`
	S3Key     string    `json:"s3Key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DownloadURL is the response of the private download endpoint.
type DownloadURL struct {
	DownloadURL string `json:"downloadUrl"`
}

// SharingState is the response of the public toggle.
type SharingState struct {
	IsPublic   bool    `json:"isPublic"`
	PublicLink *string `json:"publicLink"`
}

// SharingInfo is the owner's view of a file's sharing state.
type SharingInfo struct {
	SharingState
	Collaborators []Collaborator `json:"collaborators"`
}

// PublicFile is the response of a resolved share token.
type PublicFile struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	Mimetype    string `json:"mimetype"`
	DownloadURL string `json:"downloadUrl"`
}

// Summary is the response of the summarize endpoint.
type Summary struct {
	Summary string `json:"summary"`
}

// Message is a plain status or error body.
type Message struct {
	Msg string `json:"msg"`
}

// ToUser converts a domain user to its public profile.
func ToUser(u model.User) User {
	return User{
		ID:        u.ID.String(),
		Username:  u.DisplayName,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// ToAuthResponse converts issued tokens and the signed-in user.
func ToAuthResponse(t model.Tokens, u model.User) AuthResponse {
	return AuthResponse{Token: t.AccessToken, ExpiresAt: t.ExpiresAt, User: ToUser(u)}
}

// ToCollaborators converts a collaborator list; nil becomes an empty list.
func ToCollaborators(cs []model.Collaborator) []Collaborator {
	out := make([]Collaborator, 0, len(cs))
	for _, c := range cs {
		out = append(out, Collaborator{
			UserID:     c.UserID.String(),
			Email:      c.Email,
			Permission: string(c.Permission),
		})
	}
	return out
}

// ToFile converts a file record.
func ToFile(f model.File) File {
	out := File{
		ID:               f.ID.String(),
		OriginalFilename: f.OriginalName,
		S3Key:            f.StorageKey,
		Mimetype:         f.ContentType,
		FileSize:         f.Size,
		UploadDate:       f.CreatedAt,
		Owner:            f.OwnerID.String(),
		IsPublic:         f.IsPublic,
		Collaborators:    ToCollaborators(f.Collaborators),
	}
	if f.HasShareToken() {
		tok := f.ShareToken
		out.ShareToken = &tok
	}
	return out
}

// ToFiles converts a list of file records; nil becomes an empty list.
func ToFiles(fs []model.File) []File {
	out := make([]File, 0, len(fs))
	for _, f := range fs {
		out = append(out, ToFile(f))
	}
	return out
}

// ToUploadGrant converts an upload grant.
func ToUploadGrant(g model.UploadGrant) UploadGrant {
	return UploadGrant{UploadURL: g.URL, S3Key: g.Key, ExpiresAt: g.ExpiresAt}
}

// ToSharingState converts the public sharing fact.
func ToSharingState(s model.SharingState) SharingState {
	return SharingState{IsPublic: s.IsPublic, PublicLink: s.PublicLink}
}

// ToSharingInfo converts the owner's sharing view.
func ToSharingInfo(s model.SharingInfo) SharingInfo {
	return SharingInfo{SharingState: ToSharingState(s.SharingState), Collaborators: ToCollaborators(s.Collaborators)}
}

// ToPublicFile converts a resolved public descriptor.
func ToPublicFile(p model.PublicFile) PublicFile {
	return PublicFile{Filename: p.Filename, Size: p.Size, Mimetype: p.ContentType, DownloadURL: p.DownloadURL}
}
