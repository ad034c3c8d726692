// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID          uuid.UUID // PK
	Email       string    // unique
	DisplayName string
	PwdHash     []byte // Argon2id(password, SaltAuth)
	SaltAuth    []byte // per-user auth salt
	CreatedAt   time.Time
}

// Permission is the access level granted to a collaborator.
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// Valid reports whether p is one of the known permission levels.
func (p Permission) Valid() bool {
	return p == PermissionView || p == PermissionEdit
}

// Collaborator is a user granted access to a single file by its owner.
// Email is a snapshot taken when the collaborator was added.
type Collaborator struct {
	UserID     uuid.UUID  `json:"userId"`
	Email      string     `json:"email"`
	Permission Permission `json:"permission"`
}

// File is the registry record for one stored object, including its embedded sharing state.
type File struct {
	ID           uuid.UUID
	OriginalName string
	ContentType  string
	Size         int64
	StorageKey   string    // opaque object-store key, unique
	OwnerID      uuid.UUID // immutable
	CreatedAt    time.Time

	IsPublic      bool
	ShareToken    string // empty until the file is first made public; never regenerated
	Collaborators []Collaborator

	Version int64 // bumped on every sharing mutation
}

// HasShareToken reports whether a public token was ever minted for the file.
func (f *File) HasShareToken() bool { return f.ShareToken != "" }

// PubliclyReadable reports whether the file resolves through its share token.
func (f *File) PubliclyReadable() bool { return f.IsPublic && f.HasShareToken() }

// CollaboratorIndex returns the position of userID in the collaborator list or -1.
func (f *File) CollaboratorIndex(userID uuid.UUID) int {
	for i, c := range f.Collaborators {
		if c.UserID == userID {
			return i
		}
	}
	return -1
}

// FileMeta is the caller-reported metadata used to finalize an upload.
// Size is a pointer so that an absent size can be told apart from zero.
type FileMeta struct {
	OriginalName string
	ContentType  string
	StorageKey   string
	Size         *int64
}

// SharingState is the externally visible public-sharing fact of a file.
type SharingState struct {
	IsPublic   bool
	PublicLink *string
}

// SharingInfo is the owner's full view of a file's sharing state.
type SharingInfo struct {
	SharingState
	Collaborators []Collaborator
}

// PublicFile is the read-only descriptor returned for a resolved share token.
type PublicFile struct {
	Filename    string
	Size        int64
	ContentType string
	DownloadURL string
}

// UploadGrant is a time-limited permission to PUT one object into the store.
type UploadGrant struct {
	URL       string
	Key       string
	ExpiresAt time.Time
}
