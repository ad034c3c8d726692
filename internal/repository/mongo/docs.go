package mongo

import (
	"fmt"
	"time"

	"github.com/and161185/nanocloud/internal/model"
	"github.com/gofrs/uuid/v5"
)

type userDoc struct {
	ID          string    `bson:"_id"`
	Email       string    `bson:"email"`
	DisplayName string    `bson:"displayName"`
	PwdHash     []byte    `bson:"pwdHash"`
	SaltAuth    []byte    `bson:"saltAuth"`
	CreatedAt   time.Time `bson:"createdAt"`
}

type collaboratorDoc struct {
	UserID     string `bson:"userId"`
	Email      string `bson:"email"`
	Permission string `bson:"permission"`
}

type fileDoc struct {
	ID               string            `bson:"_id"`
	OriginalFilename string            `bson:"originalFilename"`
	Mimetype         string            `bson:"mimetype"`
	FileSize         int64             `bson:"fileSize"`
	S3Key            string            `bson:"s3Key"`
	Owner            string            `bson:"owner"`
	UploadDate       time.Time         `bson:"uploadDate"`
	IsPublic         bool              `bson:"isPublic"`
	ShareToken       string            `bson:"shareToken,omitempty"` // absent until first publish, keeps the sparse index valid
	Collaborators    []collaboratorDoc `bson:"collaborators"`
	Version          int64             `bson:"version"`
}

func toUserDoc(u *model.User) userDoc {
	return userDoc{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PwdHash:     u.PwdHash,
		SaltAuth:    u.SaltAuth,
		CreatedAt:   u.CreatedAt,
	}
}

func (d userDoc) model() (*model.User, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return nil, fmt.Errorf("user id %q: %w", d.ID, err)
	}
	return &model.User{
		ID:          id,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		PwdHash:     d.PwdHash,
		SaltAuth:    d.SaltAuth,
		CreatedAt:   d.CreatedAt,
	}, nil
}

func toCollaboratorDocs(cs []model.Collaborator) []collaboratorDoc {
	out := make([]collaboratorDoc, 0, len(cs))
	for _, c := range cs {
		out = append(out, collaboratorDoc{UserID: c.UserID.String(), Email: c.Email, Permission: string(c.Permission)})
	}
	return out
}

func toFileDoc(f *model.File) fileDoc {
	return fileDoc{
		ID:               f.ID.String(),
		OriginalFilename: f.OriginalName,
		Mimetype:         f.ContentType,
		FileSize:         f.Size,
		S3Key:            f.StorageKey,
		Owner:            f.OwnerID.String(),
		UploadDate:       f.CreatedAt,
		IsPublic:         f.IsPublic,
		ShareToken:       f.ShareToken,
		Collaborators:    toCollaboratorDocs(f.Collaborators),
		Version:          f.Version,
	}
}

func (d fileDoc) model() (*model.File, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return nil, fmt.Errorf("file id %q: %w", d.ID, err)
	}
	owner, err := uuid.FromString(d.Owner)
	if err != nil {
		return nil, fmt.Errorf("file %s owner %q: %w", d.ID, d.Owner, err)
	}
	f := &model.File{
		ID:            id,
		OriginalName:  d.OriginalFilename,
		ContentType:   d.Mimetype,
		Size:          d.FileSize,
		StorageKey:    d.S3Key,
		OwnerID:       owner,
		CreatedAt:     d.UploadDate,
		IsPublic:      d.IsPublic,
		ShareToken:    d.ShareToken,
		Collaborators: make([]model.Collaborator, 0, len(d.Collaborators)),
		Version:       d.Version,
	}
	for _, c := range d.Collaborators {
		uid, err := uuid.FromString(c.UserID)
		if err != nil {
			return nil, fmt.Errorf("file %s collaborator %q: %w", d.ID, c.UserID, err)
		}
		f.Collaborators = append(f.Collaborators, model.Collaborator{
			UserID: uid, Email: c.Email, Permission: model.Permission(c.Permission),
		})
	}
	return f, nil
}
