package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/and161185/nanocloud/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFile_WireShape(t *testing.T) {
	t.Parallel()

	id := uuid.Must(uuid.NewV4())
	owner := uuid.Must(uuid.NewV4())
	collab := uuid.Must(uuid.NewV4())
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	f := model.File{
		ID:           id,
		OriginalName: "report.pdf",
		ContentType:  "application/pdf",
		Size:         42,
		StorageKey:   "uploads/x/1-report.pdf",
		OwnerID:      owner,
		CreatedAt:    created,
		IsPublic:     true,
		ShareToken:   "abcDEF123",
		Collaborators: []model.Collaborator{
			{UserID: collab, Email: "b@example.com", Permission: model.PermissionEdit},
		},
	}

	raw, err := json.Marshal(ToFile(f))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, id.String(), got["_id"])
	assert.Equal(t, "report.pdf", got["originalFilename"])
	assert.Equal(t, "uploads/x/1-report.pdf", got["s3Key"])
	assert.Equal(t, "application/pdf", got["mimetype"])
	assert.EqualValues(t, 42, got["fileSize"])
	assert.Equal(t, owner.String(), got["owner"])
	assert.Equal(t, true, got["isPublic"])
	assert.Equal(t, "abcDEF123", got["shareToken"])
	assert.Equal(t, "2025-03-01T10:00:00Z", got["uploadDate"])

	cs, ok := got["collaborators"].([]any)
	require.True(t, ok)
	require.Len(t, cs, 1)
	c := cs[0].(map[string]any)
	assert.Equal(t, collab.String(), c["userId"])
	assert.Equal(t, "edit", c["permission"])
}

func TestToFile_NoTokenNoCollaborators(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(ToFile(model.File{ID: uuid.Must(uuid.NewV4())}))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Nil(t, got["shareToken"])
	assert.Equal(t, []any{}, got["collaborators"])
}

func TestToFiles_NilIsEmptyList(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(ToFiles(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestToUser_NoCredentials(t *testing.T) {
	t.Parallel()

	u := model.User{
		ID:          uuid.Must(uuid.NewV4()),
		Email:       "a@example.com",
		DisplayName: "alice",
		PwdHash:     []byte("hash"),
		SaltAuth:    []byte("salt"),
	}
	raw, err := json.Marshal(ToUser(u))
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, `"username":"alice"`)
	assert.NotContains(t, s, "hash")
	assert.NotContains(t, s, "salt")
}

func TestToSharingInfo_Flattened(t *testing.T) {
	t.Parallel()

	link := "http://localhost:5173/share/tok"
	raw, err := json.Marshal(ToSharingInfo(model.SharingInfo{
		SharingState: model.SharingState{IsPublic: true, PublicLink: &link},
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"isPublic":true,"publicLink":"http://localhost:5173/share/tok","collaborators":[]}`, string(raw))

	raw, err = json.Marshal(ToSharingState(model.SharingState{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"isPublic":false,"publicLink":null}`, string(raw))
}

func TestToPublicFile(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(ToPublicFile(model.PublicFile{
		Filename: "a.txt", Size: 3, ContentType: "text/plain", DownloadURL: "https://s3/x",
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"filename":"a.txt","size":3,"mimetype":"text/plain","downloadUrl":"https://s3/x"}`, string(raw))
}

func TestFinalizeUploadRequest_FileMeta(t *testing.T) {
	t.Parallel()

	var req FinalizeUploadRequest
	require.NoError(t, json.Unmarshal([]byte(`{"originalFilename":"a.txt","s3Key":"k","mimetype":"text/plain","fileSize":0}`), &req))

	meta := req.FileMeta()
	assert.Equal(t, "a.txt", meta.OriginalName)
	assert.Equal(t, "k", meta.StorageKey)
	assert.Equal(t, "text/plain", meta.ContentType)
	require.NotNil(t, meta.Size)
	assert.EqualValues(t, 0, *meta.Size)

	var missing FinalizeUploadRequest
	require.NoError(t, json.Unmarshal([]byte(`{"originalFilename":"a.txt"}`), &missing))
	assert.Nil(t, missing.FileMeta().Size)
}
