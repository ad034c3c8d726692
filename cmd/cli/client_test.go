package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI imitates the REST API and the object store on one test server.
type fakeAPI struct {
	mu       sync.Mutex
	srv      *httptest.Server
	objects  map[string][]byte
	lastAuth string
	finalize map[string]any
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{objects: map[string][]byte{}}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"msg": "unauthorized: invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":     "tok-1",
			"expiresAt": time.Now().Add(time.Hour),
			"user":      map[string]string{"id": "u1", "email": in["email"]},
		})
	})
	mux.HandleFunc("GET /api/files", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		f.mu.Unlock()
		if r.URL.Query().Get("q") != "rep" {
			_, _ = io.WriteString(w, "[]")
			return
		}
		_, _ = io.WriteString(w, `[{"_id":"f1","originalFilename":"report.pdf","fileSize":10,"collaborators":[]}]`)
	})
	mux.HandleFunc("POST /api/files/generate-upload-url", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		key := "uploads/u1/1-" + in["filename"]
		_ = json.NewEncoder(w).Encode(map[string]string{"uploadUrl": f.srv.URL + "/bucket/" + key, "s3Key": key})
	})
	mux.HandleFunc("PUT /bucket/", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.objects[strings.TrimPrefix(r.URL.Path, "/bucket/")] = b
		f.mu.Unlock()
	})
	mux.HandleFunc("GET /bucket/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		b, ok := f.objects[strings.TrimPrefix(r.URL.Path, "/bucket/")]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	})
	mux.HandleFunc("POST /api/files/finalize-upload", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.finalize = in
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"_id": "f2", "originalFilename": in["originalFilename"], "s3Key": in["s3Key"],
			"mimetype": in["mimetype"], "fileSize": in["fileSize"], "collaborators": []any{},
		})
	})
	mux.HandleFunc("GET /api/files/download/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"downloadUrl": f.srv.URL + "/bucket/uploads/u1/1-" + r.PathValue("id")})
	})
	mux.HandleFunc("POST /api/sharing/{id}/public", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]bool
		_ = json.NewDecoder(r.Body).Decode(&in)
		if !in["isPublic"] {
			_, _ = io.WriteString(w, `{"isPublic":false,"publicLink":null}`)
			return
		}
		_, _ = io.WriteString(w, `{"isPublic":true,"publicLink":"http://localhost:5173/share/abc"}`)
	})
	mux.HandleFunc("GET /api/sharing/public/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"msg":"not found"}`)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) object(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key]
}

func (f *fakeAPI) seen() (auth string, finalize map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth, f.finalize
}

func TestClient_LoginAndErrors(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := newClient(api.srv.URL+"/", "")

	res, err := c.login(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, "a@example.com", res.User.Email)

	_, err = c.login(context.Background(), "a@example.com", "wrong")
	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "invalid credentials")

	_, err = c.resolvePublic(context.Background(), "nope")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestClient_ListSendsTokenAndQuery(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := newClient(api.srv.URL, "tok-1")

	fs, err := c.list(context.Background(), "rep")
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "report.pdf", fs[0].OriginalFilename)
	auth, _ := api.seen()
	assert.Equal(t, "Bearer tok-1", auth)
}

func TestClient_UploadThenDownload(t *testing.T) {
	t.Parallel()
	api := newFakeAPI(t)
	c := newClient(api.srv.URL, "tok-1")
	ctx := context.Background()

	f, err := c.upload(ctx, "a.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "f2", f.ID)
	assert.EqualValues(t, 5, f.FileSize)
	assert.Equal(t, []byte("hello"), api.object("uploads/u1/1-a.txt"))
	_, fin := api.seen()
	assert.Equal(t, "uploads/u1/1-a.txt", fin["s3Key"])

	u, err := c.downloadURL(ctx, "a.txt")
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "out.txt")
	n, err := c.fetch(ctx, u, dst)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = c.fetch(ctx, api.srv.URL+"/bucket/missing", dst)
	require.Error(t, err)
}

func TestCommands_LoginThenPublic(t *testing.T) {
	_ = withTmpConfig(t)
	api := newFakeAPI(t)

	run := func(args ...string) (string, error) {
		root := newRootCommand()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(append([]string{"--server", api.srv.URL}, args...))
		err := root.Execute()
		return out.String(), err
	}

	_, err := run("ls")
	require.Error(t, err, "not logged in yet")

	out, err := run("login", "-e", "a@example.com", "-p", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as a@example.com")

	out, err = run("ls", "-q", "rep")
	require.NoError(t, err)
	assert.Contains(t, out, "report.pdf")

	out, err = run("public", "f1", "on")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173/share/abc\n", out)

	out, err = run("public", "f1", "off")
	require.NoError(t, err)
	assert.Equal(t, "file is private\n", out)

	_, err = run("public", "f1", "maybe")
	require.Error(t, err)

	_, err = run("logout")
	require.NoError(t, err)
	_, err = run("ls")
	require.Error(t, err)
}
