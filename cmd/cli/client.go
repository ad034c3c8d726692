package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// apiError is a non-2xx answer from the API.
type apiError struct {
	Status int
	Msg    string
}

func (e *apiError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("server answered %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Msg, e.Status)
}

// client speaks the nanocloud REST API.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(base, token string) *client {
	return &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 60 * time.Second},
	}
}

// do sends in as JSON (when non-nil) and decodes the response into out (when non-nil).
func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var m struct {
			Msg string `json:"msg"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&m)
		return &apiError{Status: resp.StatusCode, Msg: m.Msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ---- typed calls ----

type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      user      `json:"user"`
}

type user struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type collaborator struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

type file struct {
	ID               string         `json:"_id"`
	OriginalFilename string         `json:"originalFilename"`
	S3Key            string         `json:"s3Key"`
	Mimetype         string         `json:"mimetype"`
	FileSize         int64          `json:"fileSize"`
	UploadDate       time.Time      `json:"uploadDate"`
	Owner            string         `json:"owner"`
	IsPublic         bool           `json:"isPublic"`
	ShareToken       *string        `json:"shareToken"`
	Collaborators    []collaborator `json:"collaborators"`
}

type sharingState struct {
	IsPublic   bool    `json:"isPublic"`
	PublicLink *string `json:"publicLink"`
}

type publicFile struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	Mimetype    string `json:"mimetype"`
	DownloadURL string `json:"downloadUrl"`
}

func (c *client) register(ctx context.Context, username, email, password string) (authResponse, error) {
	var out authResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register",
		map[string]string{"username": username, "email": email, "password": password}, &out)
	return out, err
}

func (c *client) login(ctx context.Context, email, password string) (authResponse, error) {
	var out authResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &out)
	return out, err
}

func (c *client) me(ctx context.Context) (user, error) {
	var out user
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out)
	return out, err
}

func (c *client) list(ctx context.Context, query string) ([]file, error) {
	path := "/api/files"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out []file
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *client) shared(ctx context.Context) ([]file, error) {
	var out []file
	err := c.do(ctx, http.MethodGet, "/api/files/shared", nil, &out)
	return out, err
}

// upload runs the three-step flow: request a URL, PUT the bytes, register the file.
func (c *client) upload(ctx context.Context, name, contentType string, data []byte) (file, error) {
	var grant struct {
		UploadURL string `json:"uploadUrl"`
		S3Key     string `json:"s3Key"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/files/generate-upload-url",
		map[string]string{"filename": name, "filetype": contentType}, &grant); err != nil {
		return file{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.UploadURL, bytes.NewReader(data))
	if err != nil {
		return file{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))
	resp, err := c.http.Do(req)
	if err != nil {
		return file{}, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return file{}, fmt.Errorf("object store rejected upload: %s", resp.Status)
	}

	var out file
	err = c.do(ctx, http.MethodPost, "/api/files/finalize-upload", map[string]any{
		"originalFilename": name,
		"s3Key":            grant.S3Key,
		"mimetype":         contentType,
		"fileSize":         len(data),
	}, &out)
	return out, err
}

func (c *client) downloadURL(ctx context.Context, id string) (string, error) {
	var out struct {
		DownloadURL string `json:"downloadUrl"`
	}
	err := c.do(ctx, http.MethodGet, "/api/files/download/"+url.PathEscape(id), nil, &out)
	return out.DownloadURL, err
}

// fetch streams a pre-signed GET URL into dst.
func (c *client) fetch(ctx context.Context, rawURL, dst string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return 0, fmt.Errorf("object store answered %s", resp.Status)
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func (c *client) remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/files/"+url.PathEscape(id), nil, nil)
}

func (c *client) sharingInfo(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/api/sharing/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *client) setPublic(ctx context.Context, id string, enable bool) (sharingState, error) {
	var out sharingState
	err := c.do(ctx, http.MethodPost, "/api/sharing/"+url.PathEscape(id)+"/public",
		map[string]bool{"isPublic": enable}, &out)
	return out, err
}

func (c *client) addCollaborator(ctx context.Context, id, email, perm string) ([]collaborator, error) {
	var out []collaborator
	err := c.do(ctx, http.MethodPost, "/api/sharing/"+url.PathEscape(id)+"/collaborators",
		map[string]string{"email": email, "permission": perm}, &out)
	return out, err
}

func (c *client) removeCollaborator(ctx context.Context, id, userID string) ([]collaborator, error) {
	var out []collaborator
	err := c.do(ctx, http.MethodDelete,
		"/api/sharing/"+url.PathEscape(id)+"/collaborators/"+url.PathEscape(userID), nil, &out)
	return out, err
}

func (c *client) setPermission(ctx context.Context, id, userID, perm string) ([]collaborator, error) {
	var out []collaborator
	err := c.do(ctx, http.MethodPatch,
		"/api/sharing/"+url.PathEscape(id)+"/collaborators/"+url.PathEscape(userID),
		map[string]string{"permission": perm}, &out)
	return out, err
}

func (c *client) resolvePublic(ctx context.Context, token string) (publicFile, error) {
	var out publicFile
	err := c.do(ctx, http.MethodGet, "/api/sharing/public/"+url.PathEscape(token), nil, &out)
	return out, err
}

func (c *client) summarize(ctx context.Context, text string) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	err := c.do(ctx, http.MethodPost, "/api/ai/summarize", map[string]string{"text": text}, &out)
	return out.Summary, err
}
