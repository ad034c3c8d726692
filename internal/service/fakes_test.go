package service

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/nanocloud/internal/errs"
	"github.com/and161185/nanocloud/internal/limiter"
	"github.com/and161185/nanocloud/internal/model"
	"github.com/and161185/nanocloud/internal/objstore"
	"github.com/and161185/nanocloud/internal/repository"
	"github.com/gofrs/uuid/v5"
)

/************ users ************/

type fakeUsers struct {
	byEmail map[string]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{byEmail: map[string]*model.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return errs.ErrConflict
	}
	cpy := *u
	f.byEmail[u.Email] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

// directory adapts fakeUsers to UserDirectory.
type directory struct{ users *fakeUsers }

func (d directory) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return d.users.GetByEmail(ctx, NormalizeEmail(email))
}

/************ limiter ************/

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
	lastLogin    string
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, login string, _ []byte) (bool, time.Duration, error) {
	l.allowCalls++
	l.lastLogin = login
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

/************ files ************/

// fakeFiles is an in-memory FileRepository; Update is atomic under mu.
type fakeFiles struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.File

	updateConflicts int // next N updates fail with ErrConflict
	updateCalls     int
	tokenLookups    int
}

var _ repository.FileRepository = (*fakeFiles)(nil)

func newFakeFiles() *fakeFiles { return &fakeFiles{byID: map[uuid.UUID]*model.File{}} }

func cloneFile(f *model.File) *model.File {
	c := *f
	c.Collaborators = slices.Clone(f.Collaborators)
	return &c
}

func (r *fakeFiles) Create(_ context.Context, f *model.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.byID {
		if cur.StorageKey == f.StorageKey {
			return errs.ErrConflict
		}
	}
	f.Version = 1
	r.byID[f.ID] = cloneFile(f)
	return nil
}

func (r *fakeFiles) GetByID(_ context.Context, id uuid.UUID) (*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneFile(f), nil
}

func (r *fakeFiles) GetByShareToken(_ context.Context, token string) (*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenLookups++
	for _, f := range r.byID {
		if f.ShareToken == token && token != "" {
			return cloneFile(f), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *fakeFiles) sorted(keep func(*model.File) bool) []model.File {
	out := []model.File{}
	for _, f := range r.byID {
		if keep(f) {
			out = append(out, *cloneFile(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeFiles) ListByOwner(_ context.Context, owner uuid.UUID, query string) ([]model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(query)
	return r.sorted(func(f *model.File) bool {
		return f.OwnerID == owner && strings.Contains(strings.ToLower(f.OriginalName), q)
	}), nil
}

func (r *fakeFiles) ListSharedWith(_ context.Context, userID uuid.UUID) ([]model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(f *model.File) bool { return f.CollaboratorIndex(userID) >= 0 }), nil
}

func (r *fakeFiles) Update(_ context.Context, id uuid.UUID, fn repository.UpdateFunc) (*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	cur, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	next := cloneFile(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	if r.updateConflicts > 0 {
		r.updateConflicts--
		return nil, errs.ErrConflict
	}
	if next.ShareToken != "" {
		for oid, o := range r.byID {
			if oid != id && o.ShareToken == next.ShareToken {
				return nil, errs.ErrConflict
			}
		}
	}
	res := cloneFile(cur)
	res.IsPublic = next.IsPublic
	res.ShareToken = next.ShareToken
	res.Collaborators = next.Collaborators
	res.Version++
	r.byID[id] = cloneFile(res)
	return res, nil
}

func (r *fakeFiles) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

/************ object store ************/

type presignCall struct {
	key, contentType, downloadName string
	ttl                            time.Duration
}

type fakeStore struct {
	mu       sync.Mutex
	puts     []presignCall
	gets     []presignCall
	deleted  []string
	presErr  error
	delErr   error
	onDelete func(key string)
}

var _ objstore.ObjectStore = (*fakeStore)(nil)

func (s *fakeStore) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presErr != nil {
		return "", s.presErr
	}
	s.puts = append(s.puts, presignCall{key: key, contentType: contentType, ttl: ttl})
	return "https://store/put/" + key, nil
}

func (s *fakeStore) PresignGet(_ context.Context, key, downloadName string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presErr != nil {
		return "", s.presErr
	}
	s.gets = append(s.gets, presignCall{key: key, downloadName: downloadName, ttl: ttl})
	return "https://store/get/" + key, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onDelete != nil {
		s.onDelete(key)
	}
	if s.delErr != nil {
		return s.delErr
	}
	s.deleted = append(s.deleted, key)
	return nil
}

/************ summarizer ************/

type fakeSummarizer struct {
	out string
	err error
	got string
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	f.got = text
	return f.out, f.err
}

var errBoom = errors.New("boom")
