// Package service contains application services for identity, the file registry,
// sharing and summarization.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/nanocloud/internal/crypto"
	"github.com/and161185/nanocloud/internal/errs"
	"github.com/and161185/nanocloud/internal/limiter"
	"github.com/and161185/nanocloud/internal/model"
	"github.com/and161185/nanocloud/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTTL is the lifetime of issued access tokens.
const DefaultAccessTTL = 3 * time.Hour

// AuthService defines identity operations.
type AuthService interface {
	// Register creates a new user and signs them in.
	Register(ctx context.Context, displayName, email, password string) (model.Tokens, model.User, error)
	// Login applies rate-limiting and authenticates the user.
	Login(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error)
	// ParseToken verifies an access token and returns the caller id.
	ParseToken(token string) (uuid.UUID, error)
	// Me returns the profile of the caller.
	Me(ctx context.Context, id uuid.UUID) (model.User, error)
}

// UserDirectory resolves registered users by email.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
}

var (
	_ AuthService   = (*AuthServiceImpl)(nil)
	_ UserDirectory = (*AuthServiceImpl)(nil)
)

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, displayName, email, password string) (model.Tokens, model.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: email and password are required", errs.ErrBadRequest)
	}
	if !strings.Contains(email, "@") {
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: invalid email", errs.ErrBadRequest)
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	hash, salt, err := pkgcrypto.NewPasswordHash(password)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}

	u := &model.User{
		ID:          uid,
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		PwdHash:     hash,
		SaltAuth:    salt,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return model.Tokens{}, model.User{}, fmt.Errorf("%w: user already exists", errs.ErrConflict)
		}
		return model.Tokens{}, model.User{}, err
	}

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// Login authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: email and password are required", errs.ErrBadRequest)
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same
		return model.Tokens{}, model.User{}, fmt.Errorf("%w: invalid credentials", errs.ErrUnauthorized)
	}

	// best-effort
	_ = s.lim.Success(ctx, email, ipHash)

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// Me loads the caller's profile.
func (s *AuthServiceImpl) Me(ctx context.Context, id uuid.UUID) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// FindByEmail looks up a registered user by email.
func (s *AuthServiceImpl) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.users.GetByEmail(ctx, NormalizeEmail(email))
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// ParseToken verifies an HS256 token and returns its subject as a user id.
func (s *AuthServiceImpl) ParseToken(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, fmt.Errorf("%w: no token", errs.ErrUnauthorized)
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	return id, nil
}
