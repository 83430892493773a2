package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/userdir/internal/domain/errors"
	"github.com/polkiloo/userdir/internal/domain/model"
	"github.com/polkiloo/userdir/internal/domain/repository"
	pkgAuth "github.com/polkiloo/userdir/internal/pkg/auth"
)

// AuthUseCase handles account registration and session lifecycle.
type AuthUseCase struct {
	users  repository.UserRepository
	hasher pkgAuth.PasswordHasher
	tokens pkgAuth.Strategy
}

// NewAuthUseCase constructs AuthUseCase.
func NewAuthUseCase(users repository.UserRepository, hasher pkgAuth.PasswordHasher, strategy pkgAuth.Strategy) *AuthUseCase {
	return &AuthUseCase{users: users, hasher: hasher, tokens: strategy}
}

// Register creates a new user with a fresh session and returns its token.
func (u *AuthUseCase) Register(ctx context.Context, login, password string, profile json.RawMessage) (*model.User, string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, "", domainErrors.ErrInvalidCredentials
	}

	hash, err := u.hasher.Hash(password)
	if err != nil {
		return nil, "", err
	}

	usr := &model.User{
		Login:        login,
		SessionID:    uuid.NewString(),
		PasswordHash: hash,
		Profile:      profile,
		CreatedAt:    time.Now().UTC(),
	}

	if err := u.users.Create(ctx, usr); err != nil {
		return nil, "", err
	}

	token, err := u.tokens.IssueToken(usr.SessionID)
	if err != nil {
		return nil, "", err
	}

	return usr, token, nil
}

// Authenticate validates credentials, rotates the user's session, and
// returns a token for the new session. Rotation invalidates whatever
// session the account held before.
func (u *AuthUseCase) Authenticate(ctx context.Context, login, password string) (*model.User, string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, "", domainErrors.ErrInvalidCredentials
	}

	usr, err := u.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, "", domainErrors.ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := u.hasher.Compare(usr.PasswordHash, password); err != nil {
		return nil, "", domainErrors.ErrInvalidCredentials
	}

	usr, err = u.rotate(ctx, usr)
	if err != nil {
		return nil, "", err
	}

	token, err := u.tokens.IssueToken(usr.SessionID)
	if err != nil {
		return nil, "", err
	}

	return usr, token, nil
}

// RotateSession replaces the user's current session and returns a token
// for the new one.
func (u *AuthUseCase) RotateSession(ctx context.Context, usr *model.User) (*model.User, string, error) {
	rotated, err := u.rotate(ctx, usr)
	if err != nil {
		return nil, "", err
	}

	token, err := u.tokens.IssueToken(rotated.SessionID)
	if err != nil {
		return nil, "", err
	}

	return rotated, token, nil
}

// Invalidate rotates the user's session to an id that is never disclosed,
// so the presented token stops resolving.
func (u *AuthUseCase) Invalidate(ctx context.Context, usr *model.User) error {
	_, err := u.rotate(ctx, usr)
	return err
}

// rotate performs the session rotation with a bounded retry: a rotation
// losing the race re-reads the primary record and tries again against the
// fresh state.
func (u *AuthUseCase) rotate(ctx context.Context, usr *model.User) (*model.User, error) {
	current := usr.Clone()
	var lastErr error
	for attempt := 0; attempt < staleRetryLimit; attempt++ {
		lastErr = u.users.UpdateSession(ctx, current, uuid.NewString())
		if lastErr == nil {
			return current, nil
		}
		if !errors.Is(lastErr, domainErrors.ErrStaleSession) {
			return nil, lastErr
		}
		fresh, err := u.users.GetByLogin(ctx, usr.Login)
		if err != nil {
			return nil, err
		}
		current = fresh
	}
	return nil, lastErr
}

// ParseToken extracts the session id from provided token.
func (u *AuthUseCase) ParseToken(token string) (string, error) {
	if token == "" {
		return "", pkgAuth.ErrInvalidToken
	}
	return u.tokens.ParseToken(token)
}

// UserBySession resolves an active session to its user record.
func (u *AuthUseCase) UserBySession(ctx context.Context, sessionID string) (*model.User, error) {
	return u.users.GetBySession(ctx, sessionID)
}
