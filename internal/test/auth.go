package test

import (
	"context"
	"errors"

	"github.com/polkiloo/userdir/internal/domain/model"
	pkgAuth "github.com/polkiloo/userdir/internal/pkg/auth"
)

// HasherStub provides deterministic hashing for tests.
type HasherStub struct {
	HashFn    func(string) (string, error)
	CompareFn func(string, string) error
}

// Hash returns a predictable hash for the supplied password.
func (h HasherStub) Hash(password string) (string, error) {
	if h.HashFn != nil {
		return h.HashFn(password)
	}
	return "hash:" + password, nil
}

// Compare validates password against stored hash.
func (h HasherStub) Compare(hash string, password string) error {
	if h.CompareFn != nil {
		return h.CompareFn(hash, password)
	}
	if hash != "hash:"+password {
		return errors.New("mismatch")
	}
	return nil
}

// StrategyStub issues and parses tokens via function overrides.
type StrategyStub struct {
	IssueFn func(string) (string, error)
	ParseFn func(string) (string, error)
	NameVal string
}

// IssueToken returns deterministic tokens for tests.
func (s StrategyStub) IssueToken(sessionID string) (string, error) {
	if s.IssueFn != nil {
		return s.IssueFn(sessionID)
	}
	return "token:" + sessionID, nil
}

// ParseToken parses previously issued token strings.
func (s StrategyStub) ParseToken(token string) (string, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	if len(token) > 6 && token[:6] == "token:" {
		return token[6:], nil
	}
	return "", pkgAuth.ErrInvalidToken
}

// Name returns the strategy identifier used in tests.
func (s StrategyStub) Name() string {
	if s.NameVal != "" {
		return s.NameVal
	}
	return "stub"
}

// SessionResolverStub implements the middleware session resolution contract.
type SessionResolverStub struct {
	ParseFn         func(string) (string, error)
	UserBySessionFn func(context.Context, string) (*model.User, error)
	User            *model.User
	ParseErr        error
	ResolveErr      error
}

// ParseToken either delegates to override or returns predefined result.
func (s SessionResolverStub) ParseToken(token string) (string, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	if s.ParseErr != nil {
		return "", s.ParseErr
	}
	return "session", nil
}

// UserBySession resolves the session to the configured user.
func (s SessionResolverStub) UserBySession(ctx context.Context, sessionID string) (*model.User, error) {
	if s.UserBySessionFn != nil {
		return s.UserBySessionFn(ctx, sessionID)
	}
	if s.ResolveErr != nil {
		return nil, s.ResolveErr
	}
	if s.User != nil {
		return s.User, nil
	}
	return &model.User{Login: "alice", SessionID: sessionID}, nil
}

var _ pkgAuth.PasswordHasher = HasherStub{}
var _ pkgAuth.Strategy = StrategyStub{}
