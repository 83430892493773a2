package test

import (
	"context"
	"sort"

	domainErrors "github.com/polkiloo/userdir/internal/domain/errors"
	"github.com/polkiloo/userdir/internal/domain/model"
	"github.com/polkiloo/userdir/internal/domain/repository"
)

// UserRepositoryStub stores users in-memory for tests, indexed the same
// three ways as the real directory.
type UserRepositoryStub struct {
	Users      map[string]*model.User
	BySession  map[string]*model.User
	ByCustomer map[string]*model.User
	Err        error

	CreateFn        func(context.Context, *model.User) error
	UpdateFn        func(context.Context, *model.User) error
	UpdateSessionFn func(context.Context, *model.User, string) error
	ListFn          func(context.Context, string, int) ([]model.User, string, error)
}

// NewUserRepositoryStub constructs stub repository with initialized maps.
func NewUserRepositoryStub() *UserRepositoryStub {
	return &UserRepositoryStub{
		Users:      make(map[string]*model.User),
		BySession:  make(map[string]*model.User),
		ByCustomer: make(map[string]*model.User),
	}
}

// Seed stores the user under all applicable indexes, bypassing Create.
func (s *UserRepositoryStub) Seed(usr *model.User) *model.User {
	stored := usr.Clone()
	s.Users[stored.Login] = stored
	s.BySession[stored.SessionID] = stored
	if stored.StripeCustomerID != "" {
		s.ByCustomer[stored.StripeCustomerID] = stored
	}
	return stored
}

// GetByLogin fetches user by login or returns not found.
func (s *UserRepositoryStub) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if usr, ok := s.Users[login]; ok {
		return usr.Clone(), nil
	}
	return nil, domainErrors.ErrNotFound
}

// GetBySession fetches user by session id or returns not found.
func (s *UserRepositoryStub) GetBySession(ctx context.Context, sessionID string) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if usr, ok := s.BySession[sessionID]; ok {
		return usr.Clone(), nil
	}
	return nil, domainErrors.ErrNotFound
}

// GetByCustomerID fetches user by billing customer id or returns not found.
func (s *UserRepositoryStub) GetByCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if usr, ok := s.ByCustomer[customerID]; ok {
		return usr.Clone(), nil
	}
	return nil, domainErrors.ErrNotFound
}

// Create registers user unless already present or stub has explicit error.
func (s *UserRepositoryStub) Create(ctx context.Context, usr *model.User) error {
	if s.Err != nil {
		return s.Err
	}
	if s.CreateFn != nil {
		return s.CreateFn(ctx, usr)
	}
	if _, exists := s.Users[usr.Login]; exists {
		return domainErrors.ErrAlreadyExists
	}
	if _, exists := s.BySession[usr.SessionID]; exists {
		return domainErrors.ErrAlreadyExists
	}
	if usr.StripeCustomerID != "" {
		if _, exists := s.ByCustomer[usr.StripeCustomerID]; exists {
			return domainErrors.ErrAlreadyExists
		}
	}
	s.Seed(usr)
	return nil
}

// Update replaces the stored record and re-indexes it.
func (s *UserRepositoryStub) Update(ctx context.Context, usr *model.User) error {
	if s.Err != nil {
		return s.Err
	}
	if s.UpdateFn != nil {
		return s.UpdateFn(ctx, usr)
	}
	stored, ok := s.Users[usr.Login]
	if !ok {
		return domainErrors.ErrNotFound
	}
	delete(s.BySession, stored.SessionID)
	if stored.StripeCustomerID != "" {
		delete(s.ByCustomer, stored.StripeCustomerID)
	}
	s.Seed(usr)
	return nil
}

// UpdateSession rotates the stored session when the caller's record is
// still current, mirroring the real repository's staleness contract.
func (s *UserRepositoryStub) UpdateSession(ctx context.Context, usr *model.User, newSessionID string) error {
	if s.Err != nil {
		return s.Err
	}
	if s.UpdateSessionFn != nil {
		return s.UpdateSessionFn(ctx, usr, newSessionID)
	}
	stored, ok := s.Users[usr.Login]
	if !ok || !stored.Equal(usr) {
		return domainErrors.ErrStaleSession
	}
	delete(s.BySession, stored.SessionID)
	stored.SessionID = newSessionID
	s.BySession[newSessionID] = stored
	usr.SessionID = newSessionID
	return nil
}

// List returns all stored users in login order; pagination is delegated
// to ListFn when configured.
func (s *UserRepositoryStub) List(ctx context.Context, cursor string, limit int) ([]model.User, string, error) {
	if s.Err != nil {
		return nil, "", s.Err
	}
	if s.ListFn != nil {
		return s.ListFn(ctx, cursor, limit)
	}
	logins := make([]string, 0, len(s.Users))
	for login := range s.Users {
		logins = append(logins, login)
	}
	sort.Strings(logins)
	users := make([]model.User, 0, len(logins))
	for _, login := range logins {
		users = append(users, *s.Users[login].Clone())
	}
	return users, "", nil
}

var _ repository.UserRepository = (*UserRepositoryStub)(nil)
