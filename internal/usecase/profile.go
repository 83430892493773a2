package usecase

import (
	"context"
	"encoding/json"

	"github.com/polkiloo/userdir/internal/domain/model"
	"github.com/polkiloo/userdir/internal/domain/repository"
)

// ProfileUseCase exposes profile reads, updates, and account listing.
type ProfileUseCase struct {
	users repository.UserRepository
}

// NewProfileUseCase constructs ProfileUseCase.
func NewProfileUseCase(users repository.UserRepository) *ProfileUseCase {
	return &ProfileUseCase{users: users}
}

// GetByLogin fetches a user by login.
func (u *ProfileUseCase) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	return u.users.GetByLogin(ctx, login)
}

// UpdateProfile replaces the opaque profile payload of the account. The
// directory treats the payload as pass-through data.
func (u *ProfileUseCase) UpdateProfile(ctx context.Context, login string, profile json.RawMessage) (*model.User, error) {
	return updateWithRetry(ctx, u.users, login, func(usr *model.User) bool {
		if string(usr.Profile) == string(profile) {
			return false
		}
		usr.Profile = profile
		return true
	})
}

// List pages through accounts in login order.
func (u *ProfileUseCase) List(ctx context.Context, cursor string, limit int) ([]model.User, string, error) {
	return u.users.List(ctx, cursor, limit)
}
