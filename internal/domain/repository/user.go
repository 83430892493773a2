package repository

import (
	"context"

	"github.com/polkiloo/userdir/internal/domain/model"
)

// UserRepository describes indexed persistence operations for users.
// Implementations keep the primary record and both secondary indexes
// mutually consistent: every write either lands on all applicable keys
// or on none of them.
type UserRepository interface {
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	GetBySession(ctx context.Context, sessionID string) (*model.User, error)
	GetByCustomerID(ctx context.Context, customerID string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	UpdateSession(ctx context.Context, user *model.User, newSessionID string) error
	List(ctx context.Context, cursor string, limit int) ([]model.User, string, error)
}
