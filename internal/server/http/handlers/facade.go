package handlers

import (
	"context"
	"encoding/json"

	"github.com/polkiloo/userdir/internal/domain/model"
)

// AuthFacade describes authentication capabilities required by handlers.
type AuthFacade interface {
	Register(ctx context.Context, login, password string, profile json.RawMessage) (string, error)
	Authenticate(ctx context.Context, login, password string) (string, error)
	ParseToken(token string) (string, error)
	UserBySession(ctx context.Context, sessionID string) (*model.User, error)
	RefreshSession(ctx context.Context, usr *model.User) (string, error)
	Logout(ctx context.Context, usr *model.User) error
}

// UserFacade encapsulates profile and listing operations exposed via HTTP.
type UserFacade interface {
	UpdateProfile(ctx context.Context, login string, profile json.RawMessage) (*model.User, error)
	ListUsers(ctx context.Context, cursor string, limit int) ([]model.User, string, error)
}

// BillingFacade applies pre-verified billing events.
type BillingFacade interface {
	AttachCustomer(ctx context.Context, login, customerID string) (*model.User, error)
	ApplySubscription(ctx context.Context, customerID string, active bool) (*model.User, error)
}

// DirectoryFacade aggregates the full set of operations used across handlers.
type DirectoryFacade interface {
	AuthFacade
	UserFacade
	BillingFacade
}
