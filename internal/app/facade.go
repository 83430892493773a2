package app

import (
	"context"
	"encoding/json"

	"github.com/polkiloo/userdir/internal/adapter/billing"
	"github.com/polkiloo/userdir/internal/domain/model"
	"github.com/polkiloo/userdir/internal/usecase"
)

// SubscriptionProvider exposes the billing provider lookup used by the
// facade and the reconciler.
type SubscriptionProvider interface {
	Fetch(ctx context.Context, customerID string) (*billing.Subscription, error)
}

// DirectoryFacade aggregates the application use cases behind the single
// surface the HTTP handlers and the reconciler consume.
type DirectoryFacade struct {
	auth     *usecase.AuthUseCase
	profiles *usecase.ProfileUseCase
	billing  *usecase.BillingUseCase
	provider SubscriptionProvider
}

func NewDirectoryFacade(auth *usecase.AuthUseCase, profiles *usecase.ProfileUseCase, billingUC *usecase.BillingUseCase, provider SubscriptionProvider) *DirectoryFacade {
	return &DirectoryFacade{auth: auth, profiles: profiles, billing: billingUC, provider: provider}
}

func (f *DirectoryFacade) Register(ctx context.Context, login, password string, profile json.RawMessage) (string, error) {
	_, token, err := f.auth.Register(ctx, login, password, profile)
	return token, err
}

func (f *DirectoryFacade) Authenticate(ctx context.Context, login, password string) (string, error) {
	_, token, err := f.auth.Authenticate(ctx, login, password)
	return token, err
}

func (f *DirectoryFacade) ParseToken(token string) (string, error) {
	return f.auth.ParseToken(token)
}

func (f *DirectoryFacade) UserBySession(ctx context.Context, sessionID string) (*model.User, error) {
	return f.auth.UserBySession(ctx, sessionID)
}

func (f *DirectoryFacade) RefreshSession(ctx context.Context, usr *model.User) (string, error) {
	_, token, err := f.auth.RotateSession(ctx, usr)
	return token, err
}

func (f *DirectoryFacade) Logout(ctx context.Context, usr *model.User) error {
	return f.auth.Invalidate(ctx, usr)
}

func (f *DirectoryFacade) UpdateProfile(ctx context.Context, login string, profile json.RawMessage) (*model.User, error) {
	return f.profiles.UpdateProfile(ctx, login, profile)
}

func (f *DirectoryFacade) ListUsers(ctx context.Context, cursor string, limit int) ([]model.User, string, error) {
	return f.profiles.List(ctx, cursor, limit)
}

func (f *DirectoryFacade) AttachCustomer(ctx context.Context, login, customerID string) (*model.User, error) {
	return f.billing.AttachCustomer(ctx, login, customerID)
}

func (f *DirectoryFacade) ApplySubscription(ctx context.Context, customerID string, active bool) (*model.User, error) {
	return f.billing.SetSubscription(ctx, customerID, active)
}

func (f *DirectoryFacade) CheckSubscription(ctx context.Context, customerID string) (*billing.Subscription, error) {
	return f.provider.Fetch(ctx, customerID)
}
