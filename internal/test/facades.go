package test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polkiloo/userdir/internal/adapter/billing"
	"github.com/polkiloo/userdir/internal/domain/model"
)

// AuthFacadeStub simulates authentication facade interactions.
type AuthFacadeStub struct {
	RegisterFn      func(context.Context, string, string, json.RawMessage) (string, error)
	AuthenticateFn  func(context.Context, string, string) (string, error)
	ParseFn         func(string) (string, error)
	UserBySessionFn func(context.Context, string) (*model.User, error)
	RefreshFn       func(context.Context, *model.User) (string, error)
	LogoutFn        func(context.Context, *model.User) error
}

// Register returns token for successful registration scenarios.
func (s AuthFacadeStub) Register(ctx context.Context, login, password string, profile json.RawMessage) (string, error) {
	if s.RegisterFn != nil {
		return s.RegisterFn(ctx, login, password, profile)
	}
	return "token", nil
}

// Authenticate returns token for successful authentication scenarios.
func (s AuthFacadeStub) Authenticate(ctx context.Context, login, password string) (string, error) {
	if s.AuthenticateFn != nil {
		return s.AuthenticateFn(ctx, login, password)
	}
	return "token", nil
}

// ParseToken returns the session id embedded in the token.
func (s AuthFacadeStub) ParseToken(token string) (string, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	return "session", nil
}

// UserBySession resolves the session to a user record.
func (s AuthFacadeStub) UserBySession(ctx context.Context, sessionID string) (*model.User, error) {
	if s.UserBySessionFn != nil {
		return s.UserBySessionFn(ctx, sessionID)
	}
	return &model.User{Login: "alice", SessionID: sessionID}, nil
}

// RefreshSession rotates the session and returns a fresh token.
func (s AuthFacadeStub) RefreshSession(ctx context.Context, usr *model.User) (string, error) {
	if s.RefreshFn != nil {
		return s.RefreshFn(ctx, usr)
	}
	return "fresh-token", nil
}

// Logout invalidates the current session.
func (s AuthFacadeStub) Logout(ctx context.Context, usr *model.User) error {
	if s.LogoutFn != nil {
		return s.LogoutFn(ctx, usr)
	}
	return nil
}

// UserFacadeStub provides controllable behaviour for profile endpoints.
type UserFacadeStub struct {
	UpdateProfileFn func(context.Context, string, json.RawMessage) (*model.User, error)
	ListFn          func(context.Context, string, int) ([]model.User, string, error)
}

// UpdateProfile delegates to provided function or echoes the update back.
func (s UserFacadeStub) UpdateProfile(ctx context.Context, login string, profile json.RawMessage) (*model.User, error) {
	if s.UpdateProfileFn != nil {
		return s.UpdateProfileFn(ctx, login, profile)
	}
	return &model.User{Login: login, SessionID: "session", Profile: profile}, nil
}

// ListUsers returns predefined users.
func (s UserFacadeStub) ListUsers(ctx context.Context, cursor string, limit int) ([]model.User, string, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx, cursor, limit)
	}
	return []model.User{{Login: "alice", SessionID: "session"}}, "", nil
}

// BillingFacadeStub simulates billing event application.
type BillingFacadeStub struct {
	AttachFn func(context.Context, string, string) (*model.User, error)
	ApplyFn  func(context.Context, string, bool) (*model.User, error)
}

// AttachCustomer executes configured attach handler.
func (s BillingFacadeStub) AttachCustomer(ctx context.Context, login, customerID string) (*model.User, error) {
	if s.AttachFn != nil {
		return s.AttachFn(ctx, login, customerID)
	}
	return &model.User{Login: login, SessionID: "session", StripeCustomerID: customerID}, nil
}

// ApplySubscription executes configured subscription handler.
func (s BillingFacadeStub) ApplySubscription(ctx context.Context, customerID string, active bool) (*model.User, error) {
	if s.ApplyFn != nil {
		return s.ApplyFn(ctx, customerID, active)
	}
	return &model.User{Login: "alice", SessionID: "session", StripeCustomerID: customerID, IsSubscribed: active}, nil
}

// DirectoryFacadeStub aggregates facade dependencies for HTTP layer tests.
type DirectoryFacadeStub struct {
	AuthFacadeStub
	UserFacadeStub
	BillingFacadeStub
}

// SubscriptionApplyCall stores information about ApplySubscription invocations.
type SubscriptionApplyCall struct {
	CustomerID string
	Active     bool
}

// WorkerFacadeStub mimics reconciler interactions with the directory facade.
type WorkerFacadeStub struct {
	Pages         [][]model.User
	ListFn        func(context.Context, string, int) ([]model.User, string, error)
	CheckFn       func(context.Context, string) (*billing.Subscription, error)
	ApplyFn       func(context.Context, string, bool) (*model.User, error)
	Applied       []SubscriptionApplyCall
	mu            sync.Mutex
	listCallCount int32
}

// Lock exposes internal mutex for external synchronization.
func (s *WorkerFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *WorkerFacadeStub) Unlock() { s.mu.Unlock() }

// ListUsers returns pages from the configured queue, one per call.
func (s *WorkerFacadeStub) ListUsers(ctx context.Context, cursor string, limit int) ([]model.User, string, error) {
	if s.ListFn != nil {
		return s.ListFn(ctx, cursor, limit)
	}
	call := atomic.AddInt32(&s.listCallCount, 1)
	if int(call) <= len(s.Pages) {
		return s.Pages[call-1], "", nil
	}
	time.Sleep(10 * time.Millisecond)
	return nil, "", nil
}

// CheckSubscription returns configured subscription data.
func (s *WorkerFacadeStub) CheckSubscription(ctx context.Context, customerID string) (*billing.Subscription, error) {
	if s.CheckFn != nil {
		return s.CheckFn(ctx, customerID)
	}
	return &billing.Subscription{CustomerID: customerID, Active: true}, nil
}

// ApplySubscription records apply requests.
func (s *WorkerFacadeStub) ApplySubscription(ctx context.Context, customerID string, active bool) (*model.User, error) {
	if s.ApplyFn != nil {
		return s.ApplyFn(ctx, customerID, active)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Applied = append(s.Applied, SubscriptionApplyCall{CustomerID: customerID, Active: active})
	return &model.User{Login: "alice", SessionID: "session", StripeCustomerID: customerID, IsSubscribed: active}, nil
}

// BillingClientStub implements the billing client contract.
type BillingClientStub struct {
	FetchFn func(context.Context, string) (*billing.Subscription, error)
}

// Fetch delegates to the override or reports an active subscription.
func (s BillingClientStub) Fetch(ctx context.Context, customerID string) (*billing.Subscription, error) {
	if s.FetchFn != nil {
		return s.FetchFn(ctx, customerID)
	}
	return &billing.Subscription{CustomerID: customerID, Active: true}, nil
}
