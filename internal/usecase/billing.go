package usecase

import (
	"context"

	domainErrors "github.com/polkiloo/userdir/internal/domain/errors"
	"github.com/polkiloo/userdir/internal/domain/model"
	"github.com/polkiloo/userdir/internal/domain/repository"
)

// BillingUseCase applies already-interpreted billing events to the
// directory. Webhook verification and event decoding happen upstream.
type BillingUseCase struct {
	users repository.UserRepository
}

// NewBillingUseCase constructs BillingUseCase.
func NewBillingUseCase(users repository.UserRepository) *BillingUseCase {
	return &BillingUseCase{users: users}
}

// AttachCustomer binds a billing-customer id to the account. The id is
// write-once: attaching a different id to an account that already has one
// fails with ErrAlreadyExists.
func (u *BillingUseCase) AttachCustomer(ctx context.Context, login, customerID string) (*model.User, error) {
	if customerID == "" {
		return nil, domainErrors.ErrInvalidUser
	}
	var conflict error
	usr, err := updateWithRetry(ctx, u.users, login, func(usr *model.User) bool {
		if usr.StripeCustomerID == customerID {
			return false
		}
		if usr.StripeCustomerID != "" {
			conflict = domainErrors.ErrAlreadyExists
			return false
		}
		usr.StripeCustomerID = customerID
		return true
	})
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, conflict
	}
	return usr, nil
}

// SetSubscription flips the subscription flag for the user owning the
// customer id.
func (u *BillingUseCase) SetSubscription(ctx context.Context, customerID string, active bool) (*model.User, error) {
	usr, err := u.users.GetByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return u.SetSubscriptionByLogin(ctx, usr.Login, active)
}

// SetSubscriptionByLogin flips the subscription flag for a known login.
func (u *BillingUseCase) SetSubscriptionByLogin(ctx context.Context, login string, active bool) (*model.User, error) {
	return updateWithRetry(ctx, u.users, login, func(usr *model.User) bool {
		if usr.IsSubscribed == active {
			return false
		}
		usr.IsSubscribed = active
		return true
	})
}
