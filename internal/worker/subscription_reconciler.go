package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/userdir/internal/adapter/billing"
	domainErrors "github.com/polkiloo/userdir/internal/domain/errors"
	"github.com/polkiloo/userdir/internal/domain/model"
)

// DirectoryFacade exposes the subset of application functionality
// required by the reconciler.
type DirectoryFacade interface {
	ListUsers(ctx context.Context, cursor string, limit int) ([]model.User, string, error)
	CheckSubscription(ctx context.Context, customerID string) (*billing.Subscription, error)
	ApplySubscription(ctx context.Context, customerID string, active bool) (*model.User, error)
}

// SubscriptionReconciler periodically pages through the directory and
// aligns each linked account's subscription flag with the billing
// provider's state.
type SubscriptionReconciler struct {
	facade       DirectoryFacade
	pollInterval time.Duration
	batchSize    int
	workers      int
	logger       *slog.Logger

	jobs   chan model.User
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewSubscriptionReconciler constructs the reconciler worker pool.
func NewSubscriptionReconciler(facade DirectoryFacade, pollInterval time.Duration, batchSize, workers int, logger *slog.Logger) *SubscriptionReconciler {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &SubscriptionReconciler{
		facade:       facade,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		workers:      workers,
		logger:       logger,
		jobs:         make(chan model.User, batchSize*workers),
	}
}

// Start launches background processing.
func (r *SubscriptionReconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(runCtx)
	}

	r.wg.Add(1)
	go r.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (r *SubscriptionReconciler) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *SubscriptionReconciler) dispatch(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.jobs)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fetchAndDispatch(ctx)
		}
	}
}

// fetchAndDispatch walks the full directory listing page by page. Pages
// are weakly consistent with concurrent writes, which is acceptable for a
// reconciliation pass: anything missed now is picked up on the next tick.
func (r *SubscriptionReconciler) fetchAndDispatch(ctx context.Context) {
	cursor := ""
	for {
		users, next, err := r.facade.ListUsers(ctx, cursor, r.batchSize)
		if err != nil {
			r.logger.Error("list users for reconciliation failed", slog.String("error", err.Error()))
			return
		}
		for _, usr := range users {
			if usr.StripeCustomerID == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case r.jobs <- usr:
			}
		}
		if next == "" {
			return
		}
		cursor = next
	}
}

func (r *SubscriptionReconciler) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case usr, ok := <-r.jobs:
			if !ok {
				return
			}
			r.handleUser(ctx, usr)
		}
	}
}

func (r *SubscriptionReconciler) handleUser(ctx context.Context, usr model.User) {
	sub, err := r.facade.CheckSubscription(ctx, usr.StripeCustomerID)
	if err != nil {
		switch e := err.(type) {
		case billing.TooManyRequestsError:
			r.logger.Warn("billing rate limited", slog.Duration("retry_after", e.RetryAfter))
			select {
			case <-ctx.Done():
			case <-time.After(e.RetryAfter):
			}
		default:
			if errors.Is(err, billing.ErrCustomerUnknown) {
				r.logger.Warn("customer unknown to billing provider",
					slog.String("login", usr.Login),
					slog.String("customer", usr.StripeCustomerID))
				return
			}
			r.logger.Error("billing fetch failed", slog.String("customer", usr.StripeCustomerID), slog.String("error", err.Error()))
		}
		return
	}

	if sub.Active == usr.IsSubscribed {
		return
	}

	if _, err := r.facade.ApplySubscription(ctx, usr.StripeCustomerID, sub.Active); err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			// The customer link moved while we were looking; next pass
			// sees the current state.
			return
		}
		r.logger.Error("apply subscription failed",
			slog.String("login", usr.Login),
			slog.String("error", err.Error()))
	}
}
