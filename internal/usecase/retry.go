package usecase

import (
	"context"
	"errors"

	domainErrors "github.com/polkiloo/userdir/internal/domain/errors"
	"github.com/polkiloo/userdir/internal/domain/model"
	"github.com/polkiloo/userdir/internal/domain/repository"
)

// staleRetryLimit bounds optimistic-concurrency retries. The directory
// never retries on its own; losing a version race here means re-reading
// and reapplying the change against the fresh record.
const staleRetryLimit = 3

// updateWithRetry reads the record for login, applies mutate to a copy,
// and writes it back, retrying on ErrStaleState. mutate returning false
// means the record already has the desired shape and no write is needed.
func updateWithRetry(ctx context.Context, users repository.UserRepository, login string, mutate func(*model.User) bool) (*model.User, error) {
	var lastErr error
	for attempt := 0; attempt < staleRetryLimit; attempt++ {
		usr, err := users.GetByLogin(ctx, login)
		if err != nil {
			return nil, err
		}

		changed := usr.Clone()
		if !mutate(changed) {
			return usr, nil
		}

		lastErr = users.Update(ctx, changed)
		if lastErr == nil {
			return changed, nil
		}
		if !errors.Is(lastErr, domainErrors.ErrStaleState) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
