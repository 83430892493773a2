// Package directory implements the indexed user store. Every user owns a
// primary record keyed by login plus denormalized secondary records keyed
// by session id and billing-customer id. All writes that touch more than
// one key go through a single check-and-set transaction of the underlying
// kvstore, so a reader never observes a secondary record that disagrees
// with its primary.
package directory

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	domainErrors "github.com/polkiloo/userdir/internal/domain/errors"
	"github.com/polkiloo/userdir/internal/domain/model"
	"github.com/polkiloo/userdir/internal/domain/repository"
	"github.com/polkiloo/userdir/internal/kvstore"
)

// Key layout. This is a storage contract: pre-existing data depends on the
// exact prefixes.
const (
	loginKeyPrefix    = "user:by-login:"
	sessionKeyPrefix  = "user:by-session:"
	customerKeyPrefix = "user:by-customer:"
)

var _ repository.UserRepository = (*Directory)(nil)

// Directory provides atomic, index-consistent access to user records.
// It holds no state of its own; the injected kvstore is the only shared
// mutable resource.
type Directory struct {
	kv     kvstore.Store
	logger *slog.Logger
}

// New creates a directory over the given store.
func New(kv kvstore.Store, logger *slog.Logger) *Directory {
	return &Directory{kv: kv, logger: logger}
}

func loginKey(login string) string       { return loginKeyPrefix + login }
func sessionKey(sessionID string) string { return sessionKeyPrefix + sessionID }
func customerKey(customerID string) string {
	return customerKeyPrefix + customerID
}

// GetByLogin returns the primary record for login.
func (d *Directory) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	return d.getKey(ctx, loginKey(login))
}

// GetBySession returns the record embedded in the session index. Index
// entries store the full denormalized record, so no second read is needed.
func (d *Directory) GetBySession(ctx context.Context, sessionID string) (*model.User, error) {
	return d.getKey(ctx, sessionKey(sessionID))
}

// GetByCustomerID returns the record embedded in the customer index.
func (d *Directory) GetByCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	return d.getKey(ctx, customerKey(customerID))
}

func (d *Directory) getKey(ctx context.Context, key string) (*model.User, error) {
	entry, err := d.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return decodeUser(entry.Value)
}

// Create stores a new user under all applicable keys. The transaction
// asserts absence of the login key, the session key, and the customer key
// when a customer id is set; if another writer raced on any of them the
// whole commit is rejected and ErrAlreadyExists is returned with no keys
// written.
func (d *Directory) Create(ctx context.Context, user *model.User) error {
	if user == nil || user.Login == "" || user.SessionID == "" {
		return domainErrors.ErrInvalidUser
	}

	value, err := encodeUser(user)
	if err != nil {
		return err
	}

	txn := kvstore.Txn{
		Checks: []kvstore.Check{
			{Key: loginKey(user.Login)},
			{Key: sessionKey(user.SessionID)},
		},
		Mutations: []kvstore.Mutation{
			kvstore.Set(loginKey(user.Login), value),
			kvstore.Set(sessionKey(user.SessionID), value),
		},
	}
	if user.StripeCustomerID != "" {
		txn.Checks = append(txn.Checks, kvstore.Check{Key: customerKey(user.StripeCustomerID)})
		txn.Mutations = append(txn.Mutations, kvstore.Set(customerKey(user.StripeCustomerID), value))
	}

	if err := d.kv.Commit(ctx, txn); err != nil {
		if errors.Is(err, kvstore.ErrTxnConflict) {
			return domainErrors.ErrAlreadyExists
		}
		return err
	}

	d.logger.Debug("user created", slog.String("login", user.Login))
	return nil
}

// Update replaces the stored record for user.Login. The primary record is
// read first and its version guards the commit, so a concurrent writer
// causes ErrStaleState instead of a silent overwrite. Secondary entries
// follow the primary inside the same transaction: the session entry is
// rewritten (and the old one removed on rotation), the customer entry is
// moved when the id changed.
func (d *Directory) Update(ctx context.Context, user *model.User) error {
	if user == nil || user.Login == "" || user.SessionID == "" {
		return domainErrors.ErrInvalidUser
	}

	entry, err := d.kv.Get(ctx, loginKey(user.Login))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return domainErrors.ErrNotFound
		}
		return err
	}
	old, err := decodeUser(entry.Value)
	if err != nil {
		return err
	}

	value, err := encodeUser(user)
	if err != nil {
		return err
	}

	txn := kvstore.Txn{
		Checks: []kvstore.Check{
			{Key: loginKey(user.Login), Version: entry.Version},
		},
		Mutations: []kvstore.Mutation{
			kvstore.Set(loginKey(user.Login), value),
			kvstore.Set(sessionKey(user.SessionID), value),
		},
	}
	if old.SessionID != user.SessionID {
		txn.Checks = append(txn.Checks, kvstore.Check{Key: sessionKey(user.SessionID)})
		txn.Mutations = append(txn.Mutations, kvstore.Delete(sessionKey(old.SessionID)))
	}

	if user.StripeCustomerID != "" {
		txn.Mutations = append(txn.Mutations, kvstore.Set(customerKey(user.StripeCustomerID), value))
	}
	if old.StripeCustomerID != user.StripeCustomerID {
		if user.StripeCustomerID != "" {
			// A customer id moving onto this user must not collide with
			// another user's index entry. Distinguish the collision from a
			// plain version race before committing.
			if other, err := d.GetByCustomerID(ctx, user.StripeCustomerID); err == nil && other.Login != user.Login {
				return domainErrors.ErrAlreadyExists
			} else if err != nil && !errors.Is(err, domainErrors.ErrNotFound) {
				return err
			}
			txn.Checks = append(txn.Checks, kvstore.Check{Key: customerKey(user.StripeCustomerID)})
		}
		if old.StripeCustomerID != "" {
			txn.Mutations = append(txn.Mutations, kvstore.Delete(customerKey(old.StripeCustomerID)))
		}
	}

	if err := d.kv.Commit(ctx, txn); err != nil {
		if errors.Is(err, kvstore.ErrTxnConflict) {
			return domainErrors.ErrStaleState
		}
		return err
	}

	d.logger.Debug("user updated", slog.String("login", user.Login))
	return nil
}

// UpdateSession rotates the user's session to newSessionID. The
// transaction asserts the old session entry still exists and still holds
// the caller's copy of the record; an already-rotated or mismatched
// session fails with ErrStaleSession and performs no writes, so an
// invalidated session can never be resurrected.
func (d *Directory) UpdateSession(ctx context.Context, user *model.User, newSessionID string) error {
	if user == nil || user.Login == "" || user.SessionID == "" || newSessionID == "" {
		return domainErrors.ErrInvalidUser
	}
	if newSessionID == user.SessionID {
		return domainErrors.ErrInvalidUser
	}

	entry, err := d.kv.Get(ctx, sessionKey(user.SessionID))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return fmt.Errorf("%w: session %q is no longer active", domainErrors.ErrStaleSession, user.SessionID)
		}
		return err
	}
	stored, err := decodeUser(entry.Value)
	if err != nil {
		return err
	}
	if !stored.Equal(user) {
		return fmt.Errorf("%w: session %q no longer matches the caller's record", domainErrors.ErrStaleSession, user.SessionID)
	}

	rotated := user.Clone()
	rotated.SessionID = newSessionID
	value, err := encodeUser(rotated)
	if err != nil {
		return err
	}

	txn := kvstore.Txn{
		Checks: []kvstore.Check{
			{Key: sessionKey(user.SessionID), Version: entry.Version},
			{Key: sessionKey(newSessionID)},
		},
		Mutations: []kvstore.Mutation{
			kvstore.Delete(sessionKey(user.SessionID)),
			kvstore.Set(sessionKey(newSessionID), value),
			kvstore.Set(loginKey(user.Login), value),
		},
	}
	if rotated.StripeCustomerID != "" {
		txn.Mutations = append(txn.Mutations, kvstore.Set(customerKey(rotated.StripeCustomerID), value))
	}

	if err := d.kv.Commit(ctx, txn); err != nil {
		if errors.Is(err, kvstore.ErrTxnConflict) {
			return fmt.Errorf("%w: session %q was rotated concurrently", domainErrors.ErrStaleSession, user.SessionID)
		}
		return err
	}

	user.SessionID = newSessionID
	d.logger.Debug("session rotated", slog.String("login", user.Login))
	return nil
}

// List pages through primary records in login order. The cursor is opaque
// to callers; an empty next cursor means the scan is complete. Pages are
// individually consistent only.
func (d *Directory) List(ctx context.Context, cursor string, limit int) ([]model.User, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	startAfter := ""
	if cursor != "" {
		lastLogin, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		startAfter = loginKey(lastLogin)
	}

	entries, err := d.kv.Scan(ctx, loginKeyPrefix, startAfter, limit)
	if err != nil {
		return nil, "", err
	}

	users := make([]model.User, 0, len(entries))
	for _, e := range entries {
		u, err := decodeUser(e.Value)
		if err != nil {
			return nil, "", err
		}
		users = append(users, *u)
	}

	next := ""
	if len(users) == limit {
		next = encodeCursor(users[len(users)-1].Login)
	}
	return users, next, nil
}

const defaultPageSize = 100

func encodeUser(u *model.User) ([]byte, error) {
	value, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode user %q: %w", u.Login, err)
	}
	return value, nil
}

func decodeUser(value []byte) (*model.User, error) {
	var u model.User
	if err := json.Unmarshal(value, &u); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return &u, nil
}

func encodeCursor(login string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(login))
}

func decodeCursor(cursor string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainErrors.ErrInvalidCursor, err)
	}
	return string(raw), nil
}
