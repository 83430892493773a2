package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	domainErrors "github.com/polkiloo/userdir/internal/domain/errors"
	"github.com/polkiloo/userdir/internal/domain/model"
	"github.com/polkiloo/userdir/internal/kvstore"
	"github.com/polkiloo/userdir/internal/kvstore/memory"
)

func newTestDirectory() (*Directory, *memory.Store) {
	kv := memory.New()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(kv, logger), kv
}

func newTestUser(login, sessionID, customerID string) *model.User {
	return &model.User{
		Login:            login,
		SessionID:        sessionID,
		StripeCustomerID: customerID,
		Profile:          json.RawMessage(`{"name":"` + login + `"}`),
		CreatedAt:        time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}
}

// commitHookStore runs a callback before delegating the first commit.
// It lets tests interleave a concurrent writer between a directory's
// read and its commit.
type commitHookStore struct {
	kvstore.Store
	mu           sync.Mutex
	beforeCommit func()
}

func (s *commitHookStore) Commit(ctx context.Context, txn kvstore.Txn) error {
	s.mu.Lock()
	hook := s.beforeCommit
	s.beforeCommit = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return s.Store.Commit(ctx, txn)
}

func TestCreateAndLookups(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	usr := newTestUser("alice", "s1", "c1")
	if err := dir.Create(ctx, usr); err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	byLogin, err := dir.GetByLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("get by login returned error: %v", err)
	}
	bySession, err := dir.GetBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("get by session returned error: %v", err)
	}
	byCustomer, err := dir.GetByCustomerID(ctx, "c1")
	if err != nil {
		t.Fatalf("get by customer returned error: %v", err)
	}

	if !byLogin.Equal(usr) {
		t.Errorf("primary record mismatch: %+v", byLogin)
	}
	if !bySession.Equal(byLogin) {
		t.Errorf("session record disagrees with primary: %+v", bySession)
	}
	if !byCustomer.Equal(byLogin) {
		t.Errorf("customer record disagrees with primary: %+v", byCustomer)
	}
}

func TestCreateDuplicateLogin(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "s1", "")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	err := dir.Create(ctx, newTestUser("alice", "s2", ""))
	if !errors.Is(err, domainErrors.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// The loser must leave no trace: the original session is intact and
	// the loser's session key was never written.
	if _, err := dir.GetBySession(ctx, "s1"); err != nil {
		t.Fatalf("original session lost: %v", err)
	}
	if _, err := dir.GetBySession(ctx, "s2"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected loser's session to be absent, got %v", err)
	}
}

func TestCreateSessionCollisionLeavesNoPartialState(t *testing.T) {
	dir, kv := newTestDirectory()
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "shared", "")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	before := kv.Len()

	err := dir.Create(ctx, newTestUser("bob", "shared", "c-bob"))
	if !errors.Is(err, domainErrors.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if _, err := dir.GetByLogin(ctx, "bob"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected bob to be absent, got %v", err)
	}
	if _, err := dir.GetByCustomerID(ctx, "c-bob"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected bob's customer entry to be absent, got %v", err)
	}
	if kv.Len() != before {
		t.Fatalf("expected store untouched, had %d entries, now %d", before, kv.Len())
	}
}

func TestCreateCustomerCollision(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "s1", "c1")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	err := dir.Create(ctx, newTestUser("bob", "s2", "c1"))
	if !errors.Is(err, domainErrors.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := dir.GetByLogin(ctx, "bob"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected bob to be absent, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	cases := []*model.User{
		nil,
		{Login: "", SessionID: "s1"},
		{Login: "alice", SessionID: ""},
	}
	for _, usr := range cases {
		if err := dir.Create(ctx, usr); !errors.Is(err, domainErrors.ErrInvalidUser) {
			t.Errorf("expected ErrInvalidUser for %+v, got %v", usr, err)
		}
	}
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			usr := newTestUser("alice", "s-"+string(rune('a'+n)), "")
			results <- dir.Create(ctx, usr)
		}(i)
	}
	wg.Wait()
	close(results)

	created := 0
	for err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, domainErrors.ErrAlreadyExists):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one winner, got %d", created)
	}
}

func TestUpdateRewritesAllIndexEntries(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "s1", "c1")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	usr, err := dir.GetByLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	usr.IsSubscribed = true
	if err := dir.Update(ctx, usr); err != nil {
		t.Fatalf("update returned error: %v", err)
	}

	for name, get := range map[string]func() (*model.User, error){
		"login":    func() (*model.User, error) { return dir.GetByLogin(ctx, "alice") },
		"session":  func() (*model.User, error) { return dir.GetBySession(ctx, "s1") },
		"customer": func() (*model.User, error) { return dir.GetByCustomerID(ctx, "c1") },
	} {
		got, err := get()
		if err != nil {
			t.Fatalf("get by %s returned error: %v", name, err)
		}
		if !got.IsSubscribed {
			t.Errorf("get by %s returned stale record", name)
		}
	}
}

func TestUpdateNotFound(t *testing.T) {
	dir, _ := newTestDirectory()
	err := dir.Update(context.Background(), newTestUser("ghost", "s1", ""))
	if !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateConcurrentWriterCausesStaleState(t *testing.T) {
	kv := memory.New()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	hooked := &commitHookStore{Store: kv}
	dir := New(hooked, logger)
	inner := New(kv, logger)
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "s1", "")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	usr, err := dir.GetByLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	usr.IsSubscribed = true

	hooked.beforeCommit = func() {
		other, err := inner.GetByLogin(ctx, "alice")
		if err != nil {
			t.Errorf("concurrent read failed: %v", err)
			return
		}
		other.Profile = json.RawMessage(`{"touched":true}`)
		if err := inner.Update(ctx, other); err != nil {
			t.Errorf("concurrent update failed: %v", err)
		}
	}

	if err := dir.Update(ctx, usr); !errors.Is(err, domainErrors.ErrStaleState) {
		t.Fatalf("expected ErrStaleState, got %v", err)
	}

	// The concurrent writer's change survived untouched.
	stored, err := dir.GetByLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if string(stored.Profile) != `{"touched":true}` {
		t.Errorf("concurrent write lost: %s", stored.Profile)
	}
	if stored.IsSubscribed {
		t.Errorf("stale update leaked through")
	}
}

func TestUpdateCustomerMoveCollision(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "s1", "c1")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if err := dir.Create(ctx, newTestUser("bob", "s2", "c2")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	bob, err := dir.GetByLogin(ctx, "bob")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	bob.StripeCustomerID = "c1"
	if err := dir.Update(ctx, bob); !errors.Is(err, domainErrors.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	owner, err := dir.GetByCustomerID(ctx, "c1")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if owner.Login != "alice" {
		t.Errorf("customer entry hijacked by %q", owner.Login)
	}
	stored, err := dir.GetByLogin(ctx, "bob")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if stored.StripeCustomerID != "c2" {
		t.Errorf("bob's record changed despite rejection: %q", stored.StripeCustomerID)
	}
}

func TestUpdateCustomerMoveRelocatesEntry(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "s1", "c1")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	usr, err := dir.GetByLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	usr.StripeCustomerID = "c9"
	if err := dir.Update(ctx, usr); err != nil {
		t.Fatalf("update returned error: %v", err)
	}

	if _, err := dir.GetByCustomerID(ctx, "c1"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected old customer entry removed, got %v", err)
	}
	moved, err := dir.GetByCustomerID(ctx, "c9")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if moved.Login != "alice" {
		t.Errorf("unexpected owner %q", moved.Login)
	}
}

func TestUpdateSessionRotation(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "s1", "c1")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	usr, err := dir.GetByLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}

	if err := dir.UpdateSession(ctx, usr, "s2"); err != nil {
		t.Fatalf("update session returned error: %v", err)
	}
	if usr.SessionID != "s2" {
		t.Errorf("caller's record not updated, session %q", usr.SessionID)
	}

	if _, err := dir.GetBySession(ctx, "s1"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected old session gone, got %v", err)
	}
	fresh, err := dir.GetBySession(ctx, "s2")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if fresh.SessionID != "s2" || fresh.Login != "alice" {
		t.Errorf("unexpected session record: %+v", fresh)
	}
	primary, err := dir.GetByLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if !primary.Equal(fresh) {
		t.Errorf("primary disagrees with session entry after rotation")
	}
	customer, err := dir.GetByCustomerID(ctx, "c1")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if customer.SessionID != "s2" {
		t.Errorf("customer entry carries stale session %q", customer.SessionID)
	}
}

func TestUpdateSessionRepeatRotationIsStale(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "s1", "")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	usr, err := dir.GetByLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	stale := usr.Clone()

	if err := dir.UpdateSession(ctx, usr, "s2"); err != nil {
		t.Fatalf("first rotation returned error: %v", err)
	}
	if err := dir.UpdateSession(ctx, stale, "s3"); !errors.Is(err, domainErrors.ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession, got %v", err)
	}

	// The losing rotation wrote nothing.
	if _, err := dir.GetBySession(ctx, "s3"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected s3 to be absent, got %v", err)
	}
	current, err := dir.GetByLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if current.SessionID != "s2" {
		t.Errorf("expected session s2, got %q", current.SessionID)
	}
}

func TestUpdateSessionMismatchedRecordIsStale(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "s1", "")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	usr, err := dir.GetByLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	held := usr.Clone()

	usr.IsSubscribed = true
	if err := dir.Update(ctx, usr); err != nil {
		t.Fatalf("update returned error: %v", err)
	}

	if err := dir.UpdateSession(ctx, held, "s2"); !errors.Is(err, domainErrors.ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession, got %v", err)
	}
}

func TestUpdateSessionValidation(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if err := dir.UpdateSession(ctx, nil, "s2"); !errors.Is(err, domainErrors.ErrInvalidUser) {
		t.Errorf("expected ErrInvalidUser for nil user, got %v", err)
	}
	usr := newTestUser("alice", "s1", "")
	if err := dir.UpdateSession(ctx, usr, ""); !errors.Is(err, domainErrors.ErrInvalidUser) {
		t.Errorf("expected ErrInvalidUser for empty session, got %v", err)
	}
	if err := dir.UpdateSession(ctx, usr, "s1"); !errors.Is(err, domainErrors.ErrInvalidUser) {
		t.Errorf("expected ErrInvalidUser for unchanged session, got %v", err)
	}
}

func TestLookupsOnEmptyStore(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if _, err := dir.GetByLogin(ctx, "ghost"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound by login, got %v", err)
	}
	if _, err := dir.GetBySession(ctx, "nope"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound by session, got %v", err)
	}
	if _, err := dir.GetByCustomerID(ctx, "c0"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound by customer, got %v", err)
	}
}

func TestListPagination(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	logins := []string{"alice", "bob", "carol", "dave", "erin"}
	for i, login := range logins {
		if err := dir.Create(ctx, newTestUser(login, "s-"+login, "c-"+login)); err != nil {
			t.Fatalf("create %d returned error: %v", i, err)
		}
	}

	var collected []string
	cursor := ""
	pages := 0
	for {
		users, next, err := dir.List(ctx, cursor, 2)
		if err != nil {
			t.Fatalf("list returned error: %v", err)
		}
		for _, u := range users {
			collected = append(collected, u.Login)
		}
		pages++
		if next == "" {
			break
		}
		cursor = next
		if pages > len(logins) {
			t.Fatal("pagination did not terminate")
		}
	}

	if len(collected) != len(logins) {
		t.Fatalf("expected %d users, got %d (%v)", len(logins), len(collected), collected)
	}
	for i, login := range logins {
		if collected[i] != login {
			t.Fatalf("expected login order %v, got %v", logins, collected)
		}
	}
}

func TestListSkipsSecondaryEntries(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "s1", "c1")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	users, next, err := dir.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if next != "" {
		t.Errorf("expected empty next cursor, got %q", next)
	}
}

func TestListInvalidCursor(t *testing.T) {
	dir, _ := newTestDirectory()
	_, _, err := dir.List(context.Background(), "!!not-base64!!", 10)
	if !errors.Is(err, domainErrors.ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor, got %v", err)
	}
}

func TestListDefaultsLimit(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	if err := dir.Create(ctx, newTestUser("alice", "s1", "")); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	users, _, err := dir.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
}
