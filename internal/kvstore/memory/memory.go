// Package memory provides an in-process kvstore.Store used by tests and
// local runs. Entries live in a mutex-guarded map; versions come from a
// store-wide revision counter so a deleted and re-created key never
// reuses an old version.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/polkiloo/userdir/internal/kvstore"
)

var _ kvstore.Store = (*Store)(nil)

type entry struct {
	value   []byte
	version int64
}

// Store is an in-memory ordered key-value store.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]entry
	revision int64
}

// New creates an empty store.
func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Get returns the entry stored under key.
func (s *Store) Get(ctx context.Context, key string) (*kvstore.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	value := make([]byte, len(e.value))
	copy(value, e.value)
	return &kvstore.Entry{Key: key, Value: value, Version: e.version}, nil
}

// Commit verifies all checks under the write lock and applies the
// mutations only when every check holds.
func (s *Store) Commit(ctx context.Context, txn kvstore.Txn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range txn.Checks {
		var current int64
		if e, ok := s.entries[c.Key]; ok {
			current = e.version
		}
		if current != c.Version {
			return kvstore.ErrTxnConflict
		}
	}

	s.revision++
	for _, m := range txn.Mutations {
		switch m.Op {
		case kvstore.OpSet:
			value := make([]byte, len(m.Value))
			copy(value, m.Value)
			s.entries[m.Key] = entry{value: value, version: s.revision}
		case kvstore.OpDelete:
			delete(s.entries, m.Key)
		}
	}
	return nil
}

// Scan returns entries under prefix in key order, after startAfter.
func (s *Store) Scan(ctx context.Context, prefix, startAfter string, limit int) ([]kvstore.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) && k > startAfter {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}

	result := make([]kvstore.Entry, 0, len(keys))
	for _, k := range keys {
		e := s.entries[k]
		value := make([]byte, len(e.value))
		copy(value, e.value)
		result = append(result, kvstore.Entry{Key: k, Value: value, Version: e.version})
	}
	return result, nil
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
