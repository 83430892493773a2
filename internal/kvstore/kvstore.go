// Package kvstore defines the ordered key-value primitive the directory is
// built on: versioned entries, atomic multi-key check-and-set transactions,
// and key-ordered prefix scans.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for keys without an entry.
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrTxnConflict is returned by Commit when any check of the
	// transaction does not hold at commit time. Nothing is written.
	ErrTxnConflict = errors.New("kvstore: transaction conflict")
)

// Entry is a stored value together with its version token. Versions are
// opaque to callers beyond equality: a version read earlier can be used in
// a Check to guard a later write.
type Entry struct {
	Key     string
	Value   []byte
	Version int64
}

// Check asserts the state of a single key inside a transaction.
// Version 0 asserts the key is absent.
type Check struct {
	Key     string
	Version int64
}

// Op enumerates mutation kinds.
type Op int

const (
	OpSet Op = iota
	OpDelete
)

// Mutation writes or removes a single key.
type Mutation struct {
	Op    Op
	Key   string
	Value []byte
}

// Txn groups checks and mutations committed as one indivisible unit.
type Txn struct {
	Checks    []Check
	Mutations []Mutation
}

// Set builds a write mutation.
func Set(key string, value []byte) Mutation {
	return Mutation{Op: OpSet, Key: key, Value: value}
}

// Delete builds a removal mutation.
func Delete(key string) Mutation {
	return Mutation{Op: OpDelete, Key: key}
}

// Store is an ordered key-value store with atomic check-and-set commits.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)

	// Commit verifies every check and, only if all hold, applies every
	// mutation. A failed check returns ErrTxnConflict and leaves the
	// store untouched. Any other error is a transient storage failure.
	Commit(ctx context.Context, txn Txn) error

	// Scan returns up to limit entries whose keys start with prefix,
	// in ascending key order, skipping keys <= startAfter. Consistency
	// is per call only; concurrent writes may or may not be visible.
	Scan(ctx context.Context, prefix, startAfter string, limit int) ([]Entry, error)
}
