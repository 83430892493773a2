// Package postgres implements kvstore.Store on PostgreSQL. All entries
// live in a single table keyed by the full key string; versions are drawn
// from a sequence so they stay unique across deletes and re-creates.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polkiloo/userdir/internal/kvstore"
)

var _ kvstore.Store = (*Store)(nil)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store is a PostgreSQL backed ordered key-value store.
type Store struct {
	pool   Pool
	logger *slog.Logger
}

// New connects to the database and ensures the schema exists.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	store := &Store{pool: pool, logger: logger}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS kv_entries_version_seq`,
		`CREATE TABLE IF NOT EXISTS kv_entries (
            key TEXT PRIMARY KEY,
            value BYTEA NOT NULL,
            version BIGINT NOT NULL DEFAULT nextval('kv_entries_version_seq')
        )`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// Get returns the entry stored under key.
func (s *Store) Get(ctx context.Context, key string) (*kvstore.Entry, error) {
	const query = `SELECT value, version FROM kv_entries WHERE key=$1`
	e := kvstore.Entry{Key: key}
	err := s.pool.QueryRow(ctx, query, key).Scan(&e.Value, &e.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kvstore.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Commit runs the transaction's checks and mutations inside a single
// database transaction. Version checks on existing rows lock them with
// FOR UPDATE. Absence checks lock nothing at read committed, so writes
// to keys checked as absent go through a plain INSERT: the primary key
// constraint is then the arbiter, and a racing insert surfaces as a
// unique violation instead of being swallowed by an upsert.
func (s *Store) Commit(ctx context.Context, txn kvstore.Txn) error {
	mustBeAbsent := make(map[string]bool, len(txn.Checks))
	for _, c := range txn.Checks {
		if c.Version == 0 {
			mustBeAbsent[c.Key] = true
		}
	}

	return s.withinTransaction(ctx, func(tx pgx.Tx) error {
		for _, c := range txn.Checks {
			const query = `SELECT version FROM kv_entries WHERE key=$1 FOR UPDATE`
			var current int64
			err := tx.QueryRow(ctx, query, c.Key).Scan(&current)
			if err != nil {
				if !errors.Is(err, pgx.ErrNoRows) {
					return err
				}
				current = 0
			}
			if current != c.Version {
				return kvstore.ErrTxnConflict
			}
		}

		for _, m := range txn.Mutations {
			switch m.Op {
			case kvstore.OpSet:
				query := `INSERT INTO kv_entries (key, value) VALUES ($1, $2)
                          ON CONFLICT (key) DO UPDATE
                          SET value = EXCLUDED.value,
                              version = nextval('kv_entries_version_seq')`
				if mustBeAbsent[m.Key] {
					query = `INSERT INTO kv_entries (key, value) VALUES ($1, $2)`
				}
				if _, err := tx.Exec(ctx, query, m.Key, m.Value); err != nil {
					var pgErr *pgconn.PgError
					if errors.As(err, &pgErr) && pgErr.Code == "23505" {
						return kvstore.ErrTxnConflict
					}
					return err
				}
			case kvstore.OpDelete:
				if _, err := tx.Exec(ctx, `DELETE FROM kv_entries WHERE key=$1`, m.Key); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Scan returns entries under prefix in key order, after startAfter.
func (s *Store) Scan(ctx context.Context, prefix, startAfter string, limit int) ([]kvstore.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	from := prefix
	if startAfter > from {
		from = startAfter
	}

	const query = `SELECT key, value, version FROM kv_entries
                   WHERE key > $1 AND key < $2
                   ORDER BY key
                   LIMIT $3`
	rows, err := s.pool.Query(ctx, query, from, prefixEnd(prefix), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []kvstore.Entry
	for rows.Next() {
		var e kvstore.Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.Version); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// prefixEnd returns the smallest key greater than every key with the
// given prefix, for use as an exclusive range bound.
func prefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	// All 0xff bytes: no upper bound short of the end of the keyspace.
	return string(append(b, 0xff))
}

func (s *Store) withinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Logger returns the store logger.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}
