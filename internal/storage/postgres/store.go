// Package postgres implements the storage layer on PostgreSQL via pgx.
// Account rows are the unit of locking: mutators take SELECT ... FOR UPDATE
// inside one transaction, bounded by a transaction-local lock_timeout.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cafepoint/internal/storage"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same store
// methods run in auto-commit mode and inside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements storage.Storage.
type Store struct {
	db          querier
	pool        *pgxpool.Pool // nil when bound to a transaction
	lockTimeout time.Duration
}

var _ storage.Storage = (*Store)(nil)

// New creates a Store over a pool. lockTimeout bounds row-lock waits inside
// WithTx; zero means the server default.
func New(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	return &Store{db: pool, pool: pool, lockTimeout: lockTimeout}
}

// WithTx opens a transaction, hands fn a Store bound to it, and commits on
// nil or rolls back on error. Rollback also runs on panic via the deferred
// call; commit turns it into a no-op.
func (s *Store) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	if s.pool == nil {
		return errors.New("postgres: nested transactions are not supported")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	if err := fn(&Store{db: tx, lockTimeout: s.lockTimeout}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", mapError(err))
	}
	return nil
}

// mapError translates driver errors to storage sentinels. Everything else
// passes through as a persistence failure.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return storage.ErrDuplicateKey
		case pgLockNotAvailable:
			return storage.ErrLockTimeout
		}
	}
	return err
}
