package postgres

import (
	"context"
	"fmt"

	"cafepoint/internal/model"
	"cafepoint/internal/storage"
)

const accountColumns = "id, email, name, password_hash, points, created_at"

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.scanAccount(ctx,
		"SELECT "+accountColumns+" FROM users WHERE id = $1", id)
}

// GetAccountForUpdate takes the exclusive row lock that serializes all
// mutators of this account until the transaction ends. Waits are bounded by
// the lock_timeout set in WithTx.
func (s *Store) GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error) {
	return s.scanAccount(ctx,
		"SELECT "+accountColumns+" FROM users WHERE id = $1 FOR UPDATE", id)
}

func (s *Store) scanAccount(ctx context.Context, query string, args ...any) (*model.Account, error) {
	var a model.Account
	err := s.db.QueryRow(ctx, query, args...).
		Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Points, &a.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (s *Store) SetAccountPoints(ctx context.Context, id string, points int64) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE users SET points = $2 WHERE id = $1", id, points)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) FindTransaction(ctx context.Context, accountID, key string, kind model.TransactionKind) (*model.PointTransaction, error) {
	var tx model.PointTransaction
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, amount, kind, idempotency_key, created_at
		FROM point_transactions
		WHERE account_id = $1 AND idempotency_key = $2 AND kind = $3`,
		accountID, key, string(kind)).
		Scan(&tx.ID, &tx.AccountID, &tx.Amount, &tx.Kind, &tx.IdempotencyKey, &tx.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &tx, nil
}

// InsertTransaction uses ON CONFLICT DO NOTHING so a lost uniqueness race
// surfaces as AlreadyExists without poisoning the enclosing transaction.
func (s *Store) InsertTransaction(ctx context.Context, tx *model.PointTransaction) (storage.InsertOutcome, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO point_transactions (id, account_id, amount, kind, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, idempotency_key, kind) DO NOTHING`,
		tx.ID, tx.AccountID, tx.Amount, string(tx.Kind), tx.IdempotencyKey, tx.CreatedAt)
	if err != nil {
		return storage.Inserted, fmt.Errorf("insert point transaction: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return storage.AlreadyExists, nil
	}
	return storage.Inserted, nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]model.PointTransaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, amount, kind, idempotency_key, created_at
		FROM point_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var txs []model.PointTransaction
	for rows.Next() {
		var tx model.PointTransaction
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Amount, &tx.Kind, &tx.IdempotencyKey, &tx.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
