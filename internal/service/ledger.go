// Package service holds the business logic: the point ledger, order
// orchestration, the menu catalog and authentication. All transports depend
// on these types, not on the stores beneath them.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cafepoint/internal/metrics"
	"cafepoint/internal/model"
	"cafepoint/internal/storage"
)

// EventBus publishes domain events. Satisfied by the NATS transport bus.
type EventBus interface {
	Publish(subject string, data []byte) error
}

// errReplayRace signals that the transaction-row insert lost a uniqueness
// race that escaped the account row lock. The enclosing transaction rolls
// back and the committed winner's row is returned instead.
var errReplayRace = errors.New("idempotency key race")

// PointLedger guarantees correct, idempotent, serialized mutation of a
// single account's balance. Each mutating call runs in one database
// transaction: replay check, row lock, balance update, audit row.
type PointLedger struct {
	db storage.Storage
}

func NewPointLedger(db storage.Storage) *PointLedger {
	return &PointLedger{db: db}
}

// Charge adds amount points to the account. Repeating the call with the
// same key returns the original transaction without mutating again.
func (l *PointLedger) Charge(ctx context.Context, accountID string, amount int64, key string) (*model.PointTransaction, error) {
	return l.mutate(ctx, accountID, amount, model.KindAdd, key)
}

// Deduct removes amount points from the account, failing with
// ErrInsufficientBalance if the balance would go negative. Idempotent under
// the same key.
func (l *PointLedger) Deduct(ctx context.Context, accountID string, amount int64, key string) (*model.PointTransaction, error) {
	return l.mutate(ctx, accountID, amount, model.KindDeduct, key)
}

func (l *PointLedger) mutate(ctx context.Context, accountID string, amount int64, kind model.TransactionKind, key string) (*model.PointTransaction, error) {
	// Malformed and absent account ids are indistinguishable to callers.
	if uuid.Validate(accountID) != nil {
		return nil, model.ErrAccountNotFound
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", model.ErrInvalidInput)
	}
	// Key generation lives at the transport boundary; the ledger itself is
	// deterministic.
	if key == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", model.ErrInvalidInput)
	}

	var out *model.PointTransaction
	var replayed bool
	err := l.db.WithTx(ctx, func(st storage.Store) error {
		tx, rep, err := applyMutation(ctx, st, accountID, amount, kind, key)
		if err != nil {
			return err
		}
		out, replayed = tx, rep
		return nil
	})

	switch {
	case errors.Is(err, errReplayRace):
		// The concurrent writer committed; its row is the result.
		winner, rerr := l.db.FindTransaction(ctx, accountID, key, kind)
		if rerr != nil {
			metrics.PointMutations.WithLabelValues(string(kind), "error").Inc()
			return nil, fmt.Errorf("reread after key race: %w", rerr)
		}
		out, replayed = winner, true
	case errors.Is(err, storage.ErrLockTimeout):
		metrics.PointMutations.WithLabelValues(string(kind), "error").Inc()
		return nil, model.ErrLockTimeout
	case err != nil:
		metrics.PointMutations.WithLabelValues(string(kind), "error").Inc()
		return nil, err
	}

	result := "ok"
	if replayed {
		result = "replayed"
	}
	metrics.PointMutations.WithLabelValues(string(kind), result).Inc()
	return out, nil
}

// applyMutation runs the locked mutation inside an open transaction. It is
// shared with the order orchestrator so an order's debit joins the order's
// own transaction. Returns the transaction row and whether it was an
// idempotent replay of an earlier call.
func applyMutation(ctx context.Context, st storage.Store, accountID string, amount int64, kind model.TransactionKind, key string) (*model.PointTransaction, bool, error) {
	existing, err := st.FindTransaction(ctx, accountID, key, kind)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	acct, err := st.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, model.ErrAccountNotFound
		}
		return nil, false, err
	}

	balance := acct.Points
	switch kind {
	case model.KindAdd:
		balance += amount
	case model.KindDeduct:
		if acct.Points < amount {
			return nil, false, model.ErrInsufficientBalance
		}
		balance -= amount
	default:
		return nil, false, fmt.Errorf("%w: unknown transaction kind %q", model.ErrInvalidInput, kind)
	}

	if err := st.SetAccountPoints(ctx, accountID, balance); err != nil {
		return nil, false, err
	}

	tx := &model.PointTransaction{
		ID:             uuid.New().String(),
		AccountID:      accountID,
		Amount:         amount,
		Kind:           kind,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
	outcome, err := st.InsertTransaction(ctx, tx)
	if err != nil {
		return nil, false, err
	}
	if outcome == storage.AlreadyExists {
		// Only reachable when a writer with the same key slipped past the
		// replay check under a different lock acquisition.
		return nil, false, errReplayRace
	}
	return tx, false, nil
}

// GetBalance reads the current balance without locking.
func (l *PointLedger) GetBalance(ctx context.Context, accountID string) (int64, error) {
	if uuid.Validate(accountID) != nil {
		return 0, model.ErrAccountNotFound
	}
	acct, err := l.db.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, model.ErrAccountNotFound
		}
		return 0, err
	}
	return acct.Points, nil
}

// ListTransactions returns the account's audit trail, newest first.
func (l *PointLedger) ListTransactions(ctx context.Context, accountID string) ([]model.PointTransaction, error) {
	if uuid.Validate(accountID) != nil {
		return nil, model.ErrAccountNotFound
	}
	return l.db.ListTransactions(ctx, accountID)
}
