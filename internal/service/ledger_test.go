package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepoint/internal/model"
	"cafepoint/internal/storage"
	"cafepoint/internal/storage/memory"
)

func seedAccount(store *memory.Store, points int64) string {
	id := uuid.New().String()
	store.AddAccount(model.Account{
		ID:        id,
		Email:     id + "@example.com",
		Name:      "tester",
		Points:    points,
		CreatedAt: time.Now().UTC(),
	})
	return id
}

func TestCharge(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store := memory.New()
		accountID := seedAccount(store, 0)
		ledger := NewPointLedger(store)

		tx, err := ledger.Charge(ctx, accountID, 100, "key-1")

		require.NoError(t, err)
		assert.Equal(t, model.KindAdd, tx.Kind)
		assert.Equal(t, int64(100), tx.Amount)
		assert.Equal(t, accountID, tx.AccountID)

		balance, err := ledger.GetBalance(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), balance)
	})

	t.Run("Idempotent Replay", func(t *testing.T) {
		store := memory.New()
		accountID := seedAccount(store, 0)
		ledger := NewPointLedger(store)

		first, err := ledger.Charge(ctx, accountID, 100, "key-1")
		require.NoError(t, err)
		second, err := ledger.Charge(ctx, accountID, 100, "key-1")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)

		balance, err := ledger.GetBalance(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), balance, "balance must increase exactly once")
		assert.Len(t, store.Transactions(), 1)
	})

	t.Run("Same Key Different Kind", func(t *testing.T) {
		store := memory.New()
		accountID := seedAccount(store, 500)
		ledger := NewPointLedger(store)

		_, err := ledger.Charge(ctx, accountID, 100, "key-1")
		require.NoError(t, err)
		_, err = ledger.Deduct(ctx, accountID, 100, "key-1")
		require.NoError(t, err)

		balance, err := ledger.GetBalance(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, int64(500), balance)
		assert.Len(t, store.Transactions(), 2)
	})

	t.Run("Non-Positive Amount", func(t *testing.T) {
		store := memory.New()
		accountID := seedAccount(store, 0)
		ledger := NewPointLedger(store)

		_, err := ledger.Charge(ctx, accountID, 0, "key-1")
		assert.ErrorIs(t, err, model.ErrInvalidInput)

		_, err = ledger.Charge(ctx, accountID, -5, "key-1")
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("Empty Idempotency Key", func(t *testing.T) {
		store := memory.New()
		accountID := seedAccount(store, 0)
		ledger := NewPointLedger(store)

		_, err := ledger.Charge(ctx, accountID, 100, "")
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("Malformed Account Id", func(t *testing.T) {
		ledger := NewPointLedger(memory.New())

		_, err := ledger.Charge(ctx, "not-a-uuid", 100, "key-1")
		assert.ErrorIs(t, err, model.ErrAccountNotFound)
	})

	t.Run("Unknown Account", func(t *testing.T) {
		ledger := NewPointLedger(memory.New())

		_, err := ledger.Charge(ctx, uuid.New().String(), 100, "key-1")
		assert.ErrorIs(t, err, model.ErrAccountNotFound)
	})
}

func TestChargeConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	accountID := seedAccount(store, 0)
	ledger := NewPointLedger(store)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = ledger.Charge(ctx, accountID, 100, "shared-key")
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	balance, err := ledger.GetBalance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance, "balance must increase exactly once")
	assert.Len(t, store.Transactions(), 1, "exactly one committed transaction")
}

func TestDeduct(t *testing.T) {
	ctx := context.Background()

	t.Run("Insufficient Balance", func(t *testing.T) {
		store := memory.New()
		accountID := seedAccount(store, 500)
		ledger := NewPointLedger(store)

		_, err := ledger.Deduct(ctx, accountID, 600, "key-1")

		assert.ErrorIs(t, err, model.ErrInsufficientBalance)

		balance, gerr := ledger.GetBalance(ctx, accountID)
		require.NoError(t, gerr)
		assert.Equal(t, int64(500), balance, "failed deduct must not touch the balance")
		assert.Empty(t, store.Transactions(), "failed deduct must not leave an audit row")
	})

	t.Run("Exact Balance", func(t *testing.T) {
		store := memory.New()
		accountID := seedAccount(store, 500)
		ledger := NewPointLedger(store)

		tx, err := ledger.Deduct(ctx, accountID, 500, "key-1")

		require.NoError(t, err)
		assert.Equal(t, model.KindDeduct, tx.Kind)

		balance, err := ledger.GetBalance(ctx, accountID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})
}

func TestDeductConcurrentCapacityBound(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	accountID := seedAccount(store, 900)
	ledger := NewPointLedger(store)

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = ledger.Deduct(ctx, accountID, 300, uuid.New().String())
		}()
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, model.ErrInsufficientBalance):
			insufficient++
		}
	}
	assert.Equal(t, 3, succeeded, "exactly 3 of 5 deductions fit in 900")
	assert.Equal(t, 2, insufficient)

	balance, err := ledger.GetBalance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestLedgerReads(t *testing.T) {
	ctx := context.Background()

	t.Run("History Newest First", func(t *testing.T) {
		store := memory.New()
		accountID := seedAccount(store, 0)
		ledger := NewPointLedger(store)

		for i, amount := range []int64{100, 200, 300} {
			_, err := ledger.Charge(ctx, accountID, amount, uuid.New().String())
			require.NoError(t, err, "charge %d", i)
		}

		txs, err := ledger.ListTransactions(ctx, accountID)
		require.NoError(t, err)
		require.Len(t, txs, 3)
		assert.Equal(t, int64(300), txs[0].Amount)
		assert.Equal(t, int64(200), txs[1].Amount)
		assert.Equal(t, int64(100), txs[2].Amount)
	})

	t.Run("Balance Unknown Account", func(t *testing.T) {
		ledger := NewPointLedger(memory.New())

		_, err := ledger.GetBalance(ctx, uuid.New().String())
		assert.ErrorIs(t, err, model.ErrAccountNotFound)

		_, err = ledger.GetBalance(ctx, "garbage")
		assert.ErrorIs(t, err, model.ErrAccountNotFound)
	})

	t.Run("History Malformed Account Id", func(t *testing.T) {
		ledger := NewPointLedger(memory.New())

		_, err := ledger.ListTransactions(ctx, "garbage")
		assert.ErrorIs(t, err, model.ErrAccountNotFound)
	})
}

// lockTimeoutStore models an account row whose lock is held past the wait
// bound: every locked read fails with ErrLockTimeout.
type lockTimeoutStore struct {
	*memory.Store
}

func (l *lockTimeoutStore) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	return l.Store.WithTx(ctx, func(st storage.Store) error {
		return fn(&lockTimeoutTxStore{Store: st})
	})
}

type lockTimeoutTxStore struct {
	storage.Store
}

func (t *lockTimeoutTxStore) GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error) {
	return nil, storage.ErrLockTimeout
}

func TestMutateLockTimeout(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	accountID := seedAccount(store, 500)
	ledger := NewPointLedger(&lockTimeoutStore{Store: store})

	_, err := ledger.Charge(ctx, accountID, 100, "key-1")
	assert.ErrorIs(t, err, model.ErrLockTimeout)

	_, err = ledger.Deduct(ctx, accountID, 100, "key-2")
	assert.ErrorIs(t, err, model.ErrLockTimeout)

	balance, err := ledger.GetBalance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance, "timed-out attempts must not mutate")
	assert.Empty(t, store.Transactions())
}

// raceStore simulates a writer that committed the same idempotency key
// between our replay check and our insert: the first in-transaction lookup
// misses, the insert then collides.
type raceStore struct {
	*memory.Store
	mu     sync.Mutex
	misses int
}

func (r *raceStore) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	return r.Store.WithTx(ctx, func(st storage.Store) error {
		return fn(&raceTxStore{Store: st, r: r})
	})
}

type raceTxStore struct {
	storage.Store
	r *raceStore
}

func (t *raceTxStore) FindTransaction(ctx context.Context, accountID, key string, kind model.TransactionKind) (*model.PointTransaction, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if t.r.misses > 0 {
		t.r.misses--
		return nil, storage.ErrNotFound
	}
	return t.Store.FindTransaction(ctx, accountID, key, kind)
}

func TestChargeDuplicateInsertRace(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	accountID := seedAccount(store, 0)

	// The "winner first": its row and balance effect are already committed.
	winner := &model.PointTransaction{
		ID:             uuid.New().String(),
		AccountID:      accountID,
		Amount:         100,
		Kind:           model.KindAdd,
		IdempotencyKey: "contested-key",
		CreatedAt:      time.Now().UTC(),
	}
	outcome, err := store.InsertTransaction(ctx, winner)
	require.NoError(t, err)
	require.Equal(t, storage.Inserted, outcome)
	require.NoError(t, store.SetAccountPoints(ctx, accountID, 100))

	ledger := NewPointLedger(&raceStore{Store: store, misses: 1})

	tx, err := ledger.Charge(ctx, accountID, 100, "contested-key")

	require.NoError(t, err)
	assert.Equal(t, winner.ID, tx.ID, "the committed winner's row is returned")

	balance, err := ledger.GetBalance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance, "the losing attempt must roll back its delta")
	assert.Len(t, store.Transactions(), 1)
}
