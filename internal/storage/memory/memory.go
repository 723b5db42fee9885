// Package memory implements the storage layer in process memory. It is used
// by tests and mirrors the relational semantics the service relies on: one
// mutex serializes transactions (standing in for the account row lock) and a
// snapshot taken at transaction start is restored on error (rollback).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cafepoint/internal/model"
	"cafepoint/internal/storage"
)

type state struct {
	accounts map[string]model.Account
	txs      []model.PointTransaction
	menus    []model.Menu
	orders   []model.Order
	items    []model.OrderItem
}

func (st *state) clone() state {
	cp := state{
		accounts: make(map[string]model.Account, len(st.accounts)),
		txs:      append([]model.PointTransaction(nil), st.txs...),
		menus:    append([]model.Menu(nil), st.menus...),
		orders:   append([]model.Order(nil), st.orders...),
		items:    append([]model.OrderItem(nil), st.items...),
	}
	for id, a := range st.accounts {
		cp.accounts[id] = a
	}
	return cp
}

// Store implements storage.Storage.
type Store struct {
	mu sync.Mutex
	st state
}

var _ storage.Storage = (*Store)(nil)

func New() *Store {
	return &Store{st: state{accounts: make(map[string]model.Account)}}
}

// WithTx serializes the callback under the store mutex and restores the
// pre-transaction snapshot when fn returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&txStore{s: s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// AddAccount seeds an account. Test helper.
func (s *Store) AddAccount(a model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.accounts[a.ID] = a
}

// AddMenu seeds a menu. Test helper.
func (s *Store) AddMenu(m model.Menu) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.menus = append(s.st.menus, m)
}

// Orders returns a copy of all committed orders. Test helper.
func (s *Store) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Order(nil), s.st.orders...)
}

// OrderItems returns a copy of all committed order items. Test helper.
func (s *Store) OrderItems() []model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OrderItem(nil), s.st.items...)
}

// Transactions returns a copy of all committed point transactions. Test helper.
func (s *Store) Transactions() []model.PointTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PointTransaction(nil), s.st.txs...)
}

// ── direct (auto-commit) access ────────────────────────────────────────────

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAccount(id)
}

func (s *Store) GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAccount(id)
}

func (s *Store) SetAccountPoints(ctx context.Context, id string, points int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAccountPoints(id, points)
}

func (s *Store) FindTransaction(ctx context.Context, accountID, key string, kind model.TransactionKind) (*model.PointTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findTransaction(accountID, key, kind)
}

func (s *Store) InsertTransaction(ctx context.Context, tx *model.PointTransaction) (storage.InsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTransaction(tx)
}

func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]model.PointTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listTransactions(accountID)
}

func (s *Store) InsertOrder(ctx context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertOrder(o)
}

func (s *Store) InsertOrderItem(ctx context.Context, item *model.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertOrderItem(item)
}

func (s *Store) ListMenus(ctx context.Context) ([]model.Menu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMenus()
}

func (s *Store) GetMenu(ctx context.Context, id string) (*model.Menu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMenu(id)
}

func (s *Store) ResolvePrices(ctx context.Context, ids []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolvePrices(ids)
}

func (s *Store) PopularMenus(ctx context.Context, since time.Time, limit int) ([]model.PopularMenu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popularMenus(since, limit)
}

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAccount(a)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAccountByEmail(email)
}

// ── transaction-bound view ─────────────────────────────────────────────────

// txStore is the Store handed to WithTx callbacks. The mutex is already held
// for the duration of the transaction, so it goes straight at the state.
type txStore struct {
	s *Store
}

var _ storage.Store = (*txStore)(nil)

func (t *txStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return t.s.getAccount(id)
}

func (t *txStore) GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error) {
	return t.s.getAccount(id)
}

func (t *txStore) SetAccountPoints(ctx context.Context, id string, points int64) error {
	return t.s.setAccountPoints(id, points)
}

func (t *txStore) FindTransaction(ctx context.Context, accountID, key string, kind model.TransactionKind) (*model.PointTransaction, error) {
	return t.s.findTransaction(accountID, key, kind)
}

func (t *txStore) InsertTransaction(ctx context.Context, tx *model.PointTransaction) (storage.InsertOutcome, error) {
	return t.s.insertTransaction(tx)
}

func (t *txStore) ListTransactions(ctx context.Context, accountID string) ([]model.PointTransaction, error) {
	return t.s.listTransactions(accountID)
}

func (t *txStore) InsertOrder(ctx context.Context, o *model.Order) error {
	return t.s.insertOrder(o)
}

func (t *txStore) InsertOrderItem(ctx context.Context, item *model.OrderItem) error {
	return t.s.insertOrderItem(item)
}

func (t *txStore) ListMenus(ctx context.Context) ([]model.Menu, error) {
	return t.s.listMenus()
}

func (t *txStore) GetMenu(ctx context.Context, id string) (*model.Menu, error) {
	return t.s.getMenu(id)
}

func (t *txStore) ResolvePrices(ctx context.Context, ids []string) (map[string]int64, error) {
	return t.s.resolvePrices(ids)
}

func (t *txStore) PopularMenus(ctx context.Context, since time.Time, limit int) ([]model.PopularMenu, error) {
	return t.s.popularMenus(since, limit)
}

func (t *txStore) CreateAccount(ctx context.Context, a *model.Account) error {
	return t.s.createAccount(a)
}

func (t *txStore) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return t.s.getAccountByEmail(email)
}

// ── shared unlocked operations ─────────────────────────────────────────────

func (s *Store) getAccount(id string) (*model.Account, error) {
	a, ok := s.st.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (s *Store) setAccountPoints(id string, points int64) error {
	a, ok := s.st.accounts[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.Points = points
	s.st.accounts[id] = a
	return nil
}

func (s *Store) findTransaction(accountID, key string, kind model.TransactionKind) (*model.PointTransaction, error) {
	for i := range s.st.txs {
		tx := s.st.txs[i]
		if tx.AccountID == accountID && tx.IdempotencyKey == key && tx.Kind == kind {
			return &tx, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) insertTransaction(tx *model.PointTransaction) (storage.InsertOutcome, error) {
	if _, err := s.findTransaction(tx.AccountID, tx.IdempotencyKey, tx.Kind); err == nil {
		return storage.AlreadyExists, nil
	}
	s.st.txs = append(s.st.txs, *tx)
	return storage.Inserted, nil
}

func (s *Store) listTransactions(accountID string) ([]model.PointTransaction, error) {
	var txs []model.PointTransaction
	for i := len(s.st.txs) - 1; i >= 0; i-- {
		if s.st.txs[i].AccountID == accountID {
			txs = append(txs, s.st.txs[i])
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	return txs, nil
}

func (s *Store) insertOrder(o *model.Order) error {
	stored := *o
	stored.Items = nil
	s.st.orders = append(s.st.orders, stored)
	return nil
}

func (s *Store) insertOrderItem(item *model.OrderItem) error {
	s.st.items = append(s.st.items, *item)
	return nil
}

func (s *Store) listMenus() ([]model.Menu, error) {
	menus := append([]model.Menu(nil), s.st.menus...)
	sort.Slice(menus, func(i, j int) bool { return menus[i].Name < menus[j].Name })
	return menus, nil
}

func (s *Store) getMenu(id string) (*model.Menu, error) {
	for i := range s.st.menus {
		if s.st.menus[i].ID == id {
			cp := s.st.menus[i]
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) resolvePrices(ids []string) (map[string]int64, error) {
	prices := make(map[string]int64, len(ids))
	for _, id := range ids {
		for i := range s.st.menus {
			if s.st.menus[i].ID == id {
				prices[id] = s.st.menus[i].Price
			}
		}
	}
	return prices, nil
}

func (s *Store) popularMenus(since time.Time, limit int) ([]model.PopularMenu, error) {
	createdAt := make(map[string]time.Time, len(s.st.orders))
	for _, o := range s.st.orders {
		createdAt[o.ID] = o.CreatedAt
	}

	counts := make(map[string]int64)
	for _, item := range s.st.items {
		if ts, ok := createdAt[item.OrderID]; ok && !ts.Before(since) {
			counts[item.MenuID]++
		}
	}

	var ranked []model.PopularMenu
	for i := range s.st.menus {
		if n, ok := counts[s.st.menus[i].ID]; ok {
			ranked = append(ranked, model.PopularMenu{Menu: s.st.menus[i], OrderCount: n})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].OrderCount > ranked[j].OrderCount
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (s *Store) createAccount(a *model.Account) error {
	if _, ok := s.st.accounts[a.ID]; ok {
		return storage.ErrDuplicateKey
	}
	for _, existing := range s.st.accounts {
		if existing.Email == a.Email {
			return storage.ErrDuplicateKey
		}
	}
	s.st.accounts[a.ID] = *a
	return nil
}

func (s *Store) getAccountByEmail(email string) (*model.Account, error) {
	for _, a := range s.st.accounts {
		if a.Email == email {
			cp := a
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}
