package storage

import (
	"context"
	"time"

	"cafepoint/internal/model"
)

// InsertOutcome tags the result of an idempotency-guarded insert. A
// uniqueness violation is an expected branch, not an error.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	AlreadyExists
)

// LedgerStore persists account balances and the point transaction log.
// ForUpdate reads take an exclusive row lock held until the surrounding
// transaction ends.
type LedgerStore interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error)
	SetAccountPoints(ctx context.Context, id string, points int64) error

	// FindTransaction returns ErrNotFound when no row matches the triple.
	FindTransaction(ctx context.Context, accountID, key string, kind model.TransactionKind) (*model.PointTransaction, error)
	// InsertTransaction reports AlreadyExists instead of failing when the
	// (account, key, kind) uniqueness constraint is violated.
	InsertTransaction(ctx context.Context, tx *model.PointTransaction) (InsertOutcome, error)
	// ListTransactions returns the account's transactions newest first.
	ListTransactions(ctx context.Context, accountID string) ([]model.PointTransaction, error)
}

// OrderStore persists orders and their items.
type OrderStore interface {
	InsertOrder(ctx context.Context, o *model.Order) error
	InsertOrderItem(ctx context.Context, item *model.OrderItem) error
}

// MenuStore reads the menu catalog.
type MenuStore interface {
	ListMenus(ctx context.Context) ([]model.Menu, error)
	GetMenu(ctx context.Context, id string) (*model.Menu, error)
	// ResolvePrices maps each found menu id to its unit price. Missing ids
	// are simply absent from the result; completeness is the caller's check.
	ResolvePrices(ctx context.Context, ids []string) (map[string]int64, error)
	// PopularMenus ranks menus by order-item count since the given time.
	PopularMenus(ctx context.Context, since time.Time, limit int) ([]model.PopularMenu, error)
}

// UserStore manages account rows outside the balance-mutation path.
type UserStore interface {
	// CreateAccount returns ErrDuplicateKey when the email is taken.
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
}

// Store composes all operations available inside one transaction.
type Store interface {
	LedgerStore
	OrderStore
	MenuStore
	UserStore
}

// TxRunner scopes a function to a single transaction. The callback's store
// is bound to that transaction; any error (or panic) rolls everything back,
// a nil return commits. There is no other exit path.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Storage is the full data layer: direct (auto-commit) access plus
// transactional mutation. Components should depend on the narrower
// interfaces where they can.
type Storage interface {
	Store
	TxRunner
}
