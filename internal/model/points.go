package model

import "time"

// TransactionKind gives the direction of a point mutation. The magnitude is
// always positive; the kind carries the sign.
type TransactionKind string

const (
	KindAdd    TransactionKind = "ADD"
	KindDeduct TransactionKind = "DEDUCT"
)

// PointTransaction is one row of the append-only audit trail. At most one
// transaction exists per (account, idempotency key, kind); a repeated request
// with the same triple returns the original row unchanged.
type PointTransaction struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Amount         int64           `json:"amount"`
	Kind           TransactionKind `json:"kind"`
	IdempotencyKey string          `json:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at"`
}
