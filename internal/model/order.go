package model

import "time"

// OrderLine is one (menu, quantity) pair as submitted by the caller.
// Lines referencing the same menu are merged before pricing.
type OrderLine struct {
	MenuID   string `json:"menu_id"`
	Quantity int64  `json:"quantity"`
}

// Order is a priced, committed order. It exists only if its debit
// transaction committed in the same database transaction.
type Order struct {
	ID         string      `json:"id"`
	AccountID  string      `json:"account_id"`
	TotalPrice int64       `json:"total_price"`
	CreatedAt  time.Time   `json:"created_at"`
	Items      []OrderItem `json:"items"`
}

// OrderItem is one merged line of an order. UnitPrice is the menu price at
// order time and is never re-derived from the catalog afterwards.
type OrderItem struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	MenuID     string `json:"menu_id"`
	Quantity   int64  `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	TotalPrice int64  `json:"total_price"`
}

// OrderCreatedEvent is published on the bus after an order commits.
type OrderCreatedEvent struct {
	OrderID    string      `json:"order_id"`
	AccountID  string      `json:"account_id"`
	TotalPrice int64       `json:"total_price"`
	Items      []OrderItem `json:"items"`
	CreatedAt  time.Time   `json:"created_at"`
}
