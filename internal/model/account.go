package model

import "time"

// Account is the balance-holding entity a user owns. Points is a
// non-negative integer mutated only through the point ledger.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Points       int64     `json:"points"`
	CreatedAt    time.Time `json:"created_at"`
}
