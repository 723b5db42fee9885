package model

import "errors"

// Domain errors carry no infrastructure dependency. Transports map them to
// status codes; stores map driver errors onto them.
var (
	// ErrAccountNotFound covers both unknown and malformed account ids.
	// The two are deliberately indistinguishable to callers.
	ErrAccountNotFound = errors.New("account not found")

	// ErrMenuNotFound is returned when any menu in an order is unknown.
	ErrMenuNotFound = errors.New("menu not found")

	// ErrInsufficientBalance means a deduction would drive the balance
	// negative. The attempt leaves no trace.
	ErrInsufficientBalance = errors.New("insufficient point balance")

	// ErrConflict means a uniqueness race escaped the account row lock.
	// Safe to retry with the same key.
	ErrConflict = errors.New("conflicting concurrent mutation")

	// ErrLockTimeout means the account row lock wait exceeded its bound.
	// Nothing was committed; the call may be retried.
	ErrLockTimeout = errors.New("account lock wait timed out")

	// ErrInvalidInput covers non-positive amounts, empty idempotency
	// keys and malformed request payloads.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmailTaken is returned by signup when the email already has an
	// account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned by signin for a bad email or
	// password, without saying which.
	ErrInvalidCredentials = errors.New("invalid email or password")
)
