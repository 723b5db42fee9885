package storage

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateKey is returned when an insert violates a unique constraint.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrLockTimeout is returned when a row lock wait exceeded the configured
// bound. The enclosing transaction never committed.
var ErrLockTimeout = errors.New("lock wait timed out")
