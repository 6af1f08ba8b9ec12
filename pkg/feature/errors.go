package feature

import (
	"errors"
	"fmt"
)

// ErrBackingStore marks any per-call failure against the backing store
// (timeouts, transient network errors). Always recoverable: the caller
// decides on fallback behavior, the store never retries internally.
var ErrBackingStore = errors.New("feature store: backing store error")

// StoreError wraps a backing-store failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("feature store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports ErrBackingStore so callers can branch with errors.Is without
// caring which operation failed.
func (e *StoreError) Is(target error) bool { return target == ErrBackingStore }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
