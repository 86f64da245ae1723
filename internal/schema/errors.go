package schema

import "errors"

// Sentinel errors for ledger invariant violations. They are returned to
// the caller synchronously, before any local mutation, so they never reach
// the sync queue.
var (
	// ErrInvalidAmount reports a zero or negative money amount where a
	// positive one is required.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrOverpayment reports a debt payment larger than the outstanding
	// amount. The debt is left untouched.
	ErrOverpayment = errors.New("payment exceeds outstanding amount")

	// ErrNotFound reports a referenced record that does not exist in the
	// local store.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict reports an optimistic-concurrency failure: the
	// record changed between read and write. Callers retry the whole
	// read-modify-write.
	ErrVersionConflict = errors.New("record version changed since read")
)
