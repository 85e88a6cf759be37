package wallet

import "errors"

// Error taxonomy of the ledger core. Caller errors are never retried
// internally and leave no partial state; ErrStorageUnavailable is transient
// and retryable by the caller.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrRecordNotFound      = errors.New("record not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidKind         = errors.New("invalid kind for operation")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRateLimited         = errors.New("payout rate limit in effect")
	ErrNoPayoutAddress     = errors.New("no payout address linked")
	ErrDuplicateOperation  = errors.New("duplicate operation")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
