// Package accounts defines the Account Store: one balance row per account.
//
// There is no external mutation API. Balance changes happen only through the
// ledger service, under the per-account lock, inside the same unit of work
// that appends the paired ledger record.
package accounts

import (
	"context"
	"database/sql"
	"time"

	"github.com/questline/walletcore/internal/wallet"
)

// Drift is a reconciliation finding: a balance that disagrees with its
// lifetime counters.
type Drift struct {
	AccountID string
	Currency  wallet.Currency
	Balance   int64
	Expected  int64
}

type Accounts interface {
	// Create inserts a fresh zero-balance account.
	// Returns wallet.ErrAccountExists on conflict.
	Create(ctx context.Context, accountID string) (wallet.Account, error)

	// Get reads an account without locking. Reporting only.
	Get(ctx context.Context, accountID string) (wallet.Account, error)

	// LockForUpdate locks the account row for the rest of the transaction
	// and returns the current state. This is the cross-process leg of the
	// concurrency controller.
	LockForUpdate(tx *sql.Tx, accountID string) (wallet.Account, error)

	// RollDay zeroes the daily counters if the row's day started before
	// dayStart. Callable only while the row lock is held.
	RollDay(tx *sql.Tx, accountID string, dayStart time.Time) error

	// ApplyDelta moves a balance by a signed amount, keeping the lifetime
	// and daily counters in step. Callable only while the row lock is held.
	// Returns wallet.ErrInsufficientBalance if the move would go negative.
	ApplyDelta(tx *sql.Tx, accountID string, currency wallet.Currency, delta int64) error

	// SetLastPayoutAt stamps the payout rate-limit marker. Callable only
	// while the row lock is held, in the same unit of work as the payout.
	SetLastPayoutAt(tx *sql.Tx, accountID string, at time.Time) error

	// SetPayoutAddress links or replaces the account's payout destination.
	SetPayoutAddress(ctx context.Context, accountID, address string) error

	// ResetExpiredDays zeroes daily counters for every account whose day
	// started before dayStart. Sweep support; takes no cross-account lock.
	ResetExpiredDays(ctx context.Context, dayStart time.Time) (int64, error)

	// ClearExpiredPayoutMarks nulls rate-limit markers older than olderThan.
	// Bookkeeping only: the redeem precheck compares against the window
	// itself, so correctness never depends on this running.
	ClearExpiredPayoutMarks(ctx context.Context, olderThan time.Time) (int64, error)

	// FindDrifted returns accounts whose balance does not equal the
	// difference of its lifetime counters. Sweep support.
	FindDrifted(ctx context.Context, limit int) ([]Drift, error)
}
