// Package records defines the Ledger Recorder: the append-only store of
// ledger records. Records are inserted in the same unit of work as the
// balance update they describe and are never mutated afterwards, except for
// status transitions performed as their own serialized step.
package records

import (
	"context"
	"database/sql"

	"github.com/questline/walletcore/internal/wallet"
)

type Records interface {
	// Insert appends a record inside the caller's unit of work. A clash on
	// the idempotency-key index maps to wallet.ErrDuplicateOperation.
	Insert(tx *sql.Tx, rec wallet.Record) error

	GetByID(ctx context.Context, recordID string) (wallet.Record, error)
	GetByIdempotencyKey(ctx context.Context, key string) (wallet.Record, error)

	// LockForUpdate locks a record row for a status transition.
	LockForUpdate(tx *sql.Tx, recordID string) (wallet.Record, error)

	// SetStatus updates the status only. Legality of the transition is the
	// ledger service's job; the recorder just persists it.
	SetStatus(tx *sql.Tx, recordID string, status wallet.Status) error

	// ListByAccount returns an account's records ordered by createdAt
	// descending. Immediately consistent with the account's own writes.
	ListByAccount(ctx context.Context, accountID string, f wallet.Filter, p wallet.Page) ([]wallet.Record, error)

	// StatsByAccount aggregates record counts per status.
	StatsByAccount(ctx context.Context, accountID string) (total int64, byStatus map[wallet.Status]int64, err error)
}
