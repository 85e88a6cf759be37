package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/questline/walletcore/internal/wallet"
)

// TransitionStatus settles an async record: pending -> completed, failed or
// cancelled. It is its own serialized unit of work on the record row, so a
// settlement callback and a concurrent read cannot observe a half-applied
// transition. Terminal statuses are immutable; a failed withdrawal is
// compensated by Refund, never by editing the record.
func (s *Service) TransitionStatus(ctx context.Context, recordID string, next wallet.Status) (wallet.Record, error) {
	if _, ok := wallet.ParseStatus(string(next)); !ok {
		return wallet.Record{}, fmt.Errorf("transition status: %w", wallet.ErrInvalidTransition)
	}

	var rec wallet.Record

	err := s.run(ctx, func(tx *sql.Tx) error {
		locked, err := s.records.LockForUpdate(tx, recordID)
		if err != nil {
			return fmt.Errorf("lock record: %w", err)
		}

		if !locked.Status.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", locked.Status, next, wallet.ErrInvalidTransition)
		}

		err = s.records.SetStatus(tx, recordID, next)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}

		rec = locked
		rec.Status = next

		return nil
	})
	if err != nil {
		return wallet.Record{}, classify(fmt.Errorf("transition status: %w", err))
	}

	return rec, nil
}
