package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/questline/walletcore/internal/wallet"
)

// ApplyDelta moves one balance by a signed amount. The WHERE guard refuses
// to drive the balance negative even if the caller's in-lock check was
// bypassed; lifetime and daily counters move with the balance so the
// replay invariant holds by construction.
func (r *accountsRepo) ApplyDelta(tx *sql.Tx, accountID string, currency wallet.Currency, delta int64) error {
	var query string

	switch currency {
	case wallet.CurrencyCoin:
		query = `
			UPDATE accounts
			SET coin_balance = coin_balance + $2,
			    lifetime_coins_earned = lifetime_coins_earned + CASE WHEN $2 > 0 THEN $2 ELSE 0 END,
			    lifetime_coins_spent  = lifetime_coins_spent  + CASE WHEN $2 < 0 THEN -$2 ELSE 0 END,
			    day_coins_earned = day_coins_earned + CASE WHEN $2 > 0 THEN $2 ELSE 0 END,
			    day_coins_spent  = day_coins_spent  + CASE WHEN $2 < 0 THEN -$2 ELSE 0 END,
			    updated_at = now()
			WHERE id = $1
			  AND coin_balance + $2 >= 0
		`
	case wallet.CurrencyCash:
		query = `
			UPDATE accounts
			SET cash_balance = cash_balance + $2,
			    lifetime_cash_earned    = lifetime_cash_earned    + CASE WHEN $2 > 0 THEN $2 ELSE 0 END,
			    lifetime_cash_withdrawn = lifetime_cash_withdrawn + CASE WHEN $2 < 0 THEN -$2 ELSE 0 END,
			    updated_at = now()
			WHERE id = $1
			  AND cash_balance + $2 >= 0
		`
	default:
		return fmt.Errorf("unknown currency %q", currency)
	}

	res, err := tx.Exec(query, accountID, delta)
	if err != nil {
		return fmt.Errorf("apply delta: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return wallet.ErrInsufficientBalance
	}

	return nil
}

func (r *accountsRepo) RollDay(tx *sql.Tx, accountID string, dayStart time.Time) error {
	_, err := tx.Exec(`
		UPDATE accounts
		SET day_coins_earned = 0,
		    day_coins_spent = 0,
		    day_started_at = $2,
		    updated_at = now()
		WHERE id = $1
		  AND day_started_at < $2
	`, accountID, dayStart)
	if err != nil {
		return fmt.Errorf("roll day: %w", err)
	}

	return nil
}

func (r *accountsRepo) SetLastPayoutAt(tx *sql.Tx, accountID string, at time.Time) error {
	_, err := tx.Exec(`
		UPDATE accounts
		SET last_payout_at = $2,
		    updated_at = now()
		WHERE id = $1
	`, accountID, at)
	if err != nil {
		return fmt.Errorf("set last payout: %w", err)
	}

	return nil
}

func (r *accountsRepo) SetPayoutAddress(ctx context.Context, accountID, address string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET payout_address = $2,
		    updated_at = now()
		WHERE id = $1
	`, accountID, address)
	if err != nil {
		return fmt.Errorf("set payout address: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return wallet.ErrAccountNotFound
	}

	return nil
}
