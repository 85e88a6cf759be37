package accounts

import (
	"context"
	"fmt"
	"time"

	accountsrepo "github.com/questline/walletcore/internal/repos/accounts"
	"github.com/questline/walletcore/internal/wallet"
)

// ResetExpiredDays is the sweep half of the daily-counter reset. Mutations
// also roll their own row lazily, so correctness never depends on this job
// having run.
func (r *accountsRepo) ResetExpiredDays(ctx context.Context, dayStart time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET day_coins_earned = 0,
		    day_coins_spent = 0,
		    day_started_at = $1,
		    updated_at = now()
		WHERE day_started_at < $1
	`, dayStart)
	if err != nil {
		return 0, fmt.Errorf("reset expired days: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

func (r *accountsRepo) ClearExpiredPayoutMarks(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET last_payout_at = NULL,
		    updated_at = now()
		WHERE last_payout_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("clear expired payout marks: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

func (r *accountsRepo) FindDrifted(ctx context.Context, limit int) ([]accountsrepo.Drift, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, 'coin' AS currency, coin_balance,
		       lifetime_coins_earned - lifetime_coins_spent AS expected
		FROM accounts
		WHERE coin_balance <> lifetime_coins_earned - lifetime_coins_spent
		UNION ALL
		SELECT id, 'cash' AS currency, cash_balance,
		       lifetime_cash_earned - lifetime_cash_withdrawn AS expected
		FROM accounts
		WHERE cash_balance <> lifetime_cash_earned - lifetime_cash_withdrawn
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("find drifted: %w", err)
	}
	defer rows.Close()

	var drifts []accountsrepo.Drift

	for rows.Next() {
		var (
			d   accountsrepo.Drift
			cur string
		)

		err = rows.Scan(&d.AccountID, &cur, &d.Balance, &d.Expected)
		if err != nil {
			return nil, fmt.Errorf("scan drift: %w", err)
		}

		d.Currency = wallet.Currency(cur)
		drifts = append(drifts, d)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate drifts: %w", err)
	}

	return drifts, nil
}
