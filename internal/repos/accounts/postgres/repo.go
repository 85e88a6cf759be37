package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/questline/walletcore/internal/infra/pgutils"
	accountsrepo "github.com/questline/walletcore/internal/repos/accounts"
	"github.com/questline/walletcore/internal/wallet"
)

var _ accountsrepo.Accounts = (*accountsRepo)(nil)

type accountsRepo struct{ db *sql.DB }

func New(db *sql.DB) *accountsRepo {
	return &accountsRepo{db: db}
}

const accountColumns = `
	id, coin_balance, cash_balance,
	lifetime_coins_earned, lifetime_coins_spent,
	lifetime_cash_earned, lifetime_cash_withdrawn,
	payout_address, last_payout_at,
	day_started_at, day_coins_earned, day_coins_spent,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (wallet.Account, error) {
	var (
		a       wallet.Account
		address sql.NullString
		payout  sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.CoinBalance, &a.CashBalance,
		&a.LifetimeCoinsEarned, &a.LifetimeCoinsSpent,
		&a.LifetimeCashEarned, &a.LifetimeCashWithdrawn,
		&address, &payout,
		&a.DayStartedAt, &a.DayCoinsEarned, &a.DayCoinsSpent,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return wallet.Account{}, err
	}

	a.PayoutAddress = address.String
	if payout.Valid {
		t := payout.Time
		a.LastPayoutAt = &t
	}

	return a, nil
}

func (r *accountsRepo) Create(ctx context.Context, accountID string) (wallet.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id)
		VALUES ($1)
		RETURNING`+accountColumns, accountID)

	a, err := scanAccount(row)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return wallet.Account{}, wallet.ErrAccountExists
		}

		return wallet.Account{}, fmt.Errorf("create account: %w", err)
	}

	return a, nil
}

func (r *accountsRepo) Get(ctx context.Context, accountID string) (wallet.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT`+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, accountID)

	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallet.Account{}, wallet.ErrAccountNotFound
		}

		return wallet.Account{}, fmt.Errorf("get account: %w", err)
	}

	return a, nil
}

func (r *accountsRepo) LockForUpdate(tx *sql.Tx, accountID string) (wallet.Account, error) {
	row := tx.QueryRow(`
		SELECT`+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)

	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallet.Account{}, wallet.ErrAccountNotFound
		}

		return wallet.Account{}, fmt.Errorf("lock account: %w", err)
	}

	return a, nil
}
