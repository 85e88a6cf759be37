package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/questline/walletcore/internal/repos/accounts"
	pgaccounts "github.com/questline/walletcore/internal/repos/accounts/postgres"
	"github.com/questline/walletcore/internal/repos/records"
	pgrecords "github.com/questline/walletcore/internal/repos/records/postgres"
	"github.com/questline/walletcore/internal/wallet"
)

// Reporter is the read-only facade over the same stores. It never touches
// the per-account lock; reads see committed state only.
type Reporter struct {
	accounts accounts.Accounts
	records  records.Records
}

func NewReporter(db *sql.DB) *Reporter {
	return &Reporter{
		accounts: pgaccounts.New(db),
		records:  pgrecords.New(db),
	}
}

// NewReporterWithRepos wires explicit stores, used by tests.
func NewReporterWithRepos(a accounts.Accounts, r records.Records) *Reporter {
	return &Reporter{accounts: a, records: r}
}

func (r *Reporter) Balance(ctx context.Context, accountID string) (wallet.BalanceView, error) {
	acct, err := r.accounts.Get(ctx, accountID)
	if err != nil {
		return wallet.BalanceView{}, classify(fmt.Errorf("balance: %w", err))
	}

	return wallet.BalanceView{
		AccountID:             acct.ID,
		CoinBalance:           acct.CoinBalance,
		CashBalance:           acct.CashBalance,
		LifetimeCoinsEarned:   acct.LifetimeCoinsEarned,
		LifetimeCoinsSpent:    acct.LifetimeCoinsSpent,
		LifetimeCashEarned:    acct.LifetimeCashEarned,
		LifetimeCashWithdrawn: acct.LifetimeCashWithdrawn,
		LastPayoutAt:          acct.LastPayoutAt,
	}, nil
}

// Transactions lists an account's records, newest first.
func (r *Reporter) Transactions(ctx context.Context, accountID string, f wallet.Filter, p wallet.Page) ([]wallet.Record, error) {
	_, err := r.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, classify(fmt.Errorf("transactions: %w", err))
	}

	recs, err := r.records.ListByAccount(ctx, accountID, f, p)
	if err != nil {
		return nil, classify(fmt.Errorf("transactions: %w", err))
	}

	return recs, nil
}

func (r *Reporter) Stats(ctx context.Context, accountID string) (wallet.StatsView, error) {
	acct, err := r.accounts.Get(ctx, accountID)
	if err != nil {
		return wallet.StatsView{}, classify(fmt.Errorf("stats: %w", err))
	}

	total, byStatus, err := r.records.StatsByAccount(ctx, accountID)
	if err != nil {
		return wallet.StatsView{}, classify(fmt.Errorf("stats: %w", err))
	}

	return wallet.StatsView{
		AccountID:      accountID,
		TotalRecords:   total,
		CountByStatus:  byStatus,
		DayCoinsEarned: acct.DayCoinsEarned,
		DayCoinsSpent:  acct.DayCoinsSpent,
	}, nil
}
