package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questline/walletcore/internal/wallet"
)

func newTestReporter(t *testing.T) (*Service, *Reporter) {
	t.Helper()

	svc, store := newTestService(newFakeClock(time.Now()))
	rep := NewReporterWithRepos(memAccounts{store}, memRecords{store})
	return svc, rep
}

func TestReporterBalance(t *testing.T) {
	t.Parallel()

	svc, rep := newTestReporter(t)
	mustAccount(t, svc, "acct-1")

	_, err := svc.Credit(context.Background(), CreditParams{
		AccountID: "acct-1", Amount: 300, Kind: wallet.KindCoinEarn,
	})
	require.NoError(t, err)

	_, err = svc.TopUpCash(context.Background(), "acct-1", 50, "card", "gw-1")
	require.NoError(t, err)

	view, err := rep.Balance(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", view.AccountID)
	assert.Equal(t, int64(300), view.CoinBalance)
	assert.Equal(t, int64(50), view.CashBalance)
	assert.Equal(t, int64(300), view.LifetimeCoinsEarned)
	assert.Equal(t, int64(50), view.LifetimeCashEarned)
	assert.Nil(t, view.LastPayoutAt)

	_, err = rep.Balance(context.Background(), "ghost")
	assert.ErrorIs(t, err, wallet.ErrAccountNotFound)
}

func TestReporterTransactions(t *testing.T) {
	t.Parallel()

	svc, rep := newTestReporter(t)
	mustAccount(t, svc, "acct-1")

	for i := 0; i < 3; i++ {
		_, err := svc.Credit(context.Background(), CreditParams{
			AccountID: "acct-1", Amount: 10, Kind: wallet.KindCoinEarn,
		})
		require.NoError(t, err)
	}
	_, err := svc.Debit(context.Background(), DebitParams{
		AccountID: "acct-1", Amount: 5, Kind: wallet.KindCoinSpend,
	})
	require.NoError(t, err)

	all, err := rep.Transactions(context.Background(), "acct-1", wallet.Filter{}, wallet.Page{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, wallet.KindCoinSpend, all[0].Kind, "newest first")

	spends, err := rep.Transactions(context.Background(), "acct-1",
		wallet.Filter{Kind: wallet.KindCoinSpend}, wallet.Page{})
	require.NoError(t, err)
	assert.Len(t, spends, 1)

	page, err := rep.Transactions(context.Background(), "acct-1",
		wallet.Filter{}, wallet.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	_, err = rep.Transactions(context.Background(), "ghost", wallet.Filter{}, wallet.Page{})
	assert.ErrorIs(t, err, wallet.ErrAccountNotFound)
}

func TestReporterStats(t *testing.T) {
	t.Parallel()

	svc, rep := newTestReporter(t)
	mustAccount(t, svc, "acct-1")

	_, err := svc.TopUpCash(context.Background(), "acct-1", 1000, "card", "gw-1")
	require.NoError(t, err)

	_, err = svc.WithdrawCash(context.Background(), "acct-1", 100, "IBAN-1")
	require.NoError(t, err)

	_, err = svc.Credit(context.Background(), CreditParams{
		AccountID: "acct-1", Amount: 20, Kind: wallet.KindCoinEarn,
	})
	require.NoError(t, err)

	stats, err := rep.Stats(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRecords)
	assert.Equal(t, int64(2), stats.CountByStatus[wallet.StatusCompleted])
	assert.Equal(t, int64(1), stats.CountByStatus[wallet.StatusPending])
	assert.Equal(t, int64(20), stats.DayCoinsEarned)

	_, err = rep.Stats(context.Background(), "ghost")
	assert.ErrorIs(t, err, wallet.ErrAccountNotFound)
}
