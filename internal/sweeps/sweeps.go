// Package sweeps runs the periodic per-account maintenance jobs: the
// daily-counter reset, the expired rate-limit cleanup and the balance
// reconciliation check. Each pass is a single statement over all accounts
// with no cross-account lock, so sweeps never contend with mutations.
package sweeps

import (
	"context"
	"log/slog"
	"time"

	"github.com/questline/walletcore/internal/config"
	"github.com/questline/walletcore/internal/repos/accounts"
)

type Runner struct {
	accounts     accounts.Accounts
	interval     time.Duration
	limit        int
	payoutWindow time.Duration
	now          func() time.Time
}

func New(a accounts.Accounts, cfg config.SweepsConfig, payoutWindow time.Duration) *Runner {
	return &Runner{
		accounts:     a,
		interval:     cfg.Interval,
		limit:        cfg.ReconcileSampleLimit,
		payoutWindow: payoutWindow,
		now:          time.Now,
	}
}

// Run loops until ctx is done. Failures are logged and retried on the next
// tick; a broken sweep must never take the service down.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce(ctx)
		}
	}
}

func (r *Runner) sweepOnce(ctx context.Context) {
	reset, err := r.accounts.ResetExpiredDays(ctx, r.dayStart())
	if err != nil {
		slog.Error("daily counter reset failed", "error", err)
	} else if reset > 0 {
		slog.Info("daily counters reset", "accounts", reset)
	}

	cleared, err := r.accounts.ClearExpiredPayoutMarks(ctx, r.now().UTC().Add(-r.payoutWindow))
	if err != nil {
		slog.Error("payout mark cleanup failed", "error", err)
	} else if cleared > 0 {
		slog.Info("expired payout marks cleared", "accounts", cleared)
	}

	drifts, err := r.accounts.FindDrifted(ctx, r.limit)
	if err != nil {
		slog.Error("reconciliation sweep failed", "error", err)
		return
	}

	// Report only. A drifted balance means a bug or manual interference;
	// auto-correcting would destroy the evidence.
	for _, d := range drifts {
		slog.Error("balance drift detected",
			"account", d.AccountID,
			"currency", string(d.Currency),
			"balance", d.Balance,
			"expected", d.Expected,
		)
	}
}

func (r *Runner) dayStart() time.Time {
	t := r.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
