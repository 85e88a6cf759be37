package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/questline/walletcore/internal/wallet"
)

// TopUpCash records a settled deposit from the payment gateway. The
// gateway's reference doubles as the idempotency key, so a redelivered
// settlement callback cannot credit twice.
func (s *Service) TopUpCash(ctx context.Context, accountID string, amount int64, method, externalRef string) (wallet.Record, error) {
	var idemKey string
	if externalRef != "" {
		idemKey = "topup:" + externalRef
	}

	rec, err := s.apply(ctx, mutation{
		accountID:      accountID,
		kind:           wallet.KindCashDeposit,
		currency:       wallet.CurrencyCash,
		amount:         amount,
		description:    "cash top-up via " + method,
		externalRef:    externalRef,
		idempotencyKey: idemKey,
	})
	if err != nil {
		return rec, fmt.Errorf("top up cash: %w", err)
	}

	return rec, nil
}

// WithdrawCash debits the balance immediately and commits a pending record,
// so the same funds cannot be withdrawn twice while the external transfer is
// in flight. The caller performs the transfer after this returns, quoting
// the record ID as the rail's idempotency key, and settles the record later
// via TransitionStatus. The account lock is never held across that call.
func (s *Service) WithdrawCash(ctx context.Context, accountID string, amount int64, destination string) (wallet.Record, error) {
	payload, err := json.Marshal(map[string]string{"destination": destination})
	if err != nil {
		return wallet.Record{}, fmt.Errorf("withdraw cash: encode destination: %w", err)
	}

	rec, err := s.apply(ctx, mutation{
		accountID:   accountID,
		kind:        wallet.KindCashWithdraw,
		currency:    wallet.CurrencyCash,
		amount:      amount,
		status:      wallet.StatusPending,
		description: "cash withdrawal",
		context:     payload,
	})
	if err != nil {
		return rec, fmt.Errorf("withdraw cash: %w", err)
	}

	return rec, nil
}

// RedeemForExternalPayout debits cash for a payout to the account's linked
// address, rate-limited per account. The rate-limit check and the
// lastPayoutAt update sit inside the same unit of work as the debit, so two
// racing redeems cannot both pass the window check.
func (s *Service) RedeemForExternalPayout(ctx context.Context, accountID string, amount int64, window time.Duration) (wallet.Record, error) {
	if window <= 0 {
		window = s.payoutWindow
	}

	now := s.now().UTC()

	rec, err := s.apply(ctx, mutation{
		accountID:   accountID,
		kind:        wallet.KindCryptoWithdraw,
		currency:    wallet.CurrencyCash,
		amount:      amount,
		status:      wallet.StatusPending,
		description: "external payout redemption",
		precheck: func(acct wallet.Account) error {
			if acct.PayoutAddress == "" {
				return wallet.ErrNoPayoutAddress
			}

			if acct.LastPayoutAt != nil && now.Sub(*acct.LastPayoutAt) < window {
				return wallet.ErrRateLimited
			}

			return nil
		},
		postApply: func(tx *sql.Tx) error {
			err := s.accounts.SetLastPayoutAt(tx, accountID, now)
			if err != nil {
				return fmt.Errorf("stamp payout time: %w", err)
			}

			return nil
		},
	})
	if err != nil {
		return rec, fmt.Errorf("redeem for external payout: %w", err)
	}

	return rec, nil
}

// Refund credits back part or all of a previously debited record. The
// idempotency key is derived from the original record ID, so a retried
// refund returns the first refund record instead of crediting again. The
// original record is never modified.
func (s *Service) Refund(ctx context.Context, accountID, originalRecordID string, amount int64) (wallet.Record, error) {
	orig, err := s.records.GetByID(ctx, originalRecordID)
	if err != nil {
		return wallet.Record{}, classify(fmt.Errorf("refund: load original: %w", err))
	}

	if orig.AccountID != accountID {
		return wallet.Record{}, fmt.Errorf("refund: %w", wallet.ErrRecordNotFound)
	}

	if dir, _ := orig.Kind.Direction(); dir != wallet.DirectionDebit {
		return wallet.Record{}, fmt.Errorf("refund: original is not a debit: %w", wallet.ErrInvalidKind)
	}

	if orig.Status == wallet.StatusPending {
		// Settle first (failed/cancelled), then refund.
		return wallet.Record{}, fmt.Errorf("refund: original still pending: %w", wallet.ErrInvalidTransition)
	}

	if amount > orig.Amount {
		return wallet.Record{}, fmt.Errorf("refund: exceeds original amount: %w", wallet.ErrInvalidAmount)
	}

	rec, err := s.apply(ctx, mutation{
		accountID:      accountID,
		kind:           wallet.KindRefund,
		currency:       orig.Currency,
		amount:         amount,
		description:    "refund of " + originalRecordID,
		externalRef:    originalRecordID,
		idempotencyKey: "refund:" + originalRecordID,
	})
	if err != nil {
		return rec, fmt.Errorf("refund: %w", err)
	}

	return rec, nil
}
