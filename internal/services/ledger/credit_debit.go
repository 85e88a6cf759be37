package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/questline/walletcore/internal/wallet"
)

// CreditParams describes a validated "credit N units for reason X" request
// from a collaborating subsystem. Context is stored verbatim and never
// interpreted.
type CreditParams struct {
	AccountID      string
	Amount         int64
	Kind           wallet.Kind
	Description    string
	Context        json.RawMessage
	ExternalRef    string
	IdempotencyKey string
}

// Credit increases a balance and its lifetime-earned counter.
func (s *Service) Credit(ctx context.Context, p CreditParams) (wallet.Record, error) {
	currency, err := currencyFor(p.Kind, wallet.DirectionCredit)
	if err != nil {
		return wallet.Record{}, err
	}

	rec, err := s.apply(ctx, mutation{
		accountID:      p.AccountID,
		kind:           p.Kind,
		currency:       currency,
		amount:         p.Amount,
		description:    p.Description,
		context:        p.Context,
		externalRef:    p.ExternalRef,
		idempotencyKey: p.IdempotencyKey,
	})
	if err != nil {
		return rec, fmt.Errorf("credit: %w", err)
	}

	return rec, nil
}

// DebitParams mirrors CreditParams for the spending direction.
type DebitParams struct {
	AccountID      string
	Amount         int64
	Kind           wallet.Kind
	Description    string
	Context        json.RawMessage
	ExternalRef    string
	IdempotencyKey string
}

// Debit decreases a balance and increases its lifetime-spent counter. The
// insufficient-balance check happens under the account lock.
func (s *Service) Debit(ctx context.Context, p DebitParams) (wallet.Record, error) {
	currency, err := currencyFor(p.Kind, wallet.DirectionDebit)
	if err != nil {
		return wallet.Record{}, err
	}

	rec, err := s.apply(ctx, mutation{
		accountID:      p.AccountID,
		kind:           p.Kind,
		currency:       currency,
		amount:         p.Amount,
		description:    p.Description,
		context:        p.Context,
		externalRef:    p.ExternalRef,
		idempotencyKey: p.IdempotencyKey,
	})
	if err != nil {
		return rec, fmt.Errorf("debit: %w", err)
	}

	return rec, nil
}

// currencyFor resolves the kind's currency and rejects kinds pointing the
// wrong way. KindRefund is excluded here: refunds go through Refund, which
// resolves the currency from the original record.
func currencyFor(kind wallet.Kind, want wallet.Direction) (wallet.Currency, error) {
	dir, ok := kind.Direction()
	if !ok || dir != want || kind == wallet.KindRefund {
		return "", wallet.ErrInvalidKind
	}

	currency, ok := kind.Currency()
	if !ok {
		return "", wallet.ErrInvalidKind
	}

	return currency, nil
}
