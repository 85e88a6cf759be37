// Package ledger is the orchestrating core of the wallet: every balance
// mutation in the system goes through a Service method, which serializes the
// operation per account, applies the balance delta and appends the paired
// ledger record in one unit of work.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/questline/walletcore/internal/config"
	"github.com/questline/walletcore/internal/infra/pgutils"
	"github.com/questline/walletcore/internal/repos/accounts"
	pgaccounts "github.com/questline/walletcore/internal/repos/accounts/postgres"
	"github.com/questline/walletcore/internal/repos/records"
	pgrecords "github.com/questline/walletcore/internal/repos/records/postgres"
	"github.com/questline/walletcore/internal/wallet"
	"github.com/questline/walletcore/pkg/keylock"
	"github.com/questline/walletcore/pkg/reference"
)

// runFn is the unit-of-work primitive. The default wraps pgutils.WithTx;
// tests substitute a pass-through.
type runFn func(ctx context.Context, fn func(*sql.Tx) error) error

type Service struct {
	accounts accounts.Accounts
	records  records.Records
	locks    *keylock.Locker
	refs     *reference.Generator
	run      runFn
	now      func() time.Time

	lockTimeout  time.Duration
	payoutWindow time.Duration
}

// Option overrides a Service dependency, used by tests to substitute fakes.
type Option func(*Service)

func WithRepos(a accounts.Accounts, r records.Records) Option {
	return func(s *Service) {
		s.accounts = a
		s.records = r
	}
}

func WithUnitOfWork(run func(ctx context.Context, fn func(*sql.Tx) error) error) Option {
	return func(s *Service) { s.run = run }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(db *sql.DB, cfg config.LedgerConfig, opts ...Option) *Service {
	s := &Service{
		accounts: pgaccounts.New(db),
		records:  pgrecords.New(db),
		locks:    keylock.New(),
		refs:     reference.NewGenerator(),
		run: func(ctx context.Context, fn func(*sql.Tx) error) error {
			return pgutils.WithTx(ctx, db, fn)
		},
		now:          time.Now,
		lockTimeout:  cfg.LockTimeout,
		payoutWindow: cfg.PayoutRateLimitWindow,
	}

	if s.lockTimeout <= 0 {
		s.lockTimeout = 5 * time.Second
	}
	if s.payoutWindow <= 0 {
		s.payoutWindow = 24 * time.Hour
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateAccount registers a zero-balance account for an identity the
// identity collaborator has already verified.
func (s *Service) CreateAccount(ctx context.Context, accountID string) (wallet.Account, error) {
	if accountID == "" {
		return wallet.Account{}, fmt.Errorf("create account: %w", wallet.ErrAccountNotFound)
	}

	acct, err := s.accounts.Create(ctx, accountID)
	if err != nil {
		return wallet.Account{}, classify(fmt.Errorf("create account: %w", err))
	}

	return acct, nil
}

// LinkPayoutAddress attaches the destination external payouts redeem to.
func (s *Service) LinkPayoutAddress(ctx context.Context, accountID, address string) error {
	err := s.accounts.SetPayoutAddress(ctx, accountID, address)
	if err != nil {
		return classify(fmt.Errorf("link payout address: %w", err))
	}

	return nil
}

// mutation is one balance-mutating unit of work. The hooks run inside the
// per-account lock and the database transaction, so anything they check or
// write commits and rolls back with the balance change.
type mutation struct {
	accountID      string
	kind           wallet.Kind
	currency       wallet.Currency
	amount         int64
	status         wallet.Status
	description    string
	context        json.RawMessage
	externalRef    string
	idempotencyKey string

	// precheck runs after the row lock is taken, before any write.
	precheck func(acct wallet.Account) error
	// postApply runs after the record insert, same unit of work.
	postApply func(tx *sql.Tx) error
}

// apply is the single path every mutation takes:
// per-account lock -> unit of work -> row lock -> read-check-write -> append.
func (s *Service) apply(ctx context.Context, m mutation) (wallet.Record, error) {
	if m.amount <= 0 {
		return wallet.Record{}, wallet.ErrInvalidAmount
	}

	dir, ok := m.kind.Direction()
	if !ok {
		return wallet.Record{}, wallet.ErrInvalidKind
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	release, err := s.locks.Acquire(lockCtx, m.accountID)
	if err != nil {
		// No partial effect: nothing has been read or written yet.
		return wallet.Record{}, fmt.Errorf("acquire account lock: %v: %w", err, wallet.ErrConcurrencyConflict)
	}
	defer release()

	var rec wallet.Record

	err = s.run(ctx, func(tx *sql.Tx) error {
		acct, err := s.accounts.LockForUpdate(tx, m.accountID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		if m.currency == wallet.CurrencyCoin {
			err = s.accounts.RollDay(tx, m.accountID, s.dayStart())
			if err != nil {
				return fmt.Errorf("roll day: %w", err)
			}
		}

		if m.precheck != nil {
			err = m.precheck(acct)
			if err != nil {
				return err
			}
		}

		before := acct.BalanceFor(m.currency)

		delta := m.amount
		if dir == wallet.DirectionDebit {
			// The check lives inside the lock so a concurrent debit cannot
			// slip between check and apply.
			if before < m.amount {
				return wallet.ErrInsufficientBalance
			}

			delta = -m.amount
		}

		err = s.accounts.ApplyDelta(tx, m.accountID, m.currency, delta)
		if err != nil {
			return fmt.Errorf("apply delta: %w", err)
		}

		status := m.status
		if status == "" {
			status = wallet.StatusCompleted
		}

		rec = wallet.Record{
			ID:             s.refs.New(),
			AccountID:      m.accountID,
			Kind:           m.kind,
			Currency:       m.currency,
			Amount:         m.amount,
			BalanceBefore:  before,
			BalanceAfter:   before + delta,
			Status:         status,
			Description:    m.description,
			Context:        m.context,
			ExternalRef:    m.externalRef,
			IdempotencyKey: m.idempotencyKey,
			CreatedAt:      s.now().UTC(),
		}

		err = s.records.Insert(tx, rec)
		if err != nil {
			return fmt.Errorf("append record: %w", err)
		}

		if m.postApply != nil {
			return m.postApply(tx)
		}

		return nil
	})
	if err != nil {
		// A retried operation hit the idempotency index: the whole unit of
		// work rolled back, so hand back the record the first attempt made.
		if errors.Is(err, wallet.ErrDuplicateOperation) && m.idempotencyKey != "" {
			orig, getErr := s.records.GetByIdempotencyKey(ctx, m.idempotencyKey)
			if getErr == nil {
				return orig, wallet.ErrDuplicateOperation
			}
		}

		return wallet.Record{}, classify(err)
	}

	return rec, nil
}

// dayStart is the UTC boundary the daily counters reset on.
func (s *Service) dayStart() time.Time {
	t := s.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// classify maps infrastructure failures onto the error taxonomy while
// letting domain sentinels pass through untouched.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case isDomainErr(err):
		return err
	case pgutils.IsSerializationFailure(err):
		return fmt.Errorf("%v: %w", err, wallet.ErrConcurrencyConflict)
	case pgutils.IsCheckViolation(err):
		// The DB refused a negative balance the in-lock check should have
		// caught; report it as the domain error either way.
		return fmt.Errorf("%v: %w", err, wallet.ErrInsufficientBalance)
	case pgutils.IsUnavailable(err):
		return fmt.Errorf("%v: %w", err, wallet.ErrStorageUnavailable)
	default:
		return err
	}
}

func isDomainErr(err error) bool {
	for _, sentinel := range []error{
		wallet.ErrAccountNotFound,
		wallet.ErrAccountExists,
		wallet.ErrRecordNotFound,
		wallet.ErrInvalidAmount,
		wallet.ErrInvalidKind,
		wallet.ErrInsufficientBalance,
		wallet.ErrRateLimited,
		wallet.ErrNoPayoutAddress,
		wallet.ErrDuplicateOperation,
		wallet.ErrInvalidTransition,
		wallet.ErrConcurrencyConflict,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}
