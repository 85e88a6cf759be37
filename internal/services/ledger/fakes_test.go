package ledger

import (
	"context"
	"database/sql"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/questline/walletcore/internal/repos/accounts"
	"github.com/questline/walletcore/internal/repos/records"
	"github.com/questline/walletcore/internal/wallet"
)

// memStore backs a Service with in-memory maps. It implements both store
// interfaces and a unit-of-work that snapshots state and restores it when
// the work function fails, mirroring a rolled-back transaction.
type memStore struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	clock func() time.Time

	accounts map[string]wallet.Account
	records  []wallet.Record
}

// The two store interfaces both declare LockForUpdate with different
// signatures, so each side gets a thin adapter over the shared state.
type memAccounts struct{ *memStore }

type memRecords struct{ *memStore }

var (
	_ accounts.Accounts = memAccounts{}
	_ records.Records   = memRecords{}
)

func (m memAccounts) LockForUpdate(_ *sql.Tx, accountID string) (wallet.Account, error) {
	return m.Get(context.Background(), accountID)
}

func (m memRecords) LockForUpdate(_ *sql.Tx, recordID string) (wallet.Record, error) {
	return m.GetByID(context.Background(), recordID)
}

func newMemStore(clock func() time.Time) *memStore {
	return &memStore{
		clock:    clock,
		accounts: make(map[string]wallet.Account),
	}
}

func (m *memStore) run(_ context.Context, fn func(*sql.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapAccounts := maps.Clone(m.accounts)
	snapRecords := slices.Clone(m.records)
	m.mu.Unlock()

	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.accounts = snapAccounts
		m.records = snapRecords
		m.mu.Unlock()
		return err
	}

	return nil
}

func (m *memStore) dayStart() time.Time {
	t := m.clock().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (m *memStore) Create(_ context.Context, accountID string) (wallet.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[accountID]; ok {
		return wallet.Account{}, wallet.ErrAccountExists
	}

	now := m.clock().UTC()
	acct := wallet.Account{
		ID:           accountID,
		DayStartedAt: m.dayStart(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.accounts[accountID] = acct

	return acct, nil
}

func (m *memStore) Get(_ context.Context, accountID string) (wallet.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[accountID]
	if !ok {
		return wallet.Account{}, wallet.ErrAccountNotFound
	}

	return acct, nil
}

func (m *memStore) RollDay(_ *sql.Tx, accountID string, dayStart time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[accountID]
	if !ok {
		return wallet.ErrAccountNotFound
	}

	if acct.DayStartedAt.Before(dayStart) {
		acct.DayCoinsEarned = 0
		acct.DayCoinsSpent = 0
		acct.DayStartedAt = dayStart
		m.accounts[accountID] = acct
	}

	return nil
}

func (m *memStore) ApplyDelta(_ *sql.Tx, accountID string, currency wallet.Currency, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[accountID]
	if !ok {
		return wallet.ErrAccountNotFound
	}

	switch currency {
	case wallet.CurrencyCoin:
		if acct.CoinBalance+delta < 0 {
			return wallet.ErrInsufficientBalance
		}
		acct.CoinBalance += delta
		if delta > 0 {
			acct.LifetimeCoinsEarned += delta
			acct.DayCoinsEarned += delta
		} else {
			acct.LifetimeCoinsSpent += -delta
			acct.DayCoinsSpent += -delta
		}
	case wallet.CurrencyCash:
		if acct.CashBalance+delta < 0 {
			return wallet.ErrInsufficientBalance
		}
		acct.CashBalance += delta
		if delta > 0 {
			acct.LifetimeCashEarned += delta
		} else {
			acct.LifetimeCashWithdrawn += -delta
		}
	}

	acct.UpdatedAt = m.clock().UTC()
	m.accounts[accountID] = acct

	return nil
}

func (m *memStore) SetLastPayoutAt(_ *sql.Tx, accountID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[accountID]
	if !ok {
		return wallet.ErrAccountNotFound
	}

	acct.LastPayoutAt = &at
	m.accounts[accountID] = acct

	return nil
}

func (m *memStore) SetPayoutAddress(_ context.Context, accountID, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[accountID]
	if !ok {
		return wallet.ErrAccountNotFound
	}

	acct.PayoutAddress = address
	m.accounts[accountID] = acct

	return nil
}

func (m *memStore) ResetExpiredDays(_ context.Context, dayStart time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, acct := range m.accounts {
		if acct.DayStartedAt.Before(dayStart) {
			acct.DayCoinsEarned = 0
			acct.DayCoinsSpent = 0
			acct.DayStartedAt = dayStart
			m.accounts[id] = acct
			n++
		}
	}

	return n, nil
}

func (m *memStore) ClearExpiredPayoutMarks(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, acct := range m.accounts {
		if acct.LastPayoutAt != nil && acct.LastPayoutAt.Before(olderThan) {
			acct.LastPayoutAt = nil
			m.accounts[id] = acct
			n++
		}
	}

	return n, nil
}

func (m *memStore) FindDrifted(_ context.Context, limit int) ([]accounts.Drift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []accounts.Drift
	for _, acct := range m.accounts {
		if len(out) >= limit {
			break
		}
		if exp := acct.LifetimeCoinsEarned - acct.LifetimeCoinsSpent; exp != acct.CoinBalance {
			out = append(out, accounts.Drift{
				AccountID: acct.ID, Currency: wallet.CurrencyCoin,
				Balance: acct.CoinBalance, Expected: exp,
			})
		}
	}

	return out, nil
}

func (m *memStore) Insert(_ *sql.Tx, rec wallet.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.IdempotencyKey != "" {
		for _, r := range m.records {
			if r.IdempotencyKey == rec.IdempotencyKey {
				return wallet.ErrDuplicateOperation
			}
		}
	}

	m.records = append(m.records, rec)

	return nil
}

func (m *memStore) GetByID(_ context.Context, recordID string) (wallet.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.ID == recordID {
			return r, nil
		}
	}

	return wallet.Record{}, wallet.ErrRecordNotFound
}

func (m *memStore) GetByIdempotencyKey(_ context.Context, key string) (wallet.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.IdempotencyKey == key {
			return r, nil
		}
	}

	return wallet.Record{}, wallet.ErrRecordNotFound
}

func (m *memStore) SetStatus(_ *sql.Tx, recordID string, status wallet.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.records {
		if r.ID == recordID {
			m.records[i].Status = status
			return nil
		}
	}

	return wallet.ErrRecordNotFound
}

func (m *memStore) ListByAccount(_ context.Context, accountID string, f wallet.Filter, p wallet.Page) ([]wallet.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []wallet.Record
	for _, r := range m.records {
		if r.AccountID != accountID {
			continue
		}
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && r.CreatedAt.After(f.To) {
			continue
		}
		out = append(out, r)
	}

	slices.Reverse(out)

	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	if p.Offset >= len(out) {
		return nil, nil
	}
	out = out[p.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (m *memStore) StatsByAccount(_ context.Context, accountID string) (int64, map[wallet.Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byStatus := make(map[wallet.Status]int64)
	var total int64
	for _, r := range m.records {
		if r.AccountID != accountID {
			continue
		}
		total++
		byStatus[r.Status]++
	}

	return total, byStatus, nil
}
