package wallet

import (
	"encoding/json"
	"time"
)

// Currency is one of the two balances an account holds.
type Currency string

const (
	CurrencyCoin Currency = "coin"
	CurrencyCash Currency = "cash"
)

// Direction says which way a mutation moves a balance.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Kind is the business classification of a ledger mutation. Every kind maps
// statically to a currency and a direction; amounts are always positive and
// the kind implies the sign.
type Kind string

const (
	KindCoinEarn       Kind = "coin-earn"
	KindCoinSpend      Kind = "coin-spend"
	KindCoinPurchase   Kind = "coin-purchase"
	KindCashDeposit    Kind = "cash-deposit"
	KindCashWithdraw   Kind = "cash-withdraw"
	KindCryptoWithdraw Kind = "crypto-withdraw"
	KindRefund         Kind = "refund"
)

type kindInfo struct {
	direction Direction
	currency  Currency
}

// KindRefund has no fixed currency: it follows the record being refunded.
var kinds = map[Kind]kindInfo{
	KindCoinEarn:       {DirectionCredit, CurrencyCoin},
	KindCoinSpend:      {DirectionDebit, CurrencyCoin},
	KindCoinPurchase:   {DirectionCredit, CurrencyCoin},
	KindCashDeposit:    {DirectionCredit, CurrencyCash},
	KindCashWithdraw:   {DirectionDebit, CurrencyCash},
	KindCryptoWithdraw: {DirectionDebit, CurrencyCash},
	KindRefund:         {DirectionCredit, ""},
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Direction returns the balance direction for the kind.
func (k Kind) Direction() (Direction, bool) {
	info, ok := kinds[k]
	return info.direction, ok
}

// Currency returns the balance the kind applies to. For KindRefund the
// second return is false and the currency must come from the original record.
func (k Kind) Currency() (Currency, bool) {
	info, ok := kinds[k]
	if !ok || info.currency == "" {
		return "", false
	}
	return info.currency, true
}

// ParseKind validates a wire-level kind string.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	return k, k.Valid()
}

// Status is the settlement state of a ledger record. Records are append-only;
// status is the single field allowed to change after commit.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a wire-level status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// CanTransitionTo reports whether a record may move from s to next.
// Only pending records may settle; terminal statuses are immutable.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Account is one user's balance row. Mutated only by the ledger service,
// always together with a Record in the same unit of work.
type Account struct {
	ID                    string
	CoinBalance           int64
	CashBalance           int64
	LifetimeCoinsEarned   int64
	LifetimeCoinsSpent    int64
	LifetimeCashEarned    int64
	LifetimeCashWithdrawn int64
	PayoutAddress         string
	LastPayoutAt          *time.Time
	DayStartedAt          time.Time
	DayCoinsEarned        int64
	DayCoinsSpent         int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// BalanceFor returns the balance for a currency.
func (a Account) BalanceFor(c Currency) int64 {
	if c == CurrencyCash {
		return a.CashBalance
	}
	return a.CoinBalance
}

// Record is one immutable ledger entry. Amount is always positive; the kind
// implies the sign. BalanceBefore/BalanceAfter snapshot the affected balance
// around the mutation, so replaying an account's records reproduces it.
type Record struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"accountId"`
	Kind           Kind            `json:"kind"`
	Currency       Currency        `json:"currency"`
	Amount         int64           `json:"amount"`
	BalanceBefore  int64           `json:"balanceBefore"`
	BalanceAfter   int64           `json:"balanceAfter"`
	Status         Status          `json:"status"`
	Description    string          `json:"description"`
	Context        json.RawMessage `json:"context,omitempty"`
	ExternalRef    string          `json:"externalRef,omitempty"`
	IdempotencyKey string          `json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// SignedAmount is the amount with the direction applied.
func (r Record) SignedAmount() int64 {
	if dir, _ := r.Kind.Direction(); dir == DirectionDebit {
		return -r.Amount
	}
	return r.Amount
}

// Filter narrows record listings. Zero values mean "no constraint".
type Filter struct {
	Kind   Kind
	Status Status
	From   time.Time
	To     time.Time
}

// Page is limit/offset pagination for record listings.
type Page struct {
	Limit  int
	Offset int
}

// BalanceView is the reporting facade's balance answer.
type BalanceView struct {
	AccountID             string     `json:"accountId"`
	CoinBalance           int64      `json:"coinBalance"`
	CashBalance           int64      `json:"cashBalance"`
	LifetimeCoinsEarned   int64      `json:"lifetimeCoinsEarned"`
	LifetimeCoinsSpent    int64      `json:"lifetimeCoinsSpent"`
	LifetimeCashEarned    int64      `json:"lifetimeCashEarned"`
	LifetimeCashWithdrawn int64      `json:"lifetimeCashWithdrawn"`
	LastPayoutAt          *time.Time `json:"lastPayoutAt,omitempty"`
}

// StatsView aggregates an account's ledger activity.
type StatsView struct {
	AccountID      string           `json:"accountId"`
	TotalRecords   int64            `json:"totalRecords"`
	CountByStatus  map[Status]int64 `json:"countByStatus"`
	DayCoinsEarned int64            `json:"dayCoinsEarned"`
	DayCoinsSpent  int64            `json:"dayCoinsSpent"`
}
