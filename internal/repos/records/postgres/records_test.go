package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questline/walletcore/internal/wallet"
)

func newMock(t *testing.T) (*recordsRepo, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(db), mock, db
}

func beginTx(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) *sql.Tx {
	t.Helper()

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return tx
}

func recordRow(rec wallet.Record) *sqlmock.Rows {
	ctxPayload := rec.Context
	if len(ctxPayload) == 0 {
		ctxPayload = []byte(`{}`)
	}

	return sqlmock.NewRows([]string{
		"id", "account_id", "kind", "currency", "amount",
		"balance_before", "balance_after", "status",
		"description", "context", "external_ref", "idempotency_key", "created_at",
	}).AddRow(
		rec.ID, rec.AccountID, string(rec.Kind), string(rec.Currency), rec.Amount,
		rec.BalanceBefore, rec.BalanceAfter, string(rec.Status),
		rec.Description, []byte(ctxPayload), rec.ExternalRef, rec.IdempotencyKey, rec.CreatedAt,
	)
}

func TestInsert(t *testing.T) {
	t.Parallel()

	repo, mock, db := newMock(t)
	tx := beginTx(t, db, mock)

	rec := wallet.Record{
		ID:            "rec-1",
		AccountID:     "acct-1",
		Kind:          wallet.KindCoinEarn,
		Currency:      wallet.CurrencyCoin,
		Amount:        100,
		BalanceBefore: 0,
		BalanceAfter:  100,
		Status:        wallet.StatusCompleted,
		Context:       json.RawMessage(`{"questId":"q-1"}`),
		CreatedAt:     time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO ledger_records").
		WithArgs(
			rec.ID, rec.AccountID, "coin-earn", "coin", rec.Amount,
			rec.BalanceBefore, rec.BalanceAfter, "completed",
			rec.Description, []byte(`{"questId":"q-1"}`), nil, nil, rec.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(tx, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIdempotencyClash(t *testing.T) {
	t.Parallel()

	repo, mock, db := newMock(t)
	tx := beginTx(t, db, mock)

	mock.ExpectExec("INSERT INTO ledger_records").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Insert(tx, wallet.Record{ID: "rec-1", IdempotencyKey: "topup:gw-1"})
	assert.ErrorIs(t, err, wallet.ErrDuplicateOperation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	t.Parallel()

	repo, mock, _ := newMock(t)

	mock.ExpectQuery("SELECT(.|\n)+FROM ledger_records").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, wallet.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIdempotencyKey(t *testing.T) {
	t.Parallel()

	repo, mock, _ := newMock(t)

	want := wallet.Record{
		ID: "rec-1", AccountID: "acct-1",
		Kind: wallet.KindCashDeposit, Currency: wallet.CurrencyCash,
		Amount: 500, BalanceAfter: 500,
		Status:         wallet.StatusCompleted,
		ExternalRef:    "gw-1",
		IdempotencyKey: "topup:gw-1",
		CreatedAt:      time.Now().UTC(),
	}

	mock.ExpectQuery("SELECT(.|\n)+WHERE idempotency_key = ").
		WithArgs("topup:gw-1").
		WillReturnRows(recordRow(want))

	got, err := repo.GetByIdempotencyKey(context.Background(), "topup:gw-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.IdempotencyKey, got.IdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockForUpdate(t *testing.T) {
	t.Parallel()

	repo, mock, db := newMock(t)
	tx := beginTx(t, db, mock)

	want := wallet.Record{
		ID: "rec-1", AccountID: "acct-1",
		Kind: wallet.KindCashWithdraw, Currency: wallet.CurrencyCash,
		Amount: 100, Status: wallet.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectQuery("SELECT(.|\n)+FOR UPDATE").
		WithArgs("rec-1").
		WillReturnRows(recordRow(want))

	got, err := repo.LockForUpdate(tx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusPending, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus(t *testing.T) {
	t.Parallel()

	repo, mock, db := newMock(t)
	tx := beginTx(t, db, mock)

	mock.ExpectExec("UPDATE ledger_records").
		WithArgs("rec-1", "completed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetStatus(tx, "rec-1", wallet.StatusCompleted))

	mock.ExpectExec("UPDATE ledger_records").
		WithArgs("ghost", "failed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStatus(tx, "ghost", wallet.StatusFailed)
	assert.ErrorIs(t, err, wallet.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByAccountBuildsFilters(t *testing.T) {
	t.Parallel()

	repo, mock, _ := newMock(t)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT(.|\n)+ORDER BY created_at DESC, id DESC").
		WithArgs("acct-1", "coin-spend", "completed", from, to, 10, 5).
		WillReturnRows(recordRow(wallet.Record{
			ID: "rec-1", AccountID: "acct-1",
			Kind: wallet.KindCoinSpend, Currency: wallet.CurrencyCoin,
			Amount: 5, Status: wallet.StatusCompleted, CreatedAt: from,
		}))

	recs, err := repo.ListByAccount(context.Background(), "acct-1",
		wallet.Filter{Kind: wallet.KindCoinSpend, Status: wallet.StatusCompleted, From: from, To: to},
		wallet.Page{Limit: 10, Offset: 5})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByAccountClampsLimit(t *testing.T) {
	t.Parallel()

	repo, mock, _ := newMock(t)

	mock.ExpectQuery("SELECT(.|\n)+LIMIT").
		WithArgs("acct-1", maxPageLimit, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.ListByAccount(context.Background(), "acct-1",
		wallet.Filter{}, wallet.Page{Limit: 10_000, Offset: -3})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsByAccount(t *testing.T) {
	t.Parallel()

	repo, mock, _ := newMock(t)

	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("completed", int64(7)).
			AddRow("pending", int64(2)))

	total, byStatus, err := repo.StatsByAccount(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), total)
	assert.Equal(t, int64(7), byStatus[wallet.StatusCompleted])
	assert.Equal(t, int64(2), byStatus[wallet.StatusPending])
	assert.NoError(t, mock.ExpectationsWereMet())
}
