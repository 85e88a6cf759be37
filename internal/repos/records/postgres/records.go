package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/questline/walletcore/internal/infra/pgutils"
	recordsrepo "github.com/questline/walletcore/internal/repos/records"
	"github.com/questline/walletcore/internal/wallet"
)

var _ recordsrepo.Records = (*recordsRepo)(nil)

type recordsRepo struct{ db *sql.DB }

func New(db *sql.DB) *recordsRepo {
	return &recordsRepo{db: db}
}

const recordColumns = `
	id, account_id, kind, currency, amount,
	balance_before, balance_after, status,
	description, context, external_ref, idempotency_key, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (wallet.Record, error) {
	var (
		rec         wallet.Record
		kind        string
		currency    string
		status      string
		externalRef sql.NullString
		idemKey     sql.NullString
	)

	err := row.Scan(
		&rec.ID, &rec.AccountID, &kind, &currency, &rec.Amount,
		&rec.BalanceBefore, &rec.BalanceAfter, &status,
		&rec.Description, &rec.Context, &externalRef, &idemKey, &rec.CreatedAt,
	)
	if err != nil {
		return wallet.Record{}, err
	}

	rec.Kind = wallet.Kind(kind)
	rec.Currency = wallet.Currency(currency)
	rec.Status = wallet.Status(status)
	rec.ExternalRef = externalRef.String
	rec.IdempotencyKey = idemKey.String

	return rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *recordsRepo) Insert(tx *sql.Tx, rec wallet.Record) error {
	ctxPayload := rec.Context
	if len(ctxPayload) == 0 {
		ctxPayload = []byte(`{}`)
	}

	_, err := tx.Exec(`
		INSERT INTO ledger_records (
			id, account_id, kind, currency, amount,
			balance_before, balance_after, status,
			description, context, external_ref, idempotency_key, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		rec.ID, rec.AccountID, string(rec.Kind), string(rec.Currency), rec.Amount,
		rec.BalanceBefore, rec.BalanceAfter, string(rec.Status),
		rec.Description, []byte(ctxPayload), nullable(rec.ExternalRef),
		nullable(rec.IdempotencyKey), rec.CreatedAt,
	)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return wallet.ErrDuplicateOperation
		}

		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

func (r *recordsRepo) GetByID(ctx context.Context, recordID string) (wallet.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT`+recordColumns+`
		FROM ledger_records
		WHERE id = $1
	`, recordID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallet.Record{}, wallet.ErrRecordNotFound
		}

		return wallet.Record{}, fmt.Errorf("get record: %w", err)
	}

	return rec, nil
}

func (r *recordsRepo) GetByIdempotencyKey(ctx context.Context, key string) (wallet.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT`+recordColumns+`
		FROM ledger_records
		WHERE idempotency_key = $1
	`, key)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallet.Record{}, wallet.ErrRecordNotFound
		}

		return wallet.Record{}, fmt.Errorf("get record by idempotency key: %w", err)
	}

	return rec, nil
}

func (r *recordsRepo) LockForUpdate(tx *sql.Tx, recordID string) (wallet.Record, error) {
	row := tx.QueryRow(`
		SELECT`+recordColumns+`
		FROM ledger_records
		WHERE id = $1
		FOR UPDATE
	`, recordID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallet.Record{}, wallet.ErrRecordNotFound
		}

		return wallet.Record{}, fmt.Errorf("lock record: %w", err)
	}

	return rec, nil
}

func (r *recordsRepo) SetStatus(tx *sql.Tx, recordID string, status wallet.Status) error {
	res, err := tx.Exec(`
		UPDATE ledger_records
		SET status = $2
		WHERE id = $1
	`, recordID, string(status))
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return wallet.ErrRecordNotFound
	}

	return nil
}
