package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/questline/walletcore/internal/wallet"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

func (r *recordsRepo) ListByAccount(ctx context.Context, accountID string, f wallet.Filter, p wallet.Page) ([]wallet.Record, error) {
	var (
		where = []string{"account_id = $1"}
		args  = []any{accountID}
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Kind != "" {
		where = append(where, "kind = "+arg(string(f.Kind)))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < "+arg(f.To))
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT` + recordColumns + `
		FROM ledger_records
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, id DESC
		LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var recs []wallet.Record

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		recs = append(recs, rec)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return recs, nil
}

func (r *recordsRepo) StatsByAccount(ctx context.Context, accountID string) (int64, map[wallet.Status]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM ledger_records
		WHERE account_id = $1
		GROUP BY status
	`, accountID)
	if err != nil {
		return 0, nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	var total int64

	byStatus := make(map[wallet.Status]int64)

	for rows.Next() {
		var (
			status string
			count  int64
		)

		err = rows.Scan(&status, &count)
		if err != nil {
			return 0, nil, fmt.Errorf("scan stats: %w", err)
		}

		byStatus[wallet.Status(status)] = count
		total += count
	}

	err = rows.Err()
	if err != nil {
		return 0, nil, fmt.Errorf("iterate stats: %w", err)
	}

	return total, byStatus, nil
}
