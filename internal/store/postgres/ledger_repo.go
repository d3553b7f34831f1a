package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
	"github.com/SaiYadav1818/settlement-core/internal/store"
)

type LedgerRepo struct {
	db *DB
}

func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// Create inserts a new ledger entry. The UNIQUE (merchant_id, txnid)
// constraint is the race backstop for concurrent duplicate deliveries; a
// violation surfaces as store.ErrDuplicateEntry so the router can fall
// back to the duplicate path instead of failing.
func (r *LedgerRepo) Create(ctx context.Context, e *model.LedgerEntry) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (merchant_id, txnid, amount, status, settlement_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, e.MerchantID, e.Txnid, e.Amount.String(), e.Status, e.SettlementStatus,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEntry
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepo) FindByMerchantAndTxnid(ctx context.Context, merchantID, txnid string) (*model.LedgerEntry, error) {
	var (
		e      model.LedgerEntry
		amount string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, merchant_id, txnid, amount, status, settlement_status, created_at, updated_at
		FROM ledger_entries
		WHERE merchant_id = $1 AND txnid = $2
	`, merchantID, txnid).Scan(
		&e.ID, &e.MerchantID, &e.Txnid, &amount,
		&e.Status, &e.SettlementStatus, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ledger entry: %w", err)
	}
	parsed, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	e.Amount = parsed
	return &e, nil
}

// UpdateStatus rewrites only the mirrored status and updated_at;
// created_at and settlement_status are preserved.
func (r *LedgerRepo) UpdateStatus(ctx context.Context, merchantID, txnid string, status model.TxnStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ledger_entries
		SET status = $1, updated_at = now()
		WHERE merchant_id = $2 AND txnid = $3
	`, status, merchantID, txnid)
	if err != nil {
		return fmt.Errorf("update ledger status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("ledger entry (%s, %s) not found", merchantID, txnid)
	}
	return nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse stored amount %q: %w", raw, err)
	}
	return d, nil
}
