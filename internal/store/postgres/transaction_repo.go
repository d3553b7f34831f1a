package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
	"github.com/SaiYadav1818/settlement-core/internal/store"
)

type TransactionRepo struct {
	db *DB
}

func NewTransactionRepo(db *DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

const transactionColumns = `
	id, txnid, amount, status, routing_key, order_ref, custom_fields,
	digest_received, digest_verified, raw_payload, failure_reason,
	created_at, updated_at`

// Create inserts a new transaction. created_at is stamped exactly once
// by the database and never rewritten afterwards. A txnid collision
// surfaces as store.ErrDuplicateEntry.
func (r *TransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO transactions (txnid, amount, status, routing_key, order_ref, custom_fields,
			digest_received, digest_verified, raw_payload, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, t.Txnid, t.Amount.String(), t.Status, t.RoutingKey, t.OrderRef,
		pq.Array(t.CustomFields[:]), t.DigestReceived, t.DigestVerified,
		[]byte(t.RawPayload), t.FailureReason,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateEntry
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepo) FindByTxnid(ctx context.Context, txnid string) (*model.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE txnid = $1
	`, txnid)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return t, nil
}

// UpdateStatusIfCurrentlyIn performs the guarded forward transition: the
// write only lands while the stored status is still one of expected,
// which closes the race between a late confirmation and the sweep.
// updated_at is refreshed on every landed write.
func (r *TransactionRepo) UpdateStatusIfCurrentlyIn(
	ctx context.Context,
	txnid string,
	expected []model.TxnStatus,
	next model.TxnStatus,
	reason string,
) (int64, error) {
	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1,
			failure_reason = COALESCE($2, failure_reason),
			updated_at = now()
		WHERE txnid = $3 AND status = ANY($4)
	`, next, reasonArg, txnid, pq.Array(statusStrings(expected)))
	if err != nil {
		return 0, fmt.Errorf("conditional status update: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return rows, nil
}

// UpdateStatusIfStaleIn transitions txnid to next only while the stored
// status is still one of expected AND updated_at predates olderThan.
// Any landed write since the stale read refreshes updated_at, so a
// transaction that progressed during the sweep window is left alone.
func (r *TransactionRepo) UpdateStatusIfStaleIn(
	ctx context.Context,
	txnid string,
	expected []model.TxnStatus,
	olderThan time.Time,
	next model.TxnStatus,
	reason string,
) (int64, error) {
	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1,
			failure_reason = COALESCE($2, failure_reason),
			updated_at = now()
		WHERE txnid = $3 AND status = ANY($4) AND updated_at < $5
	`, next, reasonArg, txnid, pq.Array(statusStrings(expected)), olderThan)
	if err != nil {
		return 0, fmt.Errorf("conditional stale update: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return rows, nil
}

func (r *TransactionRepo) FindStale(
	ctx context.Context,
	statuses []model.TxnStatus,
	olderThan time.Time,
) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at
	`, pq.Array(statusStrings(statuses)), olderThan)
	if err != nil {
		return nil, fmt.Errorf("query stale transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		t          model.Transaction
		amount     string
		slots      pq.StringArray
		rawPayload []byte
	)
	if err := row.Scan(
		&t.ID, &t.Txnid, &amount, &t.Status, &t.RoutingKey, &t.OrderRef,
		&slots, &t.DigestReceived, &t.DigestVerified, &rawPayload,
		&t.FailureReason, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	t.Amount = parsed
	for i := 0; i < model.CustomFieldCount && i < len(slots); i++ {
		t.CustomFields[i] = slots[i]
	}
	t.RawPayload = rawPayload
	return &t, nil
}

func statusStrings(statuses []model.TxnStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
