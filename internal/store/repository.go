package store

import (
	"context"
	"errors"
	"time"

	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
)

// ErrDuplicateEntry is returned by create operations when the storage
// uniqueness constraint rejects the row. Callers treat it as "the row
// already exists" and re-read, never as a fatal error.
var ErrDuplicateEntry = errors.New("duplicate entry")

// TransactionRepository provides access to gateway transaction records.
// Rows are insert-then-update only; nothing deletes them.
type TransactionRepository interface {
	Create(ctx context.Context, t *model.Transaction) error
	FindByTxnid(ctx context.Context, txnid string) (*model.Transaction, error)
	// UpdateStatusIfCurrentlyIn transitions txnid to next only while the
	// stored status is still one of expected at write time, and returns
	// the number of rows updated (0 or 1).
	UpdateStatusIfCurrentlyIn(ctx context.Context, txnid string, expected []model.TxnStatus, next model.TxnStatus, reason string) (int64, error)
	// UpdateStatusIfStaleIn is the sweep variant of the guarded
	// transition: in addition to the status pre-condition, the write only
	// lands while updated_at is still older than olderThan. A transaction
	// that made progress after the stale read keeps its fresh status.
	UpdateStatusIfStaleIn(ctx context.Context, txnid string, expected []model.TxnStatus, olderThan time.Time, next model.TxnStatus, reason string) (int64, error)
	FindStale(ctx context.Context, statuses []model.TxnStatus, olderThan time.Time) ([]model.Transaction, error)
}

// LedgerRepository provides access to merchant ledger entries, keyed by
// (merchant_id, txnid).
type LedgerRepository interface {
	Create(ctx context.Context, e *model.LedgerEntry) error
	FindByMerchantAndTxnid(ctx context.Context, merchantID, txnid string) (*model.LedgerEntry, error)
	UpdateStatus(ctx context.Context, merchantID, txnid string, status model.TxnStatus) error
}

// MerchantRepository provides read access to the merchant directory.
type MerchantRepository interface {
	FindByID(ctx context.Context, id string) (*model.Merchant, error)
	ListActive(ctx context.Context) ([]model.Merchant, error)
}
