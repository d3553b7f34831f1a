package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is the merchant settlement bookkeeping record, one per
// (merchant, txnid) pair. At most one entry per composite key, enforced
// both by a lookup-before-write and by the storage-level uniqueness
// constraint as the race backstop.
type LedgerEntry struct {
	ID               uuid.UUID        `db:"id"`
	MerchantID       string           `db:"merchant_id"`
	Txnid            string           `db:"txnid"`
	Amount           decimal.Decimal  `db:"amount"`
	Status           TxnStatus        `db:"status"`
	SettlementStatus SettlementStatus `db:"settlement_status"`
	CreatedAt        time.Time        `db:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at"`
}
