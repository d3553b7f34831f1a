package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is the gateway-facing payment record. Identified by Txnid,
// which is globally unique and immutable once set. Rows are never
// deleted; stale transactions are reconciled to a terminal status.
type Transaction struct {
	ID             uuid.UUID       `db:"id"`
	Txnid          string          `db:"txnid"`
	Amount         decimal.Decimal `db:"amount"`
	Status         TxnStatus       `db:"status"`
	RoutingKey     string          `db:"routing_key"`
	OrderRef       string          `db:"order_ref"`
	CustomFields   CustomFields    `db:"custom_fields"`
	DigestReceived string          `db:"digest_received"`
	DigestVerified bool            `db:"digest_verified"`
	RawPayload     json.RawMessage `db:"raw_payload"`
	FailureReason  *string         `db:"failure_reason"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}
