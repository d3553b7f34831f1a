package model

import "strings"

// TxnStatus is the lifecycle status of a payment transaction.
type TxnStatus string

const (
	TxnStatusInitiated    TxnStatus = "INITIATED"
	TxnStatusProcessing   TxnStatus = "PROCESSING"
	TxnStatusSuccess      TxnStatus = "SUCCESS"
	TxnStatusFailed       TxnStatus = "FAILED"
	TxnStatusHashMismatch TxnStatus = "HASH_MISMATCH"
	TxnStatusCancelled    TxnStatus = "CANCELLED"
)

func (s TxnStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transition is expected from s.
func (s TxnStatus) Terminal() bool {
	switch s {
	case TxnStatusSuccess, TxnStatusFailed, TxnStatusHashMismatch, TxnStatusCancelled:
		return true
	}
	return false
}

// transitions is the forward-only status graph. A status not present here
// is terminal.
var transitions = map[TxnStatus][]TxnStatus{
	TxnStatusInitiated: {
		TxnStatusProcessing, TxnStatusSuccess, TxnStatusFailed,
		TxnStatusHashMismatch, TxnStatusCancelled,
	},
	TxnStatusProcessing: {
		TxnStatusSuccess, TxnStatusFailed,
	},
}

// CanTransitionTo reports whether s may move forward to next.
func (s TxnStatus) CanTransitionTo(next TxnStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// TransitionSourcesTo returns every status from which next is reachable.
// Conditional status updates use this as the expected pre-state set so a
// write only lands if the stored status still permits the transition.
func TransitionSourcesTo(next TxnStatus) []TxnStatus {
	var sources []TxnStatus
	for from, targets := range transitions {
		for _, t := range targets {
			if t == next {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// ParseTxnStatus maps a raw gateway status string onto the status enum.
// Gateways report lowercase free-form values ("success", "failure", ...).
func ParseTxnStatus(raw string) (TxnStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "initiated":
		return TxnStatusInitiated, true
	case "pending", "processing", "in progress":
		return TxnStatusProcessing, true
	case "success", "succeeded", "captured":
		return TxnStatusSuccess, true
	case "failure", "failed":
		return TxnStatusFailed, true
	case "cancelled", "canceled", "usercancelled":
		return TxnStatusCancelled, true
	}
	return "", false
}

// SettlementStatus tracks merchant-side settlement of a ledger entry,
// independent of the mirrored transaction status.
type SettlementStatus string

const (
	SettlementPending  SettlementStatus = "PENDING"
	SettlementSettled  SettlementStatus = "SETTLED"
	SettlementFailed   SettlementStatus = "FAILED"
	SettlementReversed SettlementStatus = "REVERSED"
)

func (s SettlementStatus) String() string {
	return string(s)
}
