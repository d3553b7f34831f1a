// Package routing turns a verified transaction into at most one ledger
// entry per (merchant, txnid) pair, absorbing duplicate and out-of-order
// gateway deliveries.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SaiYadav1818/settlement-core/internal/audit"
	"github.com/SaiYadav1818/settlement-core/internal/cache"
	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
	"github.com/SaiYadav1818/settlement-core/internal/metrics"
	"github.com/SaiYadav1818/settlement-core/internal/store"
)

// Outcome is the typed result of a routing call. Callers switch on it
// exhaustively; there is no boolean to forget a case behind.
type Outcome string

const (
	OutcomeRouted           Outcome = "ROUTED"
	OutcomeDuplicateSkipped Outcome = "DUPLICATE_SKIPPED"
	OutcomeStatusUpdated    Outcome = "STATUS_UPDATED"
	OutcomeNoRoutingKey     Outcome = "NO_ROUTING_KEY"
	OutcomeMerchantUnknown  Outcome = "MERCHANT_UNKNOWN"
	OutcomeMerchantInactive Outcome = "MERCHANT_INACTIVE"
)

// Result describes what routing did with a transaction.
type Result struct {
	Outcome    Outcome
	MerchantID string
	Entry      *model.LedgerEntry
}

// Routed reports whether the transaction is (now or already) reflected
// in the ledger. Duplicate deliveries are idempotent successes, not
// errors; the three skip outcomes are recoverable business conditions.
func (r Result) Routed() bool {
	switch r.Outcome {
	case OutcomeRouted, OutcomeDuplicateSkipped, OutcomeStatusUpdated:
		return true
	}
	return false
}

// Router resolves the owning merchant and maintains ledger entries.
type Router struct {
	merchants store.MerchantRepository
	ledger    store.LedgerRepository
	cache     *cache.LRU[string, model.Merchant]
	sink      audit.Sink
	logger    *slog.Logger
}

func NewRouter(
	merchants store.MerchantRepository,
	ledger store.LedgerRepository,
	merchantCache *cache.LRU[string, model.Merchant],
	sink audit.Sink,
	logger *slog.Logger,
) *Router {
	return &Router{
		merchants: merchants,
		ledger:    ledger,
		cache:     merchantCache,
		sink:      sink,
		logger:    logger.With("component", "router"),
	}
}

// Route creates or updates the ledger entry for a verified transaction.
// Skip outcomes never roll back the already-persisted transaction; they
// only suppress ledger bookkeeping and are surfaced for operators.
func (r *Router) Route(ctx context.Context, txn *model.Transaction) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.RoutingDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := r.route(ctx, txn)
	if err != nil {
		return res, err
	}

	metrics.RoutingOutcomesTotal.WithLabelValues(string(res.Outcome)).Inc()

	e := audit.NewEvent(audit.EventRoutingOutcome, audit.StageRouting)
	e.MerchantID = res.MerchantID
	e.Txnid = txn.Txnid
	e.Amount = txn.Amount.String()
	e.Outcome = string(res.Outcome)
	r.sink.Emit(ctx, e)

	return res, nil
}

func (r *Router) route(ctx context.Context, txn *model.Transaction) (Result, error) {
	routingKey := txn.RoutingKey
	if routingKey == "" {
		// Not merchant-scoped; recoverable, nothing to book.
		r.logger.Info("transaction has no routing key", "txnid", txn.Txnid)
		return Result{Outcome: OutcomeNoRoutingKey}, nil
	}

	merchant, err := r.lookupMerchant(ctx, routingKey)
	if err != nil {
		return Result{}, err
	}
	if merchant == nil {
		// Data problem: directory has no such merchant.
		r.logger.Warn("routing key resolves to no merchant",
			"txnid", txn.Txnid, "routing_key", routingKey)
		return Result{Outcome: OutcomeMerchantUnknown, MerchantID: routingKey}, nil
	}
	if !merchant.IsActive {
		// Business-state problem: merchant exists but is switched off.
		r.logger.Warn("merchant is inactive",
			"txnid", txn.Txnid, "merchant_id", merchant.ID)
		return Result{Outcome: OutcomeMerchantInactive, MerchantID: merchant.ID}, nil
	}

	existing, err := r.ledger.FindByMerchantAndTxnid(ctx, merchant.ID, txn.Txnid)
	if err != nil {
		return Result{}, fmt.Errorf("ledger lookup (%s, %s): %w", merchant.ID, txn.Txnid, err)
	}

	if existing == nil {
		entry := &model.LedgerEntry{
			MerchantID:       merchant.ID,
			Txnid:            txn.Txnid,
			Amount:           txn.Amount,
			Status:           txn.Status,
			SettlementStatus: model.SettlementPending,
		}
		err := r.ledger.Create(ctx, entry)
		if err == nil {
			r.logger.Info("ledger entry created",
				"merchant_id", merchant.ID, "txnid", txn.Txnid, "status", txn.Status)
			return Result{Outcome: OutcomeRouted, MerchantID: merchant.ID, Entry: entry}, nil
		}
		if !errors.Is(err, store.ErrDuplicateEntry) {
			return Result{}, fmt.Errorf("create ledger entry (%s, %s): %w", merchant.ID, txn.Txnid, err)
		}
		// A concurrent delivery of the same callback won the insert race;
		// the uniqueness constraint is the backstop the existence check
		// cannot be. Re-read and fall through to the duplicate/update path.
		existing, err = r.ledger.FindByMerchantAndTxnid(ctx, merchant.ID, txn.Txnid)
		if err != nil {
			return Result{}, fmt.Errorf("re-read ledger entry after conflict (%s, %s): %w", merchant.ID, txn.Txnid, err)
		}
		if existing == nil {
			return Result{}, fmt.Errorf("ledger entry (%s, %s) vanished after unique conflict", merchant.ID, txn.Txnid)
		}
	}

	if existing.Status == txn.Status {
		// Duplicate delivery: idempotent success, no write.
		r.logger.Warn("duplicate delivery, ledger entry unchanged",
			"merchant_id", merchant.ID, "txnid", txn.Txnid, "status", txn.Status)
		return Result{Outcome: OutcomeDuplicateSkipped, MerchantID: merchant.ID, Entry: existing}, nil
	}

	if err := r.ledger.UpdateStatus(ctx, merchant.ID, txn.Txnid, txn.Status); err != nil {
		return Result{}, fmt.Errorf("update ledger status (%s, %s): %w", merchant.ID, txn.Txnid, err)
	}
	r.logger.Info("ledger entry status transitioned",
		"merchant_id", merchant.ID, "txnid", txn.Txnid,
		"from", existing.Status, "to", txn.Status)

	updated := *existing
	updated.Status = txn.Status
	return Result{Outcome: OutcomeStatusUpdated, MerchantID: merchant.ID, Entry: &updated}, nil
}

func (r *Router) lookupMerchant(ctx context.Context, id string) (*model.Merchant, error) {
	if m, ok := r.cache.Get(id); ok {
		metrics.MerchantCacheHits.Inc()
		return &m, nil
	}
	metrics.MerchantCacheMisses.Inc()

	m, err := r.merchants.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("merchant lookup %q: %w", id, err)
	}
	if m != nil {
		r.cache.Put(id, *m)
	}
	return m, nil
}
