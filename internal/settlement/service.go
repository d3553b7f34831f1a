// Package settlement orchestrates the inbound data flow: flat callback
// fields through the verification guard, into an at-most-once
// transaction record, and on to the ledger router.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
	"github.com/SaiYadav1818/settlement-core/internal/metrics"
	"github.com/SaiYadav1818/settlement-core/internal/routing"
	"github.com/SaiYadav1818/settlement-core/internal/store"
	"github.com/SaiYadav1818/settlement-core/internal/tracing"
	"github.com/SaiYadav1818/settlement-core/internal/verification"
)

// Stage attributes a processing result to the stage that produced it.
type Stage string

const (
	StageVerification Stage = "verification"
	StageRouting      Stage = "routing"
)

// InvalidCallbackError rejects structurally invalid first-time input:
// missing or malformed mandatory fields. Nothing is persisted.
type InvalidCallbackError struct {
	Missing []string
	Reason  string
}

func (e *InvalidCallbackError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("invalid callback: missing fields %s", strings.Join(e.Missing, ", "))
	}
	return "invalid callback: " + e.Reason
}

// ProcessResult reports what happened to one inbound callback.
type ProcessResult struct {
	Stage        Stage
	Verification verification.Result
	Transaction  *model.Transaction
	Routing      *routing.Result
}

// Router is the ledger routing dependency.
type Router interface {
	Route(ctx context.Context, txn *model.Transaction) (routing.Result, error)
}

// Verifier is the verification guard dependency.
type Verifier interface {
	Validate(ctx context.Context, fields model.InboundFields) (verification.Result, error)
}

// Service wires guard, transaction persistence, and router together.
type Service struct {
	guard  Verifier
	txns   store.TransactionRepository
	router Router
	logger *slog.Logger
	tracer trace.Tracer
}

func NewService(
	guard Verifier,
	txns store.TransactionRepository,
	router Router,
	logger *slog.Logger,
) *Service {
	return &Service{
		guard:  guard,
		txns:   txns,
		router: router,
		logger: logger.With("component", "settlement"),
		tracer: tracing.Tracer("settlement"),
	}
}

// Process handles one inbound gateway callback.
//
//   - Missing mandatory fields reject the callback before any state
//     change; nothing is persisted.
//   - A digest mismatch still records the transaction (audit value) as
//     HASH_MISMATCH with DigestVerified=false; the router is never
//     invoked for it.
//   - A verified callback is recorded (or, for a repeated delivery, its
//     status conditionally advanced) and then routed.
func (s *Service) Process(ctx context.Context, fields model.InboundFields) (*ProcessResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "settlement.Process",
		trace.WithAttributes(attribute.String("txnid", fields.Txnid())))
	defer span.End()
	defer func() {
		metrics.CallbackDuration.Observe(time.Since(start).Seconds())
	}()

	vres, err := s.guard.Validate(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("verification: %w", err)
	}
	span.SetAttributes(attribute.String("verification.code", string(vres.Code)))

	result := &ProcessResult{Stage: StageVerification, Verification: vres}

	if vres.Code == verification.CodeMissingFields {
		metrics.CallbacksProcessedTotal.WithLabelValues(string(StageVerification)).Inc()
		return result, &InvalidCallbackError{Missing: vres.Missing}
	}

	txn, err := s.buildTransaction(fields, vres)
	if err != nil {
		metrics.CallbacksProcessedTotal.WithLabelValues(string(StageVerification)).Inc()
		return result, err
	}

	persisted, err := s.persistTransaction(ctx, txn)
	if err != nil {
		return result, fmt.Errorf("persist transaction %s: %w", txn.Txnid, err)
	}
	result.Transaction = persisted

	if vres.Code == verification.CodeHashMismatch {
		// Recorded for audit, flagged unverified; never routed.
		metrics.CallbacksProcessedTotal.WithLabelValues(string(StageVerification)).Inc()
		return result, nil
	}

	rres, err := s.router.Route(ctx, persisted)
	if err != nil {
		return result, fmt.Errorf("routing %s: %w", persisted.Txnid, err)
	}
	result.Stage = StageRouting
	result.Routing = &rres
	span.SetAttributes(attribute.String("routing.outcome", string(rres.Outcome)))

	metrics.CallbacksProcessedTotal.WithLabelValues(string(StageRouting)).Inc()
	return result, nil
}

func (s *Service) buildTransaction(fields model.InboundFields, vres verification.Result) (*model.Transaction, error) {
	amount, err := decimal.NewFromString(fields.Amount())
	if err != nil {
		return nil, &InvalidCallbackError{Reason: fmt.Sprintf("malformed amount %q", fields.Amount())}
	}

	status := model.TxnStatusHashMismatch
	verified := false
	if vres.Code == verification.CodeOK {
		parsed, ok := model.ParseTxnStatus(fields.Status())
		if !ok {
			return nil, &InvalidCallbackError{Reason: fmt.Sprintf("unrecognized status %q", fields.Status())}
		}
		status = parsed
		verified = true
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("snapshot payload: %w", err)
	}

	cf := fields.CustomFields()
	return &model.Transaction{
		Txnid:          fields.Txnid(),
		Amount:         amount,
		Status:         status,
		RoutingKey:     cf.RoutingKey(),
		OrderRef:       cf.OrderRef(),
		CustomFields:   cf,
		DigestReceived: fields.Digest(),
		DigestVerified: verified,
		RawPayload:     raw,
	}, nil
}

// persistTransaction creates the transaction on first delivery. A
// repeated delivery only advances status and updated_at, guarded so the
// status graph stays forward-only even under concurrent deliveries.
func (s *Service) persistTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	err := s.txns.Create(ctx, txn)
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, store.ErrDuplicateEntry) {
		return nil, err
	}

	expected := model.TransitionSourcesTo(txn.Status)
	if len(expected) > 0 {
		rows, err := s.txns.UpdateStatusIfCurrentlyIn(ctx, txn.Txnid, expected, txn.Status, "")
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			s.logger.Warn("repeated delivery did not advance status",
				"txnid", txn.Txnid, "delivered_status", txn.Status)
		}
	}

	stored, err := s.txns.FindByTxnid(ctx, txn.Txnid)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("transaction %s vanished after duplicate insert", txn.Txnid)
	}
	return stored, nil
}
