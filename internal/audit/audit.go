// Package audit defines the structured event sink that every
// verification decision and routing outcome flows through. Emission is
// best-effort on side channels but the log sink always records the
// event; for digest mismatches this is the system's sole
// tamper-detection surface.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SaiYadav1818/settlement-core/internal/metrics"
)

// EventType identifies what the event records.
type EventType string

const (
	EventVerificationOK      EventType = "VERIFICATION_OK"
	EventMissingFields       EventType = "MISSING_FIELDS"
	EventHashMismatch        EventType = "HASH_MISMATCH"
	EventRoutingOutcome      EventType = "ROUTING_OUTCOME"
	EventSweepRun            EventType = "SWEEP_RUN"
	EventSweepTransition     EventType = "SWEEP_TRANSITION"
)

// Stage attributes an event to the pipeline stage that produced it.
type Stage string

const (
	StageVerification   Stage = "verification"
	StageRouting        Stage = "routing"
	StageReconciliation Stage = "reconciliation"
)

// Event is a single structured audit record.
type Event struct {
	ID             uuid.UUID         `json:"id"`
	Type           EventType         `json:"type"`
	Stage          Stage             `json:"stage"`
	MerchantID     string            `json:"merchant_id,omitempty"`
	Txnid          string            `json:"txnid,omitempty"`
	Amount         string            `json:"amount,omitempty"`
	DigestReceived string            `json:"digest_received,omitempty"`
	DigestComputed string            `json:"digest_computed,omitempty"`
	Outcome        string            `json:"outcome,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
	At             time.Time         `json:"at"`
}

// NewEvent creates an event with id and timestamp populated.
func NewEvent(typ EventType, stage Stage) Event {
	return Event{
		ID:    uuid.New(),
		Type:  typ,
		Stage: stage,
		At:    time.Now().UTC(),
	}
}

// Sink receives audit events. Implementations must not block callback
// processing on slow backends.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// LogSink writes audit events to the structured log. Integrity events
// (hash mismatches) are logged at ERROR so they are distinguishable from
// routine traffic; everything else at INFO.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "audit")}
}

func (s *LogSink) Emit(ctx context.Context, e Event) {
	metrics.AuditEventsTotal.WithLabelValues(string(e.Type)).Inc()

	attrs := []any{
		"audit_id", e.ID.String(),
		"stage", string(e.Stage),
		"merchant_id", e.MerchantID,
		"txnid", e.Txnid,
		"amount", e.Amount,
		"outcome", e.Outcome,
	}
	if e.DigestReceived != "" || e.DigestComputed != "" {
		attrs = append(attrs,
			"digest_received", e.DigestReceived,
			"digest_computed", e.DigestComputed,
		)
	}
	for k, v := range e.Fields {
		attrs = append(attrs, "field_"+k, v)
	}

	switch e.Type {
	case EventHashMismatch:
		s.logger.ErrorContext(ctx, "audit: digest mismatch", attrs...)
	case EventMissingFields:
		s.logger.WarnContext(ctx, "audit: "+string(e.Type), attrs...)
	default:
		s.logger.InfoContext(ctx, "audit: "+string(e.Type), attrs...)
	}
}

// MultiSink fans events out to every sink.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m.sinks {
		s.Emit(ctx, e)
	}
}
