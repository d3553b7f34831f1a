package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/SaiYadav1818/settlement-core/internal/circuitbreaker"
	"github.com/SaiYadav1818/settlement-core/internal/metrics"
)

// StreamPublisher is satisfied by the Redis Streams transport.
type StreamPublisher interface {
	Publish(ctx context.Context, values map[string]any) error
}

// StreamSink publishes audit events to a stream transport behind a
// circuit breaker: a down backend degrades to dropped stream copies
// (the log sink still has the event) instead of stalling deliveries.
type StreamSink struct {
	publisher StreamPublisher
	breaker   *circuitbreaker.Breaker
	logger    *slog.Logger
}

func NewStreamSink(publisher StreamPublisher, logger *slog.Logger) *StreamSink {
	scoped := logger.With("component", "audit_stream")
	return &StreamSink{
		publisher: publisher,
		logger:    scoped,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			OnStateChange: func(from, to circuitbreaker.State) {
				scoped.Warn("audit stream circuit state changed",
					"from", from.String(), "to", to.String())
			},
		}),
	}
}

func (s *StreamSink) Emit(ctx context.Context, e Event) {
	if err := s.breaker.Allow(); err != nil {
		metrics.AuditStreamPublishFailures.Inc()
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.Warn("failed to marshal audit event", "error", err)
		return
	}

	if err := s.publisher.Publish(ctx, map[string]any{
		"type":    string(e.Type),
		"stage":   string(e.Stage),
		"txnid":   e.Txnid,
		"payload": string(payload),
	}); err != nil {
		s.breaker.RecordFailure()
		metrics.AuditStreamPublishFailures.Inc()
		s.logger.Warn("failed to publish audit event", "type", e.Type, "error", err)
		return
	}
	s.breaker.RecordSuccess()
}
