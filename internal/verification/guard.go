// Package verification gates all state changes behind authenticity and
// completeness of the inbound callback. The guard is pure: it decides
// and audits, and never mutates transaction or ledger state.
package verification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SaiYadav1818/settlement-core/internal/alert"
	"github.com/SaiYadav1818/settlement-core/internal/audit"
	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
	"github.com/SaiYadav1818/settlement-core/internal/hashing"
	"github.com/SaiYadav1818/settlement-core/internal/metrics"
)

// Code is the verification decision.
type Code string

const (
	CodeOK            Code = "OK"
	CodeMissingFields Code = "MISSING_FIELDS"
	CodeHashMismatch  Code = "HASH_MISMATCH"
)

// Result carries the decision plus the material needed for auditing.
type Result struct {
	Code           Code
	Missing        []string
	MerchantID     string
	DigestReceived string
	DigestComputed string
}

// OK reports whether the callback passed verification.
func (r Result) OK() bool {
	return r.Code == CodeOK
}

// SecretResolver maps a routing key to the digest secret it must be
// verified against, returning the owning merchant id when known.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, routingKey string) (hashing.Secret, string, error)
}

// Guard validates inbound callbacks.
type Guard struct {
	secrets SecretResolver
	sink    audit.Sink
	alerter alert.Alerter
	logger  *slog.Logger
}

func NewGuard(secrets SecretResolver, sink audit.Sink, alerter alert.Alerter, logger *slog.Logger) *Guard {
	return &Guard{
		secrets: secrets,
		sink:    sink,
		alerter: alerter,
		logger:  logger.With("component", "verification"),
	}
}

// Validate decides OK / MISSING_FIELDS / HASH_MISMATCH for the inbound
// field set. Every mismatch is emitted to the audit sink with both
// digests and the full field set.
func (g *Guard) Validate(ctx context.Context, fields model.InboundFields) (Result, error) {
	if missing := fields.MissingMandatory(); len(missing) > 0 {
		res := Result{Code: CodeMissingFields, Missing: missing}
		metrics.VerificationDecisionsTotal.WithLabelValues(string(res.Code)).Inc()

		e := audit.NewEvent(audit.EventMissingFields, audit.StageVerification)
		e.Txnid = fields.Txnid()
		e.Outcome = fmt.Sprintf("missing %v", missing)
		g.sink.Emit(ctx, e)
		return res, nil
	}

	routingKey := fields.CustomFields().RoutingKey()
	secret, merchantID, err := g.secrets.ResolveSecret(ctx, routingKey)
	if err != nil {
		return Result{}, fmt.Errorf("resolve digest secret: %w", err)
	}

	computed, err := hashing.ComputeResponseDigest(secret, hashing.Params{
		Txnid:        fields.Txnid(),
		Amount:       fields.Amount(),
		Description:  fields.Description(),
		PayerName:    fields.PayerName(),
		PayerEmail:   fields.PayerEmail(),
		Status:       fields.Status(),
		CustomFields: fields.CustomFields(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("compute response digest: %w", err)
	}

	res := Result{
		MerchantID:     merchantID,
		DigestReceived: fields.Digest(),
		DigestComputed: computed,
	}

	if !hashing.Verify(fields.Digest(), computed) {
		res.Code = CodeHashMismatch
		metrics.VerificationDecisionsTotal.WithLabelValues(string(res.Code)).Inc()
		metrics.HashMismatchesTotal.WithLabelValues(merchantID).Inc()

		e := audit.NewEvent(audit.EventHashMismatch, audit.StageVerification)
		e.MerchantID = merchantID
		e.Txnid = fields.Txnid()
		e.Amount = fields.Amount()
		e.DigestReceived = fields.Digest()
		e.DigestComputed = computed
		e.Fields = map[string]string(fields)
		g.sink.Emit(ctx, e)

		if g.alerter != nil {
			_ = g.alerter.Send(ctx, alert.Alert{
				Type:       alert.AlertTypeTamper,
				MerchantID: merchantID,
				Txnid:      fields.Txnid(),
				Title:      "Callback digest mismatch",
				Message:    "inbound callback failed digest verification",
				Fields: map[string]string{
					"amount":          fields.Amount(),
					"digest_received": fields.Digest(),
					"digest_computed": computed,
				},
			})
		}
		return res, nil
	}

	res.Code = CodeOK
	metrics.VerificationDecisionsTotal.WithLabelValues(string(res.Code)).Inc()

	e := audit.NewEvent(audit.EventVerificationOK, audit.StageVerification)
	e.MerchantID = merchantID
	e.Txnid = fields.Txnid()
	e.Amount = fields.Amount()
	g.sink.Emit(ctx, e)
	return res, nil
}
