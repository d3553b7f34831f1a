package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaiYadav1818/settlement-core/internal/alert"
	"github.com/SaiYadav1818/settlement-core/internal/audit"
	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
	"github.com/SaiYadav1818/settlement-core/internal/hashing"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockResolver struct {
	secret     hashing.Secret
	merchantID string
	err        error
	calls      int
}

func (m *mockResolver) ResolveSecret(_ context.Context, _ string) (hashing.Secret, string, error) {
	m.calls++
	return m.secret, m.merchantID, m.err
}

type captureSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *captureSink) Emit(_ context.Context, e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) last() audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

// ---------------------------------------------------------------------------

var testSecret = hashing.Secret{Prefix: "key-abc", Suffix: "salt-xyz"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validFields(t *testing.T) model.InboundFields {
	t.Helper()

	fields := model.InboundFields{
		model.FieldTxnid:       "TXN-1001",
		model.FieldStatus:      "success",
		model.FieldAmount:      "499.00",
		model.FieldDescription: "annual plan",
		model.FieldPayerName:   "Asha",
		model.FieldPayerEmail:  "asha@example.com",
		"udf1":                 "merchant-7",
		"udf2":                 "ORD-88",
	}

	digest, err := hashing.ComputeResponseDigest(testSecret, hashing.Params{
		Txnid:        fields.Txnid(),
		Amount:       fields.Amount(),
		Description:  fields.Description(),
		PayerName:    fields.PayerName(),
		PayerEmail:   fields.PayerEmail(),
		Status:       fields.Status(),
		CustomFields: fields.CustomFields(),
	})
	require.NoError(t, err)
	fields[model.FieldDigest] = digest
	return fields
}

func TestValidateOK(t *testing.T) {
	resolver := &mockResolver{secret: testSecret, merchantID: "merchant-7"}
	sink := &captureSink{}
	guard := NewGuard(resolver, sink, nil, testLogger())

	res, err := guard.Validate(context.Background(), validFields(t))
	require.NoError(t, err)

	assert.Equal(t, CodeOK, res.Code)
	assert.True(t, res.OK())
	assert.Equal(t, "merchant-7", res.MerchantID)
	assert.Equal(t, res.DigestComputed, res.DigestReceived)

	require.Len(t, sink.events, 1)
	assert.Equal(t, audit.EventVerificationOK, sink.last().Type)
}

func TestValidateHashMismatch(t *testing.T) {
	resolver := &mockResolver{secret: testSecret, merchantID: "merchant-7"}
	sink := &captureSink{}
	guard := NewGuard(resolver, sink, nil, testLogger())

	fields := validFields(t)
	fields[model.FieldAmount] = "1.00" // tampered after signing

	res, err := guard.Validate(context.Background(), fields)
	require.NoError(t, err)

	assert.Equal(t, CodeHashMismatch, res.Code)
	assert.False(t, res.OK())
	assert.NotEqual(t, res.DigestComputed, res.DigestReceived)

	// The mismatch event carries both digests and the full field set.
	require.Len(t, sink.events, 1)
	e := sink.last()
	assert.Equal(t, audit.EventHashMismatch, e.Type)
	assert.Equal(t, "TXN-1001", e.Txnid)
	assert.Equal(t, res.DigestReceived, e.DigestReceived)
	assert.Equal(t, res.DigestComputed, e.DigestComputed)
	assert.Equal(t, "1.00", e.Fields[model.FieldAmount])
}

type captureAlerter struct {
	alerts []alert.Alert
}

func (a *captureAlerter) Send(_ context.Context, al alert.Alert) error {
	a.alerts = append(a.alerts, al)
	return nil
}

func TestValidateHashMismatchAlerts(t *testing.T) {
	resolver := &mockResolver{secret: testSecret, merchantID: "merchant-7"}
	alerter := &captureAlerter{}
	guard := NewGuard(resolver, &captureSink{}, alerter, testLogger())

	fields := validFields(t)
	fields[model.FieldAmount] = "1.00"

	_, err := guard.Validate(context.Background(), fields)
	require.NoError(t, err)

	require.Len(t, alerter.alerts, 1)
	assert.Equal(t, alert.AlertTypeTamper, alerter.alerts[0].Type)
	assert.Equal(t, "merchant-7", alerter.alerts[0].MerchantID)
	assert.Equal(t, "TXN-1001", alerter.alerts[0].Txnid)
}

func TestValidateDigestCaseInsensitive(t *testing.T) {
	resolver := &mockResolver{secret: testSecret, merchantID: "merchant-7"}
	guard := NewGuard(resolver, &captureSink{}, nil, testLogger())

	fields := validFields(t)
	upper := make(model.InboundFields, len(fields))
	for k, v := range fields {
		upper[k] = v
	}
	upper[model.FieldDigest] = strings.ToUpper(fields.Digest())

	res, err := guard.Validate(context.Background(), upper)
	require.NoError(t, err)
	assert.Equal(t, CodeOK, res.Code)
}

func TestValidateMissingFields(t *testing.T) {
	resolver := &mockResolver{secret: testSecret, merchantID: "merchant-7"}
	sink := &captureSink{}
	guard := NewGuard(resolver, sink, nil, testLogger())

	res, err := guard.Validate(context.Background(), model.InboundFields{
		model.FieldTxnid: "TXN-1001",
	})
	require.NoError(t, err)

	assert.Equal(t, CodeMissingFields, res.Code)
	assert.Contains(t, res.Missing, model.FieldAmount)
	assert.Contains(t, res.Missing, model.FieldDigest)
	assert.Zero(t, resolver.calls, "no secret lookup before completeness passes")

	require.Len(t, sink.events, 1)
	assert.Equal(t, audit.EventMissingFields, sink.last().Type)
}

func TestValidateResolverError(t *testing.T) {
	resolver := &mockResolver{err: errors.New("directory down")}
	guard := NewGuard(resolver, &captureSink{}, nil, testLogger())

	_, err := guard.Validate(context.Background(), validFields(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve digest secret")
}
