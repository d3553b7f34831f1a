package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
)

func testSecret() Secret {
	return Secret{Prefix: "MERCHANT_KEY", Suffix: "MERCHANT_SALT"}
}

func testParams() Params {
	var cf model.CustomFields
	cf[0] = "MERCHANT_A"
	cf[1] = "ORDER-42"
	return Params{
		Txnid:        "TXN1",
		Amount:       "1000.00",
		Description:  "subscription",
		PayerName:    "Asha",
		PayerEmail:   "asha@example.com",
		Status:       "success",
		CustomFields: cf,
	}
}

func TestComputeResponseDigest_Deterministic(t *testing.T) {
	first, err := ComputeResponseDigest(testSecret(), testParams())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := ComputeResponseDigest(testSecret(), testParams())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Len(t, first, 128) // hex-encoded SHA-512
}

func TestComputeResponseDigest_SingleFieldSensitivity(t *testing.T) {
	base, err := ComputeResponseDigest(testSecret(), testParams())
	require.NoError(t, err)

	mutations := map[string]func(*Params){
		"txnid":       func(p *Params) { p.Txnid = "TXN2" },
		"amount":      func(p *Params) { p.Amount = "1000.01" },
		"description": func(p *Params) { p.Description = "subscription!" },
		"payer_name":  func(p *Params) { p.PayerName = "Asya" },
		"payer_email": func(p *Params) { p.PayerEmail = "asha@example.org" },
		"status":      func(p *Params) { p.Status = "failure" },
		"udf1":        func(p *Params) { p.CustomFields[0] = "MERCHANT_B" },
		"udf10":       func(p *Params) { p.CustomFields[9] = "x" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := testParams()
			mutate(&p)
			d, err := ComputeResponseDigest(testSecret(), p)
			require.NoError(t, err)
			assert.NotEqual(t, base, d)
		})
	}
}

func TestRequestAndResponseDigestsDiffer(t *testing.T) {
	// Same fields, same secret: the two constructions must never collide,
	// otherwise a captured request digest would replay as a response.
	req, err := ComputeRequestDigest(testSecret(), testParams())
	require.NoError(t, err)
	resp, err := ComputeResponseDigest(testSecret(), testParams())
	require.NoError(t, err)
	assert.NotEqual(t, req, resp)
}

func TestComputeRequestDigest_EmptySlotsKeepPosition(t *testing.T) {
	p := testParams()
	p.CustomFields = model.CustomFields{}
	withEmpty, err := ComputeRequestDigest(testSecret(), p)
	require.NoError(t, err)

	p.CustomFields[4] = "udf5-value"
	withSlot, err := ComputeRequestDigest(testSecret(), p)
	require.NoError(t, err)
	assert.NotEqual(t, withEmpty, withSlot)
}

func TestComputeResponseDigest_MissingMandatoryFailsClosed(t *testing.T) {
	for _, field := range []string{"txnid", "status", "amount"} {
		t.Run(field, func(t *testing.T) {
			p := testParams()
			switch field {
			case "txnid":
				p.Txnid = ""
			case "status":
				p.Status = ""
			case "amount":
				p.Amount = " "
			}
			_, err := ComputeResponseDigest(testSecret(), p)
			var missing *MissingFieldError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, field, missing.Field)
		})
	}
}

func TestComputeRequestDigest_StatusNotMandatory(t *testing.T) {
	p := testParams()
	p.Status = ""
	_, err := ComputeRequestDigest(testSecret(), p)
	require.NoError(t, err)
}

func TestVerify(t *testing.T) {
	d, err := ComputeResponseDigest(testSecret(), testParams())
	require.NoError(t, err)

	assert.True(t, Verify(d, d))
	assert.True(t, Verify(strings.ToUpper(d), d), "match is case-insensitive")
	assert.False(t, Verify(d[:127]+"0", d))
	assert.False(t, Verify("", d))
}
