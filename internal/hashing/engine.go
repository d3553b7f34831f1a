// Package hashing computes the keyed SHA-512 digests that authenticate
// payment messages exchanged with the gateway.
//
// Two distinct constructions exist and are not interchangeable: the
// request digest (outbound initiation) joins fields in forward order
// bracketed by prefix..suffix, while the response digest (inbound
// confirmation) joins the exact reverse with prefix and suffix swapped.
// The reversal is an anti-replay property: a captured request digest can
// never validate as a response digest.
package hashing

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
)

const delimiter = "|"

// Secret is a merchant's keyed-digest material. Prefix leads the request
// construction and trails the response construction; Suffix the inverse.
type Secret struct {
	Prefix string
	Suffix string
}

// Params is the ordered field tuple a digest is computed over. Optional
// fields left empty still occupy their position in the joined string.
type Params struct {
	Txnid        string
	Amount       string
	Description  string
	PayerName    string
	PayerEmail   string
	Status       string
	CustomFields model.CustomFields
}

// MissingFieldError reports a mandatory digest field that was empty.
// Digest computation fails closed rather than hashing partial data.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("mandatory digest field %q is empty", e.Field)
}

// ComputeRequestDigest computes the outbound initiation digest:
//
//	prefix|txnid|amount|description|payerName|payerEmail|udf1..udf10|suffix
func ComputeRequestDigest(secret Secret, p Params) (string, error) {
	if err := requireFields(map[string]string{
		model.FieldTxnid:  p.Txnid,
		model.FieldAmount: p.Amount,
	}); err != nil {
		return "", err
	}

	parts := make([]string, 0, 7+model.CustomFieldCount)
	parts = append(parts, secret.Prefix, p.Txnid, p.Amount, p.Description, p.PayerName, p.PayerEmail)
	parts = append(parts, p.CustomFields.Ascending()...)
	parts = append(parts, secret.Suffix)
	return digest(parts), nil
}

// ComputeResponseDigest computes the inbound confirmation digest, the
// deliberate reverse of the request construction:
//
//	suffix|status|udf10..udf1|payerEmail|payerName|description|amount|txnid|prefix
func ComputeResponseDigest(secret Secret, p Params) (string, error) {
	if err := requireFields(map[string]string{
		model.FieldTxnid:  p.Txnid,
		model.FieldStatus: p.Status,
		model.FieldAmount: p.Amount,
	}); err != nil {
		return "", err
	}

	parts := make([]string, 0, 8+model.CustomFieldCount)
	parts = append(parts, secret.Suffix, p.Status)
	parts = append(parts, p.CustomFields.Descending()...)
	parts = append(parts, p.PayerEmail, p.PayerName, p.Description, p.Amount, p.Txnid, secret.Prefix)
	return digest(parts), nil
}

// Verify compares a candidate digest against a computed one,
// case-insensitively and in constant time.
func Verify(candidate, computed string) bool {
	a := []byte(strings.ToLower(candidate))
	b := []byte(strings.ToLower(computed))
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

func digest(parts []string) string {
	sum := sha512.Sum512([]byte(strings.Join(parts, delimiter)))
	return hex.EncodeToString(sum[:])
}

func requireFields(fields map[string]string) error {
	// Deterministic order keeps error messages stable.
	for _, name := range []string{model.FieldTxnid, model.FieldStatus, model.FieldAmount} {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) == "" {
			return &MissingFieldError{Field: name}
		}
	}
	return nil
}
