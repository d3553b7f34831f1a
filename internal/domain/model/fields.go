package model

import (
	"fmt"
	"strings"
)

// CustomFieldCount is the fixed width of the gateway's custom field vector.
// Fields the caller does not use are carried as empty strings, never
// omitted, so digest construction always sees the same field count.
const CustomFieldCount = 10

const (
	routingKeySlot = 0 // slot 1 by gateway convention
	orderRefSlot   = 1 // slot 2 by gateway convention
)

// CustomFields is the ordered vector of opaque custom field slots
// (udf1..udf10 in gateway terms). Two slots carry reserved meaning and
// have named accessors; the rest are opaque.
type CustomFields [CustomFieldCount]string

// RoutingKey returns the reserved merchant-id slot.
func (f CustomFields) RoutingKey() string {
	return f[routingKeySlot]
}

// OrderRef returns the reserved order-reference slot.
func (f CustomFields) OrderRef() string {
	return f[orderRefSlot]
}

// Slot returns the slot at 1-based index i, or "" when out of range.
func (f CustomFields) Slot(i int) string {
	if i < 1 || i > CustomFieldCount {
		return ""
	}
	return f[i-1]
}

// Ascending returns the slots in index order, udf1 first.
func (f CustomFields) Ascending() []string {
	return f[:]
}

// Descending returns the slots in reverse index order, udf10 first.
func (f CustomFields) Descending() []string {
	out := make([]string, CustomFieldCount)
	for i, v := range f {
		out[CustomFieldCount-1-i] = v
	}
	return out
}

// Inbound field keys, matching the gateway's flat callback field names.
const (
	FieldTxnid       = "txnid"
	FieldStatus      = "status"
	FieldAmount      = "amount"
	FieldDescription = "productinfo"
	FieldPayerName   = "firstname"
	FieldPayerEmail  = "email"
	FieldDigest      = "hash"
)

// MandatoryFields are the inbound fields that must be present before any
// digest recomputation or state change is attempted.
var MandatoryFields = []string{
	FieldTxnid, FieldStatus, FieldAmount,
	FieldPayerEmail, FieldPayerName, FieldDigest,
}

// InboundFields is the flat, already-parsed field set handed over by the
// request layer.
type InboundFields map[string]string

func (f InboundFields) Txnid() string       { return f[FieldTxnid] }
func (f InboundFields) Status() string      { return f[FieldStatus] }
func (f InboundFields) Amount() string      { return f[FieldAmount] }
func (f InboundFields) Description() string { return f[FieldDescription] }
func (f InboundFields) PayerName() string   { return f[FieldPayerName] }
func (f InboundFields) PayerEmail() string  { return f[FieldPayerEmail] }
func (f InboundFields) Digest() string      { return f[FieldDigest] }

// CustomFields collects the udf1..udf10 slots. Absent keys become empty
// strings so the vector keeps its fixed width.
func (f InboundFields) CustomFields() CustomFields {
	var cf CustomFields
	for i := 0; i < CustomFieldCount; i++ {
		cf[i] = f[fmt.Sprintf("udf%d", i+1)]
	}
	return cf
}

// MissingMandatory returns the mandatory field names that are absent or
// blank, in declaration order.
func (f InboundFields) MissingMandatory() []string {
	var missing []string
	for _, key := range MandatoryFields {
		if strings.TrimSpace(f[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
