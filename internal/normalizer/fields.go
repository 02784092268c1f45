package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/telhawk-systems/telhawk-bridge/internal/record"
)

// amountKeys are looked up in order on the payload as routed, before any
// re-casing.
var amountKeys = []string{"transactionamount", "amount", "TRANSACTIONAMOUNT"}

// FieldNormalizer applies the key-case policy and extracts the transaction
// amount.
type FieldNormalizer struct {
	keyCase record.KeyCase
}

// NewFieldNormalizer returns a normalizer storing keys in the given case.
func NewFieldNormalizer(c record.KeyCase) *FieldNormalizer {
	return &FieldNormalizer{keyCase: c}
}

// KeyCase returns the configured policy.
func (n *FieldNormalizer) KeyCase() record.KeyCase {
	return n.keyCase
}

// Normalize builds a record from fields with every key in the configured case,
// and returns the amount when one of the amount spellings holds a number. Keys
// that collide after re-casing keep their first position and the last value.
func (n *FieldNormalizer) Normalize(fields []record.Field) (*record.Record, float64, bool) {
	b := record.NewBuilder(len(fields))
	raw := make(map[string]any, len(fields))
	for _, f := range fields {
		raw[f.Key] = f.Value
		b.Set(n.keyCase.Apply(f.Key), f.Value)
	}

	amount, ok := lookupAmount(raw)
	return b.Build(), amount, ok
}

func lookupAmount(fields map[string]any) (float64, bool) {
	for _, k := range amountKeys {
		if v, present := fields[k]; present {
			return ToFloat(v)
		}
	}
	return 0, false
}

// ToFloat coerces a record value to a finite float64.
func ToFloat(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		f, err = x.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
