package record

import (
	"fmt"
	"strings"
)

// KeyCase is the casing policy applied to field names.
type KeyCase int

const (
	CaseLower KeyCase = iota
	CaseUpper
)

// ParseKeyCase converts "lower" or "upper" to a KeyCase.
func ParseKeyCase(s string) (KeyCase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lower":
		return CaseLower, nil
	case "upper":
		return CaseUpper, nil
	default:
		return CaseLower, fmt.Errorf("unknown key case %q (supported: lower, upper)", s)
	}
}

// Apply re-cases key.
func (c KeyCase) Apply(key string) string {
	if c == CaseUpper {
		return strings.ToUpper(key)
	}
	return strings.ToLower(key)
}

func (c KeyCase) String() string {
	if c == CaseUpper {
		return "upper"
	}
	return "lower"
}
