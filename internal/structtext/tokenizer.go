// Package structtext reads the stringified "Struct" encoding that CDC
// connectors emit when a record is rendered with its toString form instead of
// a JSON converter:
//
//	Struct{after=Struct{transactionid=1,transactionamount=1500.5},source=Struct{db=x},op=c,ts_ms=123}
//
// The encoding is brace-delimited, comma-separated key=value pairs. Values may
// be wrapped in double quotes to carry commas. There is no escape syntax.
package structtext

import "strings"

// Pair is a single key=value entry read from a struct body.
type Pair struct {
	Key   string
	Value string
}

// SplitPairs splits struct content on commas that are not inside a
// double-quoted span. Every '"' toggles the quote state.
func SplitPairs(content string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false

	for _, c := range content {
		if c == '"' {
			inQuotes = !inQuotes
		}
		if c == ',' && !inQuotes {
			parts = append(parts, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(c)
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}

// ParsePairs tokenizes the inner content of a struct into pairs in the order
// they appear. Segments without '=' are dropped; "=v" yields a pair with an
// empty key. Keys are lower-cased; values lose one pair of enclosing quotes.
//
// Nested braces are not understood: a value holding an embedded struct is
// split at its commas.
func ParsePairs(content string) []Pair {
	parts := SplitPairs(content)
	pairs := make([]Pair, 0, len(parts))

	for _, part := range parts {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		pairs = append(pairs, Pair{Key: key, Value: unquote(strings.TrimSpace(value))})
	}

	return pairs
}

func unquote(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return value[1 : len(value)-1]
	}
	return value
}
