package structtext

import (
	"strconv"
	"strings"
)

// Format renders pairs as Struct{k=v,...}. Values containing a comma or an
// equals sign are double-quoted so that ParsePairs reads them back intact.
func Format(pairs []Pair) string {
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		if strings.ContainsAny(p.Value, ",=") {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(p.Value, `"`, `'`))
			b.WriteByte('"')
		} else {
			b.WriteString(p.Value)
		}
	}
	b.WriteByte('}')
	return b.String()
}

// FormatEnvelope renders a change event the way a connector's toString does:
// Struct{after=Struct{...},source=Struct{...},op=c,ts_ms=...}.
func FormatEnvelope(after, source []Pair, op string, tsMillis int64) string {
	var b strings.Builder
	b.WriteString("Struct{after=")
	b.WriteString(Format(after))
	b.WriteString(",source=")
	b.WriteString(Format(source))
	b.WriteString(",op=")
	b.WriteString(op)
	b.WriteString(",ts_ms=")
	b.WriteString(strconv.FormatInt(tsMillis, 10))
	b.WriteByte('}')
	return b.String()
}
