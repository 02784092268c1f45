package handlers

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/telhawk-systems/telhawk-bridge/internal/record"
	"github.com/telhawk-systems/telhawk-bridge/internal/structtext"
)

// DateLayout is the rendering used for epoch-millisecond dates in the Power BI
// view.
const DateLayout = "2006-01-02 15:04:05"

const transactionDateKey = "TRANSACTIONDATE"

var (
	scientificPattern = regexp.MustCompile(`^\d+\.\d+E\+\d+$`)
	epochPattern      = regexp.MustCompile(`^(\d+|\d+(\.\d+)?E\+\d+)$`)
	numberPattern     = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][+-]?\d+)?$`)
)

// Column describes one key of the window for table consumers.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableView is the window wrapped with its column metadata.
type TableView struct {
	Data    []*record.Record `json:"data"`
	Count   int              `json:"count"`
	Columns []Column         `json:"columns"`
}

// unionKeys returns every key of recs in first-seen order.
func unionKeys(recs []*record.Record) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, r := range recs {
		for _, k := range r.Keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}

// StandardizedRows gives every record the union of all keys, upper-cased,
// with null for the keys a record lacks.
func StandardizedRows(recs []*record.Record) []*record.Record {
	keys := unionKeys(recs)
	out := make([]*record.Record, 0, len(recs))
	for _, r := range recs {
		b := record.NewBuilder(len(keys))
		for _, k := range keys {
			v, _ := r.Get(k)
			b.Set(strings.ToUpper(k), v)
		}
		out = append(out, b.Build())
	}
	return out
}

// BuildTable returns recs with a column list in first-seen key order.
func BuildTable(recs []*record.Record) TableView {
	keys := unionKeys(recs)
	columns := make([]Column, 0, len(keys))
	for _, k := range keys {
		columns = append(columns, Column{Name: k, Type: guessType(recs, k)})
	}
	if recs == nil {
		recs = []*record.Record{}
	}
	return TableView{Data: recs, Count: len(recs), Columns: columns}
}

// guessType reports the kind of the first non-null value stored under key.
func guessType(recs []*record.Record, key string) string {
	for _, r := range recs {
		v, ok := r.Get(key)
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case json.Number, float64, float32, int, int64, int32, uint, uint64:
			return "number"
		case bool:
			return "boolean"
		default:
			return "string"
		}
	}
	return "string"
}

// PowerBIRows reshapes recs for Power BI: keys upper-cased, epoch dates
// rendered with DateLayout, struct-text values expanded into their fields.
// Rows that end up empty are dropped.
func PowerBIRows(recs []*record.Record) []*record.Record {
	out := make([]*record.Record, 0, len(recs))
	for _, r := range recs {
		row := powerBIRow(r)
		if row.Len() > 0 {
			out = append(out, row)
		}
	}
	return out
}

func powerBIRow(r *record.Record) *record.Record {
	b := record.NewBuilder(r.Len())
	for _, f := range r.Fields() {
		key := strings.ToUpper(f.Key)

		if s, ok := f.Value.(string); ok && strings.HasPrefix(s, "Struct{") {
			mergeStruct(b, s)
			continue
		}

		if key == transactionDateKey {
			if formatted, ok := formatEpochMillis(f.Value); ok {
				b.Set(key, formatted)
				continue
			}
		} else if s, ok := f.Value.(string); ok && scientificPattern.MatchString(s) {
			if formatted, ok := formatEpochMillis(s); ok {
				b.Set(key, formatted)
				continue
			}
		}
		b.Set(key, f.Value)
	}
	return b.Build()
}

// mergeStruct adds the fields of an embedded struct-text value. Keys already
// present in the row are kept.
func mergeStruct(b *record.Builder, text string) {
	pairs, err := structtext.MarkerParser{}.Parse(text)
	if err != nil {
		return
	}
	for _, p := range pairs {
		key := strings.ToUpper(p.Key)
		if b.Has(key) {
			continue
		}
		if key == transactionDateKey {
			if formatted, ok := formatEpochMillis(p.Value); ok {
				b.Set(key, formatted)
				continue
			}
		}
		b.Set(key, numericOrString(p.Value))
	}
}

func numericOrString(s string) any {
	if numberPattern.MatchString(s) {
		return json.Number(s)
	}
	return s
}

// formatEpochMillis renders an epoch-millisecond value, given as an integer
// or in d.dE+d notation, as a UTC DateLayout string.
func formatEpochMillis(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = strings.TrimSpace(x)
	case json.Number:
		s = x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", false
		}
		return time.UnixMilli(int64(x)).UTC().Format(DateLayout), true
	case int64:
		return time.UnixMilli(x).UTC().Format(DateLayout), true
	case int:
		return time.UnixMilli(int64(x)).UTC().Format(DateLayout), true
	default:
		return "", false
	}

	if !epochPattern.MatchString(s) {
		return "", false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return "", false
	}
	return time.UnixMilli(int64(f)).UTC().Format(DateLayout), true
}
