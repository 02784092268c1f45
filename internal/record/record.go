// Package record defines the normalized record shape shared by the ingest
// path and the read side. A Record is an insertion-ordered set of fields whose
// values are strings, numbers (json.Number or float64), booleans or nil. Records are
// immutable once built.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is a single named value.
type Field struct {
	Key   string
	Value any
}

// Record is an immutable, insertion-ordered field set.
type Record struct {
	keys   []string
	values map[string]any
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Fields returns the fields in insertion order.
func (r *Record) Fields() []Field {
	if r == nil {
		return nil
	}
	out := make([]Field, len(r.keys))
	for i, k := range r.keys {
		out[i] = Field{Key: k, Value: r.values[k]}
	}
	return out
}

// Recase returns a copy of the record with every key passed through c.
func (r *Record) Recase(c KeyCase) *Record {
	b := NewBuilder(r.Len())
	if r != nil {
		for _, k := range r.keys {
			b.Set(c.Apply(k), r.values[k])
		}
	}
	return b.Build()
}

// MarshalJSON encodes the record as a JSON object in field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping member order. Nested objects
// are flattened with dotted keys.
func (r *Record) UnmarshalJSON(data []byte) error {
	doc, err := ParseJSON(data)
	if err != nil {
		return err
	}
	obj, ok := doc.(*Object)
	if !ok {
		return fmt.Errorf("record must be a JSON object")
	}

	b := NewBuilder(len(obj.Keys))
	obj.Flatten(b)
	*r = *b.Build()
	return nil
}

// String renders the record as key=value pairs, mainly for logs.
func (r *Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		v, _ := r.Get(k)
		fmt.Fprintf(&b, "%s=%v", k, v)
	}
	b.WriteByte('}')
	return b.String()
}

// Builder accumulates fields for a new Record. Setting an existing key
// replaces its value but keeps its original position.
type Builder struct {
	keys   []string
	values map[string]any
}

// NewBuilder returns a Builder sized for n fields.
func NewBuilder(n int) *Builder {
	return &Builder{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// Set stores value under key.
func (b *Builder) Set(key string, value any) *Builder {
	if _, exists := b.values[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
	return b
}

// Has reports whether key has been set.
func (b *Builder) Has(key string) bool {
	_, ok := b.values[key]
	return ok
}

// Build returns the record and resets the builder.
func (b *Builder) Build() *Record {
	r := &Record{keys: b.keys, values: b.values}
	b.keys = nil
	b.values = make(map[string]any)
	return r
}

// FromFields builds a record from fields in order.
func FromFields(fields ...Field) *Record {
	b := NewBuilder(len(fields))
	for _, f := range fields {
		b.Set(f.Key, f.Value)
	}
	return b.Build()
}
