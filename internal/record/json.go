package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Object is a decoded JSON object with member order preserved. Values are
// string, json.Number, bool, nil, []any or *Object.
type Object struct {
	Keys   []string
	Values map[string]any
}

// Has reports whether the object has a member named key, even if it is null.
func (o *Object) Has(key string) bool {
	_, ok := o.Values[key]
	return ok
}

// Get returns the member named key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.Values[key]
	return v, ok
}

func (o *Object) set(key string, value any) {
	if _, exists := o.Values[key]; !exists {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = value
}

// Flatten writes the object's members into b. Nested objects become dotted
// keys and arrays are kept as their compact JSON text.
func (o *Object) Flatten(b *Builder) {
	o.flatten(b, "")
}

func (o *Object) flatten(b *Builder, prefix string) {
	for _, k := range o.Keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch v := o.Values[k].(type) {
		case *Object:
			if len(v.Keys) == 0 {
				b.Set(key, "{}")
				continue
			}
			v.flatten(b, key)
		case []any:
			raw, err := json.Marshal(v)
			if err != nil {
				b.Set(key, fmt.Sprint(v))
				continue
			}
			b.Set(key, string(raw))
		default:
			b.Set(key, v)
		}
	}
}

// MarshalJSON encodes the object in member order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(o.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseJSON decodes exactly one JSON value from data. Objects come back as
// *Object so member order survives; numbers come back as json.Number.
func ParseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, errors.New("unexpected data after top-level value")
		}
		return nil, err
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		return decodeObject(dec)
	case '[':
		return decodeArray(dec)
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}

func decodeObject(dec *json.Decoder) (*Object, error) {
	obj := &Object{Values: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, not string", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	arr := make([]any, 0)
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}
