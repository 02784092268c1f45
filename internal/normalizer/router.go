package normalizer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/telhawk-systems/telhawk-bridge/internal/record"
	"github.com/telhawk-systems/telhawk-bridge/internal/structtext"
)

const (
	opField    = "op"
	afterField = "after"
)

// Router classifies raw messages. The zero value is not usable; use NewRouter.
type Router struct {
	structs structtext.Parser
}

// NewRouter returns a Router that reads struct-text with p. A nil p uses the
// marker-based parser.
func NewRouter(p structtext.Parser) *Router {
	if p == nil {
		p = structtext.MarkerParser{}
	}
	return &Router{structs: p}
}

// Route classifies raw and extracts its flat payload.
func (r *Router) Route(raw []byte) Outcome {
	text := string(raw)

	if strings.HasPrefix(text, structtext.Prefix) {
		return r.routeStruct(text)
	}
	return routeJSON(raw, text)
}

func (r *Router) routeStruct(text string) Outcome {
	pairs, err := r.structs.Parse(text)

	fields := make([]record.Field, 0, len(pairs))
	for _, p := range pairs {
		fields = append(fields, record.Field{Key: p.Key, Value: p.Value})
	}

	out := Outcome{Kind: Success, Fields: fields, Raw: text}
	if err != nil {
		out.Reason = "malformed struct"
		out.Err = err
	}
	return out
}

func routeJSON(raw []byte, text string) Outcome {
	doc, err := record.ParseJSON(bytes.TrimSpace(raw))
	if err != nil {
		return unparseable(text, fmt.Errorf("%w: %v", ErrUnparseableMessage, err))
	}

	obj, ok := doc.(*record.Object)
	if !ok {
		return unparseable(text, fmt.Errorf("%w: top-level value is not an object", ErrUnparseableMessage))
	}

	if !obj.Has(opField) {
		return Outcome{Kind: Success, Fields: flatten(obj), Raw: text}
	}

	after, _ := obj.Get(afterField)
	switch v := after.(type) {
	case nil:
		return Outcome{
			Kind:   PartialFailure,
			Reason: "missing after",
			Raw:    text,
			Err:    ErrMissingAfterState,
		}
	case *record.Object:
		return Outcome{Kind: Success, Fields: flatten(v), Raw: text}
	default:
		return Outcome{
			Kind:   PartialFailure,
			Reason: "after is not an object",
			Raw:    text,
			Err:    fmt.Errorf("%w: after is %T", ErrInternalProcessing, v),
		}
	}
}

func unparseable(text string, err error) Outcome {
	return Outcome{
		Kind:   HardFailure,
		Fields: []record.Field{{Key: FallbackField, Value: text}},
		Reason: "unparseable",
		Raw:    text,
		Err:    err,
	}
}

func flatten(obj *record.Object) []record.Field {
	b := record.NewBuilder(len(obj.Keys))
	obj.Flatten(b)
	return b.Build().Fields()
}
