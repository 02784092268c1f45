package normalizer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-bridge/internal/record"
	"github.com/telhawk-systems/telhawk-bridge/internal/structtext"
)

func TestRouter_Route(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantKind   OutcomeKind
		wantFields []record.Field
		wantErr    error
	}{
		{
			name:     "struct text with after and source",
			raw:      "Struct{after=Struct{transactionid=1,transactionamount=1500.5},source=Struct{db=x},op=c,ts_ms=123}",
			wantKind: Success,
			wantFields: []record.Field{
				{Key: "transactionid", Value: "1"},
				{Key: "transactionamount", Value: "1500.5"},
			},
		},
		{
			name:       "flat struct text",
			raw:        "Struct{Name=a}",
			wantKind:   Success,
			wantFields: []record.Field{{Key: "name", Value: "a"}},
		},
		{
			name:       "malformed struct text still succeeds",
			raw:        "Struct without braces",
			wantKind:   Success,
			wantFields: []record.Field{},
			wantErr:    ErrMalformedStruct,
		},
		{
			name:     "change event with after",
			raw:      `{"op":"u","before":{"id":5,"amount":10},"after":{"id":5,"amount":50}}`,
			wantKind: Success,
			wantFields: []record.Field{
				{Key: "id", Value: json.Number("5")},
				{Key: "amount", Value: json.Number("50")},
			},
		},
		{
			name:     "change event with null after",
			raw:      `{"op":"d","after":null}`,
			wantKind: PartialFailure,
			wantErr:  ErrMissingAfterState,
		},
		{
			name:     "change event without after",
			raw:      `{"op":"d","before":{"id":1}}`,
			wantKind: PartialFailure,
			wantErr:  ErrMissingAfterState,
		},
		{
			name:     "change event with scalar after",
			raw:      `{"op":"c","after":"id=1"}`,
			wantKind: PartialFailure,
			wantErr:  ErrInternalProcessing,
		},
		{
			name:       "plain object",
			raw:        `{"name":"a"}`,
			wantKind:   Success,
			wantFields: []record.Field{{Key: "name", Value: "a"}},
		},
		{
			name:     "plain object with nested value",
			raw:      ` {"name":"a","geo":{"lat":1}} `,
			wantKind: Success,
			wantFields: []record.Field{
				{Key: "name", Value: "a"},
				{Key: "geo.lat", Value: json.Number("1")},
			},
		},
		{
			name:       "unparseable text",
			raw:        "not-json{",
			wantKind:   HardFailure,
			wantFields: []record.Field{{Key: FallbackField, Value: "not-json{"}},
			wantErr:    ErrUnparseableMessage,
		},
		{
			name:       "top-level array",
			raw:        `[1,2]`,
			wantKind:   HardFailure,
			wantFields: []record.Field{{Key: FallbackField, Value: "[1,2]"}},
			wantErr:    ErrUnparseableMessage,
		},
		{
			name:       "empty message",
			raw:        "",
			wantKind:   HardFailure,
			wantFields: []record.Field{{Key: FallbackField, Value: ""}},
			wantErr:    ErrUnparseableMessage,
		},
	}

	router := NewRouter(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := router.Route([]byte(tt.raw))

			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.raw, out.Raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, out.Err, tt.wantErr)
			} else {
				assert.NoError(t, out.Err)
			}
			if tt.wantKind == PartialFailure {
				assert.Nil(t, out.Fields)
				assert.False(t, out.HasRecord())
				return
			}
			assert.Equal(t, tt.wantFields, out.Fields)
			assert.True(t, out.HasRecord())
		})
	}
}

func TestRouter_OpFieldIsTheOnlyEnvelopeSignal(t *testing.T) {
	router := NewRouter(nil)

	// "after" without "op" is just a nested field of a plain record
	out := router.Route([]byte(`{"after":{"id":1}}`))
	require.Equal(t, Success, out.Kind)
	assert.Equal(t, []record.Field{{Key: "after.id", Value: json.Number("1")}}, out.Fields)

	// a null "op" still marks an envelope
	out = router.Route([]byte(`{"op":null,"after":{"id":1}}`))
	require.Equal(t, Success, out.Kind)
	assert.Equal(t, []record.Field{{Key: "id", Value: json.Number("1")}}, out.Fields)
}

type stubParser struct {
	pairs []structtext.Pair
	err   error
}

func (s stubParser) Parse(string) ([]structtext.Pair, error) {
	return s.pairs, s.err
}

func TestRouter_UsesInjectedStructParser(t *testing.T) {
	boom := errors.New("boom")
	router := NewRouter(stubParser{
		pairs: []structtext.Pair{{Key: "partial", Value: "yes"}},
		err:   boom,
	})

	out := router.Route([]byte("Struct{anything}"))
	assert.Equal(t, Success, out.Kind)
	assert.ErrorIs(t, out.Err, boom)
	assert.Equal(t, []record.Field{{Key: "partial", Value: "yes"}}, out.Fields)
}

func TestOutcomeKind_String(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "partial_failure", PartialFailure.String())
	assert.Equal(t, "hard_failure", HardFailure.String())
	assert.Equal(t, "unknown", OutcomeKind(42).String())
}
