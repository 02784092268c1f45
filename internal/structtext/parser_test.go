package structtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPairs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "simple pairs",
			content: "a=1,b=2",
			want:    []string{"a=1", "b=2"},
		},
		{
			name:    "comma inside quotes is kept",
			content: `a="x,y",b=2`,
			want:    []string{`a="x,y"`, "b=2"},
		},
		{
			name:    "trailing comma drops empty tail",
			content: "a=1,",
			want:    []string{"a=1"},
		},
		{
			name:    "empty content",
			content: "",
			want:    nil,
		},
		{
			name:    "leading comma keeps empty head",
			content: ",a=1",
			want:    []string{"", "a=1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPairs(tt.content))
		})
	}
}

func TestParsePairs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Pair
	}{
		{
			name:    "keys lower-cased and values trimmed",
			content: " TransactionID = 1 , Amount= 2.5",
			want:    []Pair{{"transactionid", "1"}, {"amount", "2.5"}},
		},
		{
			name:    "quoted value stripped",
			content: `narrative="rent, march",currency=SGD`,
			want:    []Pair{{"narrative", "rent, march"}, {"currency", "SGD"}},
		},
		{
			name:    "split on first equals only",
			content: "expr=a=b",
			want:    []Pair{{"expr", "a=b"}},
		},
		{
			name:    "segments without equals dropped",
			content: "junk,a=1",
			want:    []Pair{{"a", "1"}},
		},
		{
			name:    "empty key kept",
			content: "=1,b=2",
			want:    []Pair{{"", "1"}, {"b", "2"}},
		},
		{
			name:    "lone quote is not stripped",
			content: `a="`,
			want:    []Pair{{"a", `"`}},
		},
		{
			name:    "empty value kept",
			content: "a=",
			want:    []Pair{{"a", ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePairs(tt.content))
		})
	}
}

func TestMarkerParser_Parse(t *testing.T) {
	p := MarkerParser{}

	t.Run("after payload before source", func(t *testing.T) {
		pairs, err := p.Parse("Struct{after=Struct{transactionid=1,transactionamount=1500.5},source=Struct{db=x},op=c,ts_ms=123}")
		require.NoError(t, err)
		assert.Equal(t, []Pair{{"transactionid", "1"}, {"transactionamount", "1500.5"}}, pairs)
	})

	t.Run("after payload is last struct", func(t *testing.T) {
		pairs, err := p.Parse("Struct{op=c,after=Struct{id=7,name=x}}")
		require.NoError(t, err)
		// the last brace closes the outer struct, so the inner one leaks into the value
		assert.Equal(t, []Pair{{"id", "7"}, {"name", "x}"}}, pairs)
	})

	t.Run("no after marker parses flat struct", func(t *testing.T) {
		pairs, err := p.Parse("Struct{transactionid=9,currency=USD}")
		require.NoError(t, err)
		assert.Equal(t, []Pair{{"transactionid", "9"}, {"currency", "USD"}}, pairs)
	})

	t.Run("no braces is malformed", func(t *testing.T) {
		pairs, err := p.Parse("Struct")
		assert.ErrorIs(t, err, ErrMalformedStruct)
		assert.Empty(t, pairs)
	})

	t.Run("empty after is malformed", func(t *testing.T) {
		pairs, err := p.Parse("Struct{after=Struct{},source=Struct{db=x}}")
		assert.ErrorIs(t, err, ErrMalformedStruct)
		assert.Empty(t, pairs)
	})

	t.Run("unterminated after is malformed", func(t *testing.T) {
		_, err := p.Parse("Struct{after=Struct{a=1")
		assert.ErrorIs(t, err, ErrMalformedStruct)
	})

	t.Run("quoted comma in after value", func(t *testing.T) {
		pairs, err := p.Parse(`Struct{after=Struct{id=1,narrative="a, b"},source=Struct{db=x},op=u}`)
		require.NoError(t, err)
		assert.Equal(t, []Pair{{"id", "1"}, {"narrative", "a, b"}}, pairs)
	})
}

func TestFormatEnvelope_RoundTrip(t *testing.T) {
	after := []Pair{{"transactionid", "42"}, {"narrative", "rent, march"}, {"transactionamount", "10.5"}}
	source := []Pair{{"db", "tbank"}, {"table", "tbank_cleaned"}}

	msg := FormatEnvelope(after, source, "c", 1700000000000)
	assert.Equal(t,
		`Struct{after=Struct{transactionid=42,narrative="rent, march",transactionamount=10.5},source=Struct{db=tbank,table=tbank_cleaned},op=c,ts_ms=1700000000000}`,
		msg)

	pairs, err := MarkerParser{}.Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, after, pairs)
}
