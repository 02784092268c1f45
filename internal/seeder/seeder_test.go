package seeder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-bridge/internal/history"
	"github.com/telhawk-systems/telhawk-bridge/internal/metrics"
	"github.com/telhawk-systems/telhawk-bridge/internal/normalizer"
	"github.com/telhawk-systems/telhawk-bridge/internal/record"
)

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"struct", "DEBEZIUM", " json ", "text", "mixed"} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("avro")
	assert.Error(t, err)
}

func TestGenerator_TransactionsAreSequential(t *testing.T) {
	g := NewGenerator(42)
	a, b := g.Transaction(), g.Transaction()
	assert.Equal(t, int64(1), a.TransactionID)
	assert.Equal(t, int64(2), b.TransactionID)
	assert.Greater(t, a.TransactionAmount, 0.0)
	assert.Contains(t, paymentModes, a.PaymentMode)
}

func TestGenerator_HighValueRatio(t *testing.T) {
	g := NewGenerator(7)
	g.HighValueRatio = 1
	for i := 0; i < 20; i++ {
		assert.Greater(t, g.Transaction().TransactionAmount, 1000.0)
	}
}

// Every encoding must route to the outcome the bridge expects for it.
func TestGenerator_EncodingsRoute(t *testing.T) {
	tests := []struct {
		format   Format
		wantKind normalizer.OutcomeKind
	}{
		{FormatStruct, normalizer.Success},
		{FormatDebezium, normalizer.Success},
		{FormatJSON, normalizer.Success},
		{FormatText, normalizer.HardFailure},
	}

	g := NewGenerator(1)
	router := normalizer.NewRouter(nil)
	fields := normalizer.NewFieldNormalizer(record.CaseLower)

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			tx := g.Transaction()
			raw, err := g.Encode(tt.format, tx)
			require.NoError(t, err)

			out := router.Route(raw)
			require.Equal(t, tt.wantKind, out.Kind, string(raw))
			if tt.wantKind != normalizer.Success {
				return
			}
			require.NoError(t, out.Err)

			rec, amount, ok := fields.Normalize(out.Fields)
			require.True(t, ok)
			assert.InDelta(t, tx.TransactionAmount, amount, 0.006)
			id, _ := rec.Get("transactionid")
			assert.Equal(t, strconv.FormatInt(tx.TransactionID, 10), fmt.Sprint(id))
			assert.Equal(t, 10, rec.Len())
		})
	}
}

func TestGenerator_StructEnvelopeShape(t *testing.T) {
	g := NewGenerator(3)
	raw, err := g.Encode(FormatStruct, g.Transaction())
	require.NoError(t, err)

	s := string(raw)
	assert.True(t, strings.HasPrefix(s, "Struct{after=Struct{transactionid=1,"))
	assert.Contains(t, s, "},source=Struct{connector=postgresql,")
	assert.Contains(t, s, ",op=c,ts_ms=")
}

type recordingPublisher struct {
	subjects []string
	payloads [][]byte
	failAt   int
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	if p.failAt > 0 && len(p.payloads)+1 == p.failAt {
		return errors.New("nats: connection closed")
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestRun_MixedFeedsTheBridge(t *testing.T) {
	pub := &recordingPublisher{}
	res, err := Run(context.Background(), pub, Options{Count: 40, Format: FormatMixed, Seed: 9})
	require.NoError(t, err)
	assert.Equal(t, 40, res.Published)

	total := 0
	for _, n := range res.ByFormat {
		total += n
	}
	assert.Equal(t, 40, total)
	assert.Equal(t, "cdc.transactions", pub.subjects[0])

	counters := metrics.NewCounters(prometheus.NewRegistry(), 0)
	router := normalizer.NewRouter(nil)
	fields := normalizer.NewFieldNormalizer(record.CaseLower)
	window := history.NewBuffer(100)
	for _, raw := range pub.payloads {
		out := router.Route(raw)
		rec, amount, ok := fields.Normalize(out.Fields)
		counters.Record(out.Kind, amount, ok)
		if out.HasRecord() {
			window.Append(rec)
		}
	}

	snap := counters.Snapshot()
	assert.Equal(t, int64(40), snap.MessagesProcessed)
	assert.Equal(t, int64(res.ByFormat[FormatText]), snap.TransactionsFailure)
	assert.Equal(t, 40, window.Len())
}

func TestRun_StopsOnPublishError(t *testing.T) {
	pub := &recordingPublisher{failAt: 3}
	res, err := Run(context.Background(), pub, Options{Count: 10, Format: FormatJSON, Subject: "cdc.test"})
	assert.ErrorContains(t, err, "publish message 3")
	assert.Equal(t, 2, res.Published)
	assert.Equal(t, []string{"cdc.test", "cdc.test"}, pub.subjects)
}

func TestRun_RejectsZeroCount(t *testing.T) {
	_, err := Run(context.Background(), &recordingPublisher{}, Options{})
	assert.Error(t, err)
}
