package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-bridge/internal/config"
	"github.com/telhawk-systems/telhawk-bridge/internal/logging"
	"github.com/telhawk-systems/telhawk-bridge/internal/output"
	"github.com/telhawk-systems/telhawk-bridge/internal/record"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "provision": false, "seed": false, "records": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "command %s not registered", name)
	}
}

func TestPersistentFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	f := rootCmd.PersistentFlags().Lookup("output")
	require.NotNil(t, f)
	assert.Equal(t, "table", f.DefValue)
}

func testConfig() *config.Config {
	return &config.Config{
		NATS: config.NATSConfig{URL: "nats://nats:4222", MaxReconnects: 5},
		Stream: config.StreamConfig{
			Mode:     config.ModeJetStream,
			Name:     "CDC",
			Subjects: []string{"cdc.>"},
			Subject:  "cdc.transactions",
			Consumer: "bridge",
			Workers:  2,
		},
		History:    config.HistoryConfig{Capacity: 5},
		Normalizer: config.NormalizerConfig{KeyCase: "upper", HighValueThreshold: 100},
		Stats:      config.StatsConfig{InstanceID: "bridge-a"},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"https://app.powerbi.com"},
			AllowedMethods: []string{"GET"},
			MaxAge:         60,
		},
	}
}

func TestNewBridgeService(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := newBridgeService(testConfig(), reg, logging.Discard().Logger)

	svc.Process([]byte(`{"op":"c","after":{"transactionid":1,"transactionamount":150}}`))

	assert.Equal(t, 5, svc.WindowCap())
	recs := svc.RecentRecords()
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"TRANSACTIONID", "TRANSACTIONAMOUNT"}, recs[0].Keys())
	assert.Equal(t, int64(1), svc.Stats().HighValueCount)
}

func TestNatsConfig(t *testing.T) {
	nc := natsConfig(testConfig())
	assert.Equal(t, "nats://nats:4222", nc.URL)
	assert.Equal(t, "telhawk-bridge", nc.Name)
	assert.Equal(t, 5, nc.MaxReconnects)
	assert.Positive(t, nc.ReconnectWait)
}

func TestConsumerConfig(t *testing.T) {
	cc := consumerConfig(testConfig())
	assert.Equal(t, "bridge", cc.Name)
	assert.Equal(t, "cdc.transactions", cc.FilterSubject)
	assert.Positive(t, cc.AckWait)
}

func TestResolveInstanceID(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "bridge-a", resolveInstanceID(cfg))

	cfg.Stats.InstanceID = ""
	assert.NotEmpty(t, resolveInstanceID(cfg))
}

func TestCORSConfig(t *testing.T) {
	c := corsConfig(testConfig())
	assert.Equal(t, []string{"https://app.powerbi.com"}, c.AllowedOrigins)
	assert.Equal(t, 60, c.MaxAge)
}

func TestFetchRecords(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"transactionid":"1","amount":5},{"name":"a"}]`))
	}))
	defer srv.Close()

	recs, err := fetchRecords(context.Background(), srv.Client(), srv.URL+"/", "powerbi")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/powerbi/transactions", gotPath)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"transactionid", "amount"}, recs[0].Keys())
}

func TestFetchRecords_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := fetchRecords(context.Background(), srv.Client(), srv.URL, "raw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = fetchRecords(context.Background(), srv.Client(), srv.URL, "nope")
	assert.ErrorContains(t, err, "unknown view")
}

func TestRunRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"n":"1"},{"n":"2"},{"n":"3"}]`))
	}))
	defer srv.Close()

	recordsURL, recordsView, recordsLimit, outputFormat = srv.URL, "raw", 2, output.FormatJSON
	t.Cleanup(func() {
		recordsURL, recordsView, recordsLimit, outputFormat = "http://localhost:8085", "raw", 0, output.FormatTable
	})

	var out bytes.Buffer
	recordsCmd.SetOut(&out)
	recordsCmd.SetContext(context.Background())
	t.Cleanup(func() { recordsCmd.SetOut(nil) })

	require.NoError(t, runRecords(recordsCmd, nil))

	var got []*record.Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 2)
	v, _ := got[0].Get("n")
	assert.Equal(t, "2", v)
}
