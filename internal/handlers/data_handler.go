// Package handlers serves the read side of the bridge: the recent record
// window in its presentation shapes, counters and health probes.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/telhawk-systems/telhawk-bridge/internal/httputil"
	"github.com/telhawk-systems/telhawk-bridge/internal/logging"
	"github.com/telhawk-systems/telhawk-bridge/internal/metrics"
	"github.com/telhawk-systems/telhawk-bridge/internal/record"
	"github.com/telhawk-systems/telhawk-bridge/internal/stats"
)

// Store is the part of the bridge service the handlers read from.
type Store interface {
	RecentRecords() []*record.Record
	Stats() metrics.Snapshot
	WindowLen() int
	WindowCap() int
}

// ClusterReader aggregates counters across instances.
type ClusterReader interface {
	Aggregate(ctx context.Context) (*stats.ClusterStats, error)
}

// BrokerStatus reports the message broker connection state.
type BrokerStatus interface {
	IsConnected() bool
}

// DeadLetterStats reports dead-letter capture state.
type DeadLetterStats interface {
	Stats(ctx context.Context) map[string]any
}

type DataHandler struct {
	store      Store
	cluster    ClusterReader
	broker     BrokerStatus
	deadLetter DeadLetterStats
	instanceID string
	startedAt  time.Time
	logger     *slog.Logger
}

// Option configures optional dependencies of a DataHandler.
type Option func(*DataHandler)

// WithCluster enables ?scope=cluster on the stats endpoint.
func WithCluster(c ClusterReader) Option {
	return func(h *DataHandler) { h.cluster = c }
}

// WithBroker makes readiness depend on the broker connection.
func WithBroker(b BrokerStatus) Option {
	return func(h *DataHandler) { h.broker = b }
}

// WithDeadLetter adds dead-letter state to the readiness report.
func WithDeadLetter(d DeadLetterStats) Option {
	return func(h *DataHandler) { h.deadLetter = d }
}

// WithInstanceID labels stats responses.
func WithInstanceID(id string) Option {
	return func(h *DataHandler) { h.instanceID = id }
}

func NewDataHandler(store Store, logger *slog.Logger, opts ...Option) *DataHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &DataHandler{
		store:     store,
		startedAt: time.Now(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Transactions returns the window as stored.
func (h *DataHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, nonNil(h.store.RecentRecords()))
}

// StandardizedTransactions returns every row with the same upper-cased key set.
func (h *DataHandler) StandardizedTransactions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StandardizedRows(h.store.RecentRecords()))
}

// TransactionsTable returns the window with column metadata.
func (h *DataHandler) TransactionsTable(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, BuildTable(h.store.RecentRecords()))
}

// PowerBITransactions returns the Power BI presentation of the window.
func (h *DataHandler) PowerBITransactions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, PowerBIRows(h.store.RecentRecords()))
}

// Stats returns this instance's counters, or the cluster aggregate for
// ?scope=cluster.
func (h *DataHandler) Stats(w http.ResponseWriter, r *http.Request) {
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "local":
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"instance_id": h.instanceID,
			"counters":    h.store.Stats(),
			"window": map[string]int{
				"records":  h.store.WindowLen(),
				"capacity": h.store.WindowCap(),
			},
		})
	case "cluster":
		if h.cluster == nil {
			httputil.WriteError(w, http.StatusNotImplemented, "cluster stats require redis")
			return
		}
		agg, err := h.cluster.Aggregate(r.Context())
		if err != nil {
			h.logger.ErrorContext(r.Context(), "cluster stats aggregation failed", logging.Error(err))
			httputil.WriteError(w, http.StatusBadGateway, "cluster stats unavailable")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, agg)
	default:
		httputil.WriteError(w, http.StatusBadRequest, "unknown scope "+scope)
	}
}

func (h *DataHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready reports 503 while the broker is disconnected.
func (h *DataHandler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ready",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
		"window": map[string]int{
			"records":  h.store.WindowLen(),
			"capacity": h.store.WindowCap(),
		},
	}
	status := http.StatusOK

	if h.broker != nil {
		connected := h.broker.IsConnected()
		resp["broker_connected"] = connected
		if !connected {
			resp["status"] = "not ready"
			status = http.StatusServiceUnavailable
		}
	}
	if h.deadLetter != nil {
		resp["dlq"] = h.deadLetter.Stats(r.Context())
	}

	httputil.WriteJSON(w, status, resp)
}

func nonNil(recs []*record.Record) []*record.Record {
	if recs == nil {
		return []*record.Record{}
	}
	return recs
}
