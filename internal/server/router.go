package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/telhawk-bridge/internal/handlers"
	"github.com/telhawk-systems/telhawk-bridge/internal/middleware"
)

// NewRouter constructs a ServeMux with the read-side routes registered.
func NewRouter(h *handlers.DataHandler, gatherer prometheus.Gatherer, cors middleware.CORSConfig, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Recent window
	mux.HandleFunc("GET /api/v1/data/transactions", h.Transactions)
	mux.HandleFunc("GET /api/v1/data/transactions/powerbi", h.StandardizedTransactions)
	mux.HandleFunc("GET /api/v1/data/transactions/table", h.TransactionsTable)
	mux.HandleFunc("GET /api/v1/powerbi/transactions", h.PowerBITransactions)
	mux.HandleFunc("GET /api/v1/data/stats", h.Stats)

	// Health endpoints
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	var handler http.Handler = mux
	if logger != nil {
		handler = middleware.AccessLog(logger)(handler)
	}
	handler = middleware.CORS(cors)(handler)
	return middleware.RequestID(handler)
}
