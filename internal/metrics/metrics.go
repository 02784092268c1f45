// Package metrics holds the transaction counters derived from routed
// messages and mirrors them to Prometheus collectors.
package metrics

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/telhawk-systems/telhawk-bridge/internal/normalizer"
)

// DefaultHighValueThreshold is the amount above which a transaction counts as
// high value.
const DefaultHighValueThreshold = 1000.0

// Recorder receives one Record call per processed message and one RecordError
// call per unexpected error. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(kind normalizer.OutcomeKind, amount float64, hasAmount bool)
	RecordError()
	Snapshot() Snapshot
}

// Snapshot is a point-in-time copy of the counters. Counters are read one by
// one, so a snapshot taken while messages are in flight may be off by one
// message between fields.
type Snapshot struct {
	MessagesProcessed   int64   `json:"messages_processed"`
	Errors              int64   `json:"errors"`
	TransactionsSuccess int64   `json:"transactions_success"`
	TransactionsFailure int64   `json:"transactions_failure"`
	AmountSum           float64 `json:"amount_sum"`
	HighValueCount      int64   `json:"high_value_count"`
}

// Add returns the field-wise sum of s and o.
func (s Snapshot) Add(o Snapshot) Snapshot {
	return Snapshot{
		MessagesProcessed:   s.MessagesProcessed + o.MessagesProcessed,
		Errors:              s.Errors + o.Errors,
		TransactionsSuccess: s.TransactionsSuccess + o.TransactionsSuccess,
		TransactionsFailure: s.TransactionsFailure + o.TransactionsFailure,
		AmountSum:           s.AmountSum + o.AmountSum,
		HighValueCount:      s.HighValueCount + o.HighValueCount,
	}
}

// Counters is the process-wide Recorder. Create one at startup and share it.
type Counters struct {
	threshold float64

	processed atomic.Int64
	errors    atomic.Int64
	success   atomic.Int64
	failure   atomic.Int64
	highValue atomic.Int64
	amountSum atomicFloat

	transactionsTotal *prometheus.CounterVec
	amountSumGauge    prometheus.Gauge
	highValueTotal    prometheus.Counter
	processedTotal    prometheus.Counter
	errorsTotal       prometheus.Counter
	processDuration   prometheus.Histogram
}

// NewCounters registers the bridge collectors on reg. A threshold <= 0 uses
// DefaultHighValueThreshold.
func NewCounters(reg prometheus.Registerer, threshold float64) *Counters {
	if threshold <= 0 {
		threshold = DefaultHighValueThreshold
	}
	factory := promauto.With(reg)

	return &Counters{
		threshold: threshold,

		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_transactions_total",
				Help: "Total number of transactions by outcome",
			},
			[]string{"status"},
		),
		// Amounts may be negative, so the running sum is a gauge.
		amountSumGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_transactions_amount_sum",
				Help: "Sum of amounts of successfully normalized transactions",
			},
		),
		highValueTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_transactions_high_value_total",
				Help: "Total number of transactions above the high-value threshold",
			},
		),
		processedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_consumer_messages_processed_total",
				Help: "Total number of messages processed",
			},
		),
		errorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_consumer_errors_total",
				Help: "Total number of processing errors",
			},
		),
		processDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bridge_process_duration_seconds",
				Help:    "Duration of message normalization in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// Threshold returns the high-value threshold.
func (c *Counters) Threshold() float64 {
	return c.threshold
}

// Record counts one processed message.
func (c *Counters) Record(kind normalizer.OutcomeKind, amount float64, hasAmount bool) {
	c.processed.Add(1)
	c.processedTotal.Inc()

	if kind != normalizer.Success {
		c.failure.Add(1)
		c.transactionsTotal.WithLabelValues("failure").Inc()
		return
	}

	c.success.Add(1)
	c.transactionsTotal.WithLabelValues("success").Inc()
	if !hasAmount {
		return
	}

	c.amountSum.Add(amount)
	c.amountSumGauge.Add(amount)
	if amount > c.threshold {
		c.highValue.Add(1)
		c.highValueTotal.Inc()
	}
}

// RecordError counts one unexpected error.
func (c *Counters) RecordError() {
	c.errors.Add(1)
	c.errorsTotal.Inc()
}

// ObserveDuration records how long one message took to process.
func (c *Counters) ObserveDuration(d time.Duration) {
	c.processDuration.Observe(d.Seconds())
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		MessagesProcessed:   c.processed.Load(),
		Errors:              c.errors.Load(),
		TransactionsSuccess: c.success.Load(),
		TransactionsFailure: c.failure.Load(),
		AmountSum:           c.amountSum.Load(),
		HighValueCount:      c.highValue.Load(),
	}
}

// WindowSize reports the length and capacity of the record window.
type WindowSize interface {
	Len() int
	Cap() int
}

// RegisterWindow exposes the window length and capacity as gauges.
func RegisterWindow(reg prometheus.Registerer, w WindowSize) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "bridge_history_records",
			Help: "Number of records currently held in the recent window",
		},
		func() float64 { return float64(w.Len()) },
	)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "bridge_history_capacity",
			Help: "Maximum number of records held in the recent window",
		},
		func() float64 { return float64(w.Cap()) },
	)
}

type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Add(delta float64) {
	for {
		old := f.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if f.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}
