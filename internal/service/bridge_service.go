// Package service ties routing, normalization, the record window and the
// transaction counters into the single processing entry point used by the
// stream consumers and the read-side handlers.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/telhawk-bridge/internal/history"
	"github.com/telhawk-systems/telhawk-bridge/internal/logging"
	"github.com/telhawk-systems/telhawk-bridge/internal/metrics"
	"github.com/telhawk-systems/telhawk-bridge/internal/normalizer"
	"github.com/telhawk-systems/telhawk-bridge/internal/record"
)

type durationObserver interface {
	ObserveDuration(time.Duration)
}

// BridgeService processes raw messages. Safe for concurrent use by any number
// of consumer workers and readers.
type BridgeService struct {
	router   *normalizer.Router
	fields   *normalizer.FieldNormalizer
	window   *history.Buffer
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewBridgeService wires the pipeline. A nil logger uses slog.Default.
func NewBridgeService(
	router *normalizer.Router,
	fields *normalizer.FieldNormalizer,
	window *history.Buffer,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *BridgeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BridgeService{
		router:   router,
		fields:   fields,
		window:   window,
		recorder: recorder,
		logger:   logger,
	}
}

// Process normalizes one raw message. It never fails; the outcome is
// reflected in the record window and the counters.
func (s *BridgeService) Process(raw []byte) {
	s.ProcessMessage(raw)
}

// ProcessMessage is Process returning the routing outcome, for callers that
// act on failures (the dead-letter capture). Panics are recovered and
// reported as ErrInternalProcessing; the message is then not kept.
func (s *BridgeService) ProcessMessage(raw []byte) (out normalizer.Outcome) {
	start := time.Now()
	recorded := false

	defer func() {
		if p := recover(); p != nil {
			s.recorder.RecordError()
			if !recorded {
				s.recorder.Record(normalizer.HardFailure, 0, false)
			}
			out = normalizer.Outcome{
				Kind:   normalizer.HardFailure,
				Reason: "internal error",
				Raw:    string(raw),
				Err:    fmt.Errorf("%w: %v", normalizer.ErrInternalProcessing, p),
			}
			s.logger.Error("message processing panicked", logging.Error(out.Err))
		}
		if o, ok := s.recorder.(durationObserver); ok {
			o.ObserveDuration(time.Since(start))
		}
	}()

	out = s.router.Route(raw)

	var (
		rec       *record.Record
		amount    float64
		hasAmount bool
	)
	if out.HasRecord() {
		rec, amount, hasAmount = s.fields.Normalize(out.Fields)
	}

	if errors.Is(out.Err, normalizer.ErrMalformedStruct) || errors.Is(out.Err, normalizer.ErrInternalProcessing) {
		s.recorder.RecordError()
	}
	s.recorder.Record(out.Kind, amount, hasAmount)
	recorded = true

	if rec != nil {
		s.window.Append(rec)
	}

	s.log(out)
	return out
}

func (s *BridgeService) log(out normalizer.Outcome) {
	switch {
	case out.Kind == normalizer.Success && out.Err == nil:
		s.logger.Debug("message normalized", logging.Outcome(out.Kind.String()))
	case out.Kind == normalizer.Success:
		s.logger.Warn("message recovered from malformed struct text",
			logging.Outcome(out.Kind.String()),
			logging.Error(out.Err),
		)
	default:
		s.logger.Warn("message not normalized",
			logging.Outcome(out.Kind.String()),
			logging.Reason(out.Reason),
			logging.Error(out.Err),
		)
	}
}

// RecentRecords returns the record window, oldest first.
func (s *BridgeService) RecentRecords() []*record.Record {
	return s.window.Snapshot()
}

// Stats returns the current counters.
func (s *BridgeService) Stats() metrics.Snapshot {
	return s.recorder.Snapshot()
}

// WindowLen returns the number of records in the window.
func (s *BridgeService) WindowLen() int {
	return s.window.Len()
}

// WindowCap returns the window capacity.
func (s *BridgeService) WindowCap() int {
	return s.window.Cap()
}

// KeyCase returns the case policy applied to stored records.
func (s *BridgeService) KeyCase() record.KeyCase {
	return s.fields.KeyCase()
}
