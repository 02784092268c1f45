// Package consumer runs the stream workers that feed raw messages into the
// bridge service.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/telhawk-systems/telhawk-bridge/internal/logging"
	"github.com/telhawk-systems/telhawk-bridge/internal/messaging"
	"github.com/telhawk-systems/telhawk-bridge/internal/normalizer"
)

// Processor normalizes one raw message.
type Processor interface {
	ProcessMessage(raw []byte) normalizer.Outcome
}

// DeadLetter captures messages that were not normalized.
type DeadLetter interface {
	Write(ctx context.Context, msg *messaging.Message, out normalizer.Outcome) error
}

// Source attaches one worker's handler to the stream.
type Source interface {
	Start(ctx context.Context, worker int, handler messaging.MessageHandler) (stop func(), err error)
}

// Pool runs a fixed number of workers against one Source.
type Pool struct {
	source     Source
	processor  Processor
	deadLetter DeadLetter
	workers    int
	logger     *slog.Logger

	mu    sync.Mutex
	stops []func()
}

// NewPool returns a pool of workers. deadLetter may be nil.
func NewPool(source Source, processor Processor, deadLetter DeadLetter, workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		source:     source,
		processor:  processor,
		deadLetter: deadLetter,
		workers:    workers,
		logger:     logger,
	}
}

// Start attaches every worker. If any worker fails to start, the ones already
// started are stopped.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.stops) > 0 {
		return errors.New("consumer pool already started")
	}

	for w := 0; w < p.workers; w++ {
		stop, err := p.source.Start(ctx, w, p.Handler(w))
		if err != nil {
			p.stopLocked()
			return fmt.Errorf("start worker %d: %w", w, err)
		}
		p.stops = append(p.stops, stop)
	}

	p.logger.Info("consumer workers started", slog.Int("workers", p.workers))
	return nil
}

// Stop detaches every worker.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Pool) stopLocked() {
	for _, stop := range p.stops {
		stop()
	}
	p.stops = nil
}

// Handler returns worker's message handler. It always returns nil: every
// message is acknowledged once processed, whatever its outcome.
func (p *Pool) Handler(worker int) messaging.MessageHandler {
	logger := p.logger.With(logging.Worker(worker))

	return func(ctx context.Context, msg *messaging.Message) error {
		out := p.processor.ProcessMessage(msg.Data)
		if !out.Failed() || p.deadLetter == nil {
			return nil
		}

		if err := p.deadLetter.Write(ctx, msg, out); err != nil {
			logger.Warn("failed to capture message in DLQ",
				logging.Subject(msg.Subject),
				logging.Reason(out.Reason),
				logging.Error(err),
			)
		}
		return nil
	}
}
