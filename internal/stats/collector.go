package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/telhawk-systems/telhawk-bridge/internal/metrics"
)

// DefaultFlushInterval is used when no interval is configured.
const DefaultFlushInterval = 15 * time.Second

type publisher interface {
	Publish(ctx context.Context, snap metrics.Snapshot) error
}

// Collector periodically publishes the local counters.
type Collector struct {
	client        publisher
	source        func() metrics.Snapshot
	flushInterval time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	lastFlush time.Time
	lastErr   error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector starts a collector publishing source() every flushInterval.
func NewCollector(client publisher, source func() metrics.Snapshot, flushInterval time.Duration, logger *slog.Logger) *Collector {
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{
		client:        client,
		source:        source,
		flushInterval: flushInterval,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}

	c.wg.Add(1)
	go c.flushLoop()
	return c
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			// final flush on shutdown
			c.flush()
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *Collector) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap := c.source()
	err := c.client.Publish(ctx, snap)

	c.mu.Lock()
	c.lastErr = err
	if err == nil {
		c.lastFlush = time.Now()
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("failed to flush bridge stats", slog.String("error", err.Error()))
		return
	}
	c.logger.Debug("flushed bridge stats", slog.Int64("messages_processed", snap.MessagesProcessed))
}

// FlushNow publishes immediately.
func (c *Collector) FlushNow() {
	c.flush()
}

// LastFlush returns the time of the last successful flush and the error of
// the last attempt.
func (c *Collector) LastFlush() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFlush, c.lastErr
}

// Stop stops the loop after a final flush.
func (c *Collector) Stop() {
	c.cancel()
	c.wg.Wait()
}
