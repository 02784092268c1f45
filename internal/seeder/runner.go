package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/telhawk-systems/telhawk-bridge/internal/messaging"
)

// Options controls a seeding run.
type Options struct {
	Subject string
	Count   int
	Format  Format
	// Interval between messages; zero publishes as fast as possible.
	Interval time.Duration
	Seed     int64
}

// Result summarizes a run.
type Result struct {
	Published int           `json:"published"`
	ByFormat  map[Format]int `json:"by_format,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Run publishes opts.Count generated transactions to pub. It stops early when
// ctx is done or a publish fails.
func Run(ctx context.Context, pub messaging.Publisher, opts Options) (*Result, error) {
	if opts.Count < 1 {
		return nil, fmt.Errorf("count must be at least 1, got %d", opts.Count)
	}
	if opts.Subject == "" {
		opts.Subject = messaging.SubjectCDCTransactions
	}
	if opts.Format == "" {
		opts.Format = FormatStruct
	}

	gen := NewGenerator(opts.Seed)
	res := &Result{ByFormat: make(map[Format]int)}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	var ticker *time.Ticker
	if opts.Interval > 0 {
		ticker = time.NewTicker(opts.Interval)
		defer ticker.Stop()
	}

	for i := 0; i < opts.Count; i++ {
		if ticker != nil && i > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-ticker.C:
			}
		}

		format := opts.Format
		if format == FormatMixed {
			format = concreteFormats[gen.faker.Number(0, len(concreteFormats)-1)]
		}

		data, err := gen.Encode(format, gen.Transaction())
		if err != nil {
			return res, err
		}
		if err := pub.Publish(ctx, opts.Subject, data); err != nil {
			return res, fmt.Errorf("publish message %d: %w", i+1, err)
		}
		res.Published++
		res.ByFormat[format]++
	}
	return res, nil
}
