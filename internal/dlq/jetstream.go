// Package dlq captures messages the bridge could not normalize on a
// JetStream dead-letter stream. Capture is informational: the original
// message is still acknowledged.
package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/telhawk-bridge/internal/messaging"
	"github.com/telhawk-systems/telhawk-bridge/internal/messaging/nats"
	"github.com/telhawk-systems/telhawk-bridge/internal/normalizer"
)

// FailedMessage is the dead-letter payload.
type FailedMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason"`
	Error     string    `json:"error,omitempty"`
	Payload   string    `json:"payload"`
}

type publisher interface {
	PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error)
}

type streamInfo interface {
	Info(ctx context.Context, opts ...jetstream.StreamInfoOpt) (*jetstream.StreamInfo, error)
}

// JetStreamQueue publishes failed messages to bridge.dlq.<reason>. A nil
// *JetStreamQueue is a disabled queue.
type JetStreamQueue struct {
	pub     publisher
	stream  streamInfo
	logger  *slog.Logger
	written atomic.Uint64
	failed  atomic.Uint64
}

// NewJetStreamQueue provisions the DLQ stream and returns a queue on it.
func NewJetStreamQueue(ctx context.Context, js *nats.JetStreamClient, streamName string, logger *slog.Logger) (*JetStreamQueue, error) {
	if js == nil {
		return nil, errors.New("jetstream client is nil")
	}

	cfg := nats.DLQStream(streamName)
	stream, err := js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	q := newQueue(js, stream, logger)
	q.logger.Info("DLQ stream ready", slog.String("stream", cfg.Name))
	return q, nil
}

func newQueue(pub publisher, stream streamInfo, logger *slog.Logger) *JetStreamQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &JetStreamQueue{pub: pub, stream: stream, logger: logger}
}

// Write publishes the failed message msg with its routing outcome.
func (q *JetStreamQueue) Write(ctx context.Context, msg *messaging.Message, out normalizer.Outcome) error {
	if q == nil {
		return nil
	}

	failed := FailedMessage{
		Timestamp: time.Now().UTC(),
		Outcome:   out.Kind.String(),
		Reason:    out.Reason,
		Payload:   out.Raw,
	}
	if msg != nil {
		failed.Subject = msg.Subject
		if failed.Payload == "" {
			failed.Payload = string(msg.Data)
		}
	}
	if out.Err != nil {
		failed.Error = out.Err.Error()
	}

	data, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	subject := messaging.DLQSubject(out.Reason)
	if _, err := q.pub.PublishSync(ctx, subject, data); err != nil {
		q.failed.Add(1)
		return fmt.Errorf("publish dlq entry to %s: %w", subject, err)
	}

	q.written.Add(1)
	q.logger.Debug("DLQ captured message", slog.String("subject", subject))
	return nil
}

// Stats reports local write counts and the stream state.
func (q *JetStreamQueue) Stats(ctx context.Context) map[string]any {
	if q == nil {
		return map[string]any{"enabled": false, "backend": "jetstream"}
	}

	stats := map[string]any{
		"enabled":       true,
		"backend":       "jetstream",
		"written_local": q.written.Load(),
		"failed_local":  q.failed.Load(),
	}

	info, err := q.stream.Info(ctx)
	if err != nil {
		stats["error"] = err.Error()
		return stats
	}
	if info == nil {
		stats["error"] = "stream info unavailable"
		return stats
	}
	stats["total_messages"] = info.State.Msgs
	stats["total_bytes"] = info.State.Bytes
	stats["first_seq"] = info.State.FirstSeq
	stats["last_seq"] = info.State.LastSeq
	return stats
}
