package consumer

import (
	"context"

	"github.com/telhawk-systems/telhawk-bridge/internal/messaging"
	"github.com/telhawk-systems/telhawk-bridge/internal/messaging/nats"
)

// JetStreamSource consumes from a durable pull consumer. Every worker runs its
// own consume loop on the same durable, so JetStream spreads messages across
// them.
type JetStreamSource struct {
	Client   *nats.JetStreamClient
	Stream   string
	Consumer string
}

func (s *JetStreamSource) Start(ctx context.Context, _ int, handler messaging.MessageHandler) (func(), error) {
	return s.Client.ConsumeMessages(ctx, s.Stream, s.Consumer, handler)
}

// QueueSource consumes from a core NATS queue group: one subscription per
// worker.
type QueueSource struct {
	Subscriber messaging.Subscriber
	Subject    string
	Queue      string
}

func (s *QueueSource) Start(_ context.Context, _ int, handler messaging.MessageHandler) (func(), error) {
	sub, err := s.Subscriber.QueueSubscribe(s.Subject, s.Queue, handler)
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
