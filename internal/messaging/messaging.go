// Package messaging defines the broker-facing types used by the stream
// consumers, the dead-letter capture and the seeder, independent of the
// broker implementation.
package messaging

import (
	"context"
	"time"
)

// Message is a message received from or sent to the broker.
type Message struct {
	Subject string
	Data    []byte
	// Metadata holds message headers.
	Metadata  map[string]string
	Timestamp time.Time
}

// MessageHandler processes one received message. A returned error asks the
// broker for redelivery where the transport supports it.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
	Subject() string
	IsValid() bool
}

// Publisher publishes raw payloads.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Subscriber creates load-balanced subscriptions.
type Subscriber interface {
	// QueueSubscribe delivers each message to one member of the queue group.
	QueueSubscribe(subject, queue string, handler MessageHandler) (Subscription, error)
}

// Client is a connected broker client.
type Client interface {
	Publisher
	Subscriber
	Drain() error
	IsConnected() bool
	Close() error
}
