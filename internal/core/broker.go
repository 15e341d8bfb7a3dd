package core

import (
	"context"
	"errors"
)

// ErrStreamClosed is returned by Stream.Next when the broker ends the stream.
var ErrStreamClosed = errors.New("subscription stream closed")

// InboundMessage is one delivery pulled from a subscription.
type InboundMessage struct {
	// SequenceNumber is the broker-assigned identity used for Complete/Defer.
	SequenceNumber int64
	Body           []byte
	// Subject is nil when the body could not be decoded into an event
	// envelope carrying a string subject.
	Subject *string
}

// Receiver connects to the broker.
type Receiver interface {
	Connect(ctx context.Context, target string) (Connection, error)
}

// Connection is an open broker connection that can serve subscription streams.
type Connection interface {
	OpenStream(ctx context.Context, topicName, subscriptionName string) (Stream, error)
	Close() error
}

// Stream delivers the messages of one subscription in push order.
type Stream interface {
	// Next blocks until the next message arrives, ctx is done, or the stream ends.
	Next(ctx context.Context) (*InboundMessage, error)
	// Complete acknowledges msg as processed; the broker will not redeliver it.
	Complete(ctx context.Context, msg *InboundMessage) error
	// Defer sets msg aside; it is only delivered again when fetched by sequence number.
	Defer(ctx context.Context, msg *InboundMessage) error
	Close() error
}
