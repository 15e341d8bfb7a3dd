// Package natsbus implements the broker capabilities over NATS JetStream.
// A topic is a JetStream stream and a subscription is a durable pull
// consumer on it.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/sevigo/metroid/internal/config"
	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/util"
)

// DeferredReason is attached to messages set aside with Defer.
const DeferredReason = "deferred"

// Receiver implements core.Receiver.
type Receiver struct {
	cfg    config.NATSConfig
	logger *slog.Logger
}

// NewReceiver creates a Receiver using cfg for every connection.
func NewReceiver(cfg config.NATSConfig, logger *slog.Logger) *Receiver {
	return &Receiver{cfg: cfg, logger: logger}
}

// Connect dials target, a nats:// or tls:// URL.
func (r *Receiver) Connect(_ context.Context, target string) (core.Connection, error) {
	return r.Dial(target)
}

// Dial is Connect returning the concrete connection, which also serves
// FetchDeferred.
func (r *Receiver) Dial(target string) (*Connection, error) {
	opts := []nats.Option{
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				r.logger.Warn("disconnected from nats", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			r.logger.Info("reconnected to nats", "url", nc.ConnectedUrlRedacted())
		}),
	}
	if r.cfg.ClientName != "" {
		opts = append(opts, nats.Name(r.cfg.ClientName))
	}
	if r.cfg.ConnectTimeout > 0 {
		opts = append(opts, nats.Timeout(r.cfg.ConnectTimeout))
	}
	if r.cfg.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(r.cfg.MaxReconnects))
	}

	nc, err := nats.Connect(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}
	return &Connection{nc: nc, js: js, cfg: r.cfg, logger: r.logger}, nil
}

// Connection implements core.Connection.
type Connection struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	cfg    config.NATSConfig
	logger *slog.Logger
}

// OpenStream binds the durable consumer subscriptionName on stream
// topicName, creating it if it does not exist yet.
func (c *Connection) OpenStream(ctx context.Context, topicName, subscriptionName string) (core.Stream, error) {
	stream, err := c.js.Stream(ctx, topicName)
	if err != nil {
		return nil, fmt.Errorf("failed to access stream %q: %w", topicName, err)
	}

	consumer, err := c.getOrCreateConsumer(ctx, stream, ConsumerName(subscriptionName))
	if err != nil {
		return nil, err
	}

	iter, err := consumer.Messages(jetstream.PullMaxMessages(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create message iterator: %w", err)
	}
	return &subscriptionStream{iter: iter, pending: make(map[int64]jetstream.Msg)}, nil
}

func (c *Connection) getOrCreateConsumer(ctx context.Context, stream jetstream.Stream, name string) (jetstream.Consumer, error) {
	consumer, err := stream.Consumer(ctx, name)
	if err == nil {
		return consumer, nil
	}
	if !errors.Is(err, jetstream.ErrConsumerNotFound) {
		return nil, fmt.Errorf("failed to access consumer %q: %w", name, err)
	}

	c.logger.Info("consumer not found, creating it", "consumer", name)
	consumer, err = stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		Name:      name,
		Durable:   name,
		AckPolicy: jetstream.AckExplicitPolicy,
		AckWait:   c.cfg.AckWait,
	})
	if err == nil {
		return consumer, nil
	}
	if !errors.Is(err, jetstream.ErrConsumerNameAlreadyInUse) {
		return nil, fmt.Errorf("failed to create consumer %q: %w", name, err)
	}

	// Another process created it first.
	consumer, err = stream.Consumer(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to access consumer %q: %w", name, err)
	}
	return consumer, nil
}

// FetchDeferred returns a message that was set aside with Defer, by its
// stream sequence number.
func (c *Connection) FetchDeferred(ctx context.Context, topicName string, sequenceNumber int64) (*core.InboundMessage, error) {
	stream, err := c.js.Stream(ctx, topicName)
	if err != nil {
		return nil, fmt.Errorf("failed to access stream %q: %w", topicName, err)
	}
	raw, err := stream.GetMsg(ctx, uint64(sequenceNumber))
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return nil, fmt.Errorf("message %d on %q: %w", sequenceNumber, topicName, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch message %d: %w", sequenceNumber, err)
	}
	return &core.InboundMessage{SequenceNumber: int64(raw.Sequence), Body: raw.Data}, nil
}

// Close closes the NATS connection.
func (c *Connection) Close() error {
	c.nc.Close()
	return nil
}

// subscriptionStream implements core.Stream. Delivered messages are kept
// until they are completed or deferred.
type subscriptionStream struct {
	iter jetstream.MessagesContext

	mu      sync.Mutex
	pending map[int64]jetstream.Msg
}

func (s *subscriptionStream) Next(ctx context.Context) (*core.InboundMessage, error) {
	stop := context.AfterFunc(ctx, s.iter.Stop)
	msg, err := s.iter.Next()
	stop()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, jetstream.ErrMsgIteratorClosed) {
			return nil, core.ErrStreamClosed
		}
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}

	meta, err := msg.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read message metadata: %w", err)
	}
	seq := int64(meta.Sequence.Stream)

	s.mu.Lock()
	s.pending[seq] = msg
	s.mu.Unlock()

	return &core.InboundMessage{SequenceNumber: seq, Body: msg.Data()}, nil
}

func (s *subscriptionStream) take(seq int64) (jetstream.Msg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.pending[seq]
	if !ok {
		return nil, fmt.Errorf("message %d is not pending on this stream", seq)
	}
	delete(s.pending, seq)
	return msg, nil
}

// Complete acknowledges the message and waits for the server to confirm.
func (s *subscriptionStream) Complete(ctx context.Context, in *core.InboundMessage) error {
	msg, err := s.take(in.SequenceNumber)
	if err != nil {
		return err
	}
	return msg.DoubleAck(ctx)
}

// Defer stops redelivery; the message stays in the stream for FetchDeferred.
func (s *subscriptionStream) Defer(_ context.Context, in *core.InboundMessage) error {
	msg, err := s.take(in.SequenceNumber)
	if err != nil {
		return err
	}
	return msg.TermWithReason(DeferredReason)
}

func (s *subscriptionStream) Close() error {
	s.iter.Stop()
	return nil
}

// ConsumerName maps a subscription name to a valid JetStream consumer name.
func ConsumerName(subscriptionName string) string {
	return util.SafeBrokerName(subscriptionName)
}
