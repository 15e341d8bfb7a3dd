package subscriber

import (
	"context"
	"fmt"
	"sync"

	"github.com/sevigo/metroid/internal/core"
)

// fakeStream serves a fixed list of messages and records every broker call.
type fakeStream struct {
	mu          sync.Mutex
	messages    []*core.InboundMessage
	pos         int
	block       bool // wait for ctx instead of ending the stream when drained
	completeErr error
	calls       []string
	closed      bool
}

func (s *fakeStream) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeStream) Next(ctx context.Context) (*core.InboundMessage, error) {
	s.mu.Lock()
	if s.pos < len(s.messages) {
		msg := s.messages[s.pos]
		s.pos++
		s.calls = append(s.calls, fmt.Sprintf("next:%d", msg.SequenceNumber))
		s.mu.Unlock()
		return msg, nil
	}
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, core.ErrStreamClosed
}

func (s *fakeStream) Complete(_ context.Context, msg *core.InboundMessage) error {
	s.record(fmt.Sprintf("complete:%d", msg.SequenceNumber))
	return s.completeErr
}

func (s *fakeStream) Defer(_ context.Context, msg *core.InboundMessage) error {
	s.record(fmt.Sprintf("defer:%d", msg.SequenceNumber))
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakeConnection struct {
	stream  *fakeStream
	openErr error
	closed  bool
	topic   string
	sub     string
}

func (c *fakeConnection) OpenStream(_ context.Context, topicName, subscriptionName string) (core.Stream, error) {
	c.topic, c.sub = topicName, subscriptionName
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.stream, nil
}

func (c *fakeConnection) Close() error {
	c.closed = true
	return nil
}

type fakeReceiver struct {
	conn       *fakeConnection
	connectErr error
	target     string
}

func (r *fakeReceiver) Connect(_ context.Context, target string) (core.Connection, error) {
	r.target = target
	if r.connectErr != nil {
		return nil, r.connectErr
	}
	return r.conn, nil
}

func newFakeReceiver(messages ...*core.InboundMessage) (*fakeReceiver, *fakeStream) {
	stream := &fakeStream{messages: messages}
	return &fakeReceiver{conn: &fakeConnection{stream: stream}}, stream
}

func message(seq int64, body string) *core.InboundMessage {
	return &core.InboundMessage{SequenceNumber: seq, Body: []byte(body)}
}

func event(seq int64, subject string) *core.InboundMessage {
	return message(seq, fmt.Sprintf(`{"subject":%q,"data":{"id":%d}}`, subject, seq))
}
