// Package subscriber runs the consume loop of every configured subscription
// and supervises them as one unit.
package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/logger"
	"github.com/sevigo/metroid/internal/metrics"
	"github.com/sevigo/metroid/internal/routing"
)

// DispatchError is returned when the job backend did not accept a matched
// message. The message is left unresolved and the Runner stops.
type DispatchError struct {
	TopicName        string
	SubscriptionName string
	SequenceNumber   int64
	Job              string
	Err              error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("failed to dispatch message %d of %s/%s to job %q: %v",
		e.SequenceNumber, e.TopicName, e.SubscriptionName, e.Job, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// LifecycleError is returned when the broker rejects a complete or defer.
type LifecycleError struct {
	Action         string
	SequenceNumber int64
	Err            error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("failed to %s message %d: %v", e.Action, e.SequenceNumber, e.Err)
}

func (e *LifecycleError) Unwrap() error { return e.Err }

// Runner is the consume loop of one subscription. Messages are handled one
// at a time: each reaches complete before the next one is pulled.
type Runner struct {
	sub        core.SubscriptionConfig
	rules      []routing.Rule
	receiver   core.Receiver
	dispatcher core.JobDispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewRunner creates a Runner for sub routing through rules.
func NewRunner(sub core.SubscriptionConfig, rules []routing.Rule, receiver core.Receiver, dispatcher core.JobDispatcher, m *metrics.Metrics, log *slog.Logger) *Runner {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Runner{
		sub:        sub,
		rules:      rules,
		receiver:   receiver,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger.ForSubscription(log, sub.TopicName, sub.SubscriptionName),
	}
}

// NewRunners creates one Runner per subscription in reg.
func NewRunners(reg *routing.Registry, receiver core.Receiver, dispatcher core.JobDispatcher, m *metrics.Metrics, log *slog.Logger) []Loop {
	subs := reg.Subscriptions()
	loops := make([]Loop, 0, len(subs))
	for _, sub := range subs {
		rules := reg.Handlers(sub.TopicName, sub.SubscriptionName)
		loops = append(loops, NewRunner(sub, rules, receiver, dispatcher, m, log))
	}
	return loops
}

// TopicName implements Loop.
func (r *Runner) TopicName() string { return r.sub.TopicName }

// SubscriptionName implements Loop.
func (r *Runner) SubscriptionName() string { return r.sub.SubscriptionName }

// Run consumes the subscription until the stream ends, ctx is cancelled, or
// a message cannot be handed off. It returns nil when the broker closes the
// stream and ctx.Err() on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("connecting", "target", r.sub.ConnectionTarget, "handlers", len(r.rules))

	conn, err := r.receiver.Connect(ctx, r.sub.ConnectionTarget)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", r.sub.ConnectionTarget, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			r.logger.Warn("failed to close connection", "error", cerr)
		}
	}()

	stream, err := conn.OpenStream(ctx, r.sub.TopicName, r.sub.SubscriptionName)
	if err != nil {
		return fmt.Errorf("failed to open subscription stream: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			r.logger.Warn("failed to close subscription stream", "error", cerr)
		}
	}()

	r.logger.Info("receiving messages")
	for {
		msg, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, core.ErrStreamClosed) {
				r.logger.Info("subscription stream ended")
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to receive message: %w", err)
		}

		if err := r.handle(ctx, stream, msg); err != nil {
			return err
		}
	}
}

// handle resolves exactly one message: dispatched then completed, or
// completed as unroutable.
func (r *Runner) handle(ctx context.Context, stream core.Stream, msg *core.InboundMessage) error {
	r.metrics.MessagesReceived.WithLabelValues(r.sub.TopicName, r.sub.SubscriptionName).Inc()
	log := r.logger.With("sequence_number", msg.SequenceNumber)

	body, subject := r.decode(log, msg)
	if subject == nil {
		r.metrics.MessagesUnroutable.WithLabelValues(r.sub.TopicName, r.sub.SubscriptionName).Inc()
		log.Info("no handler matched, completing message")
		return r.complete(ctx, stream, msg)
	}
	msg.Subject = subject
	log = log.With("subject", *subject)

	route, matched, err := routing.FirstMatch(r.rules, *subject)
	if err != nil {
		return fmt.Errorf("failed to route message %d: %w", msg.SequenceNumber, err)
	}
	if !matched {
		r.metrics.MessagesUnroutable.WithLabelValues(r.sub.TopicName, r.sub.SubscriptionName).Inc()
		log.Info("no handler matched, completing message")
		return r.complete(ctx, stream, msg)
	}

	req := &core.DispatchJobRequest{
		Message:          body,
		TopicName:        r.sub.TopicName,
		SubscriptionName: r.sub.SubscriptionName,
		Subject:          route.Rule.Subject,
		SequenceNumber:   msg.SequenceNumber,
	}
	if err := r.dispatcher.Submit(ctx, route.Rule.Job, req); err != nil {
		return &DispatchError{
			TopicName:        r.sub.TopicName,
			SubscriptionName: r.sub.SubscriptionName,
			SequenceNumber:   msg.SequenceNumber,
			Job:              route.Rule.Job,
			Err:              err,
		}
	}
	r.metrics.MessagesDispatched.WithLabelValues(r.sub.TopicName, r.sub.SubscriptionName, route.Rule.Job).Inc()
	log.Info("dispatched message", "job", route.Rule.Job, "rule", route.Index)

	return r.complete(ctx, stream, msg)
}

// decode parses the body as a JSON object and extracts its string subject.
// A nil subject means the message cannot be routed.
func (r *Runner) decode(log *slog.Logger, msg *core.InboundMessage) (map[string]any, *string) {
	var body map[string]any
	if err := json.Unmarshal(msg.Body, &body); err != nil || body == nil {
		r.metrics.DecodeErrors.WithLabelValues(r.sub.TopicName, r.sub.SubscriptionName).Inc()
		if err == nil {
			err = errors.New("body is not a JSON object")
		}
		log.Warn("failed to decode message body", "raw", string(msg.Body), "error", err)
		return nil, nil
	}

	subject, ok := body["subject"].(string)
	if !ok {
		log.Warn("message has no string subject", "raw", string(msg.Body))
		return body, nil
	}
	return body, &subject
}

func (r *Runner) complete(ctx context.Context, stream core.Stream, msg *core.InboundMessage) error {
	if err := stream.Complete(ctx, msg); err != nil {
		return &LifecycleError{Action: "complete", SequenceNumber: msg.SequenceNumber, Err: err}
	}
	return nil
}
