package subscriber

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Loop is a long-running subscription consumer.
type Loop interface {
	Run(ctx context.Context) error
	TopicName() string
	SubscriptionName() string
}

// RunnerEndedError reports the subscription whose loop ended first and
// brought the others down. Err is nil when the loop ended cleanly.
type RunnerEndedError struct {
	TopicName        string
	SubscriptionName string
	Err              error
}

func (e *RunnerEndedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("subscription %s/%s ended without an error", e.TopicName, e.SubscriptionName)
	}
	return fmt.Sprintf("subscription %s/%s ended with an error: %v", e.TopicName, e.SubscriptionName, e.Err)
}

func (e *RunnerEndedError) Unwrap() error { return e.Err }

// Supervisor runs every Loop concurrently. No loop is expected to end: the
// first one that does cancels the rest and fails the whole run.
type Supervisor struct {
	loops  []Loop
	logger *slog.Logger
}

// NewSupervisor creates a Supervisor over loops.
func NewSupervisor(loops []Loop, logger *slog.Logger) *Supervisor {
	return &Supervisor{loops: loops, logger: logger}
}

// Run blocks until a loop ends or ctx is cancelled. Cancellation of ctx is a
// clean shutdown and returns nil; any loop ending on its own returns a
// *RunnerEndedError.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.loops) == 0 {
		s.logger.Warn("no subscriptions configured, idling until shutdown")
		<-ctx.Done()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, loop := range s.loops {
		loop := loop
		g.Go(func() error {
			err := loop.Run(gctx)
			log := s.logger.With("topic", loop.TopicName(), "subscription", loop.SubscriptionName())

			switch {
			case ctx.Err() != nil:
				log.Info("subscription stopped for shutdown")
				return nil
			case gctx.Err() != nil:
				log.Info("subscription stopped because another subscription ended")
				return nil
			case err == nil:
				log.Error("subscription ended without an error")
			default:
				log.Error("subscription ended with an error", "error", err)
			}
			return &RunnerEndedError{
				TopicName:        loop.TopicName(),
				SubscriptionName: loop.SubscriptionName(),
				Err:              err,
			}
		})
	}

	s.logger.Info("supervising subscriptions", "count", len(s.loops))
	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}
