package failures

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/routing"
)

// RetryResult is the outcome reported to the operator for a retry request.
type RetryResult string

const (
	RetryResubmitted RetryResult = "retried"
	RetryNoHandler   RetryResult = "no_handler"
	RetryFailed      RetryResult = "failed"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 100

// HandlerLookup resolves the rule a failed record was originally routed to.
type HandlerLookup interface {
	LookupBySubject(topicName, subscriptionName, subject string) (routing.Rule, bool)
}

// Service is the operator entry point for failed messages.
type Service struct {
	store      core.Store
	handlers   HandlerLookup
	dispatcher core.JobDispatcher
	logger     *slog.Logger
}

// NewService creates a Service.
func NewService(store core.Store, handlers HandlerLookup, dispatcher core.JobDispatcher, logger *slog.Logger) *Service {
	return &Service{store: store, handlers: handlers, dispatcher: dispatcher, logger: logger}
}

// Retry resubmits the failed message id to the job of its handler rule.
// The record is deleted only after the job backend accepted the request.
func (s *Service) Retry(ctx context.Context, id int64) (RetryResult, error) {
	record, err := s.store.GetFailedMessage(ctx, id)
	if err != nil {
		return RetryFailed, fmt.Errorf("failed to load failed message %d: %w", id, err)
	}

	rule, ok := s.handlers.LookupBySubject(record.TopicName, record.SubscriptionName, record.Subject)
	if !ok {
		s.logger.Warn("no handler for failed message",
			"id", id,
			"topic", record.TopicName,
			"subscription", record.SubscriptionName,
			"subject", record.Subject,
		)
		return RetryNoHandler, fmt.Errorf("%w: topic=%q subscription=%q subject=%q",
			routing.ErrNoHandler, record.TopicName, record.SubscriptionName, record.Subject)
	}

	req := &core.DispatchJobRequest{
		Message:          record.Message,
		TopicName:        record.TopicName,
		SubscriptionName: record.SubscriptionName,
		Subject:          rule.Subject,
		SequenceNumber:   record.SequenceNumber,
	}
	if err := s.dispatcher.Submit(ctx, rule.Job, req); err != nil {
		return RetryFailed, fmt.Errorf("failed to resubmit failed message %d: %w", id, err)
	}

	if err := s.store.DeleteFailedMessage(ctx, id); err != nil {
		// The job is already queued; the record would be replayed twice.
		s.logger.Error("resubmitted failed message but could not delete it", "id", id, "error", err)
		return RetryResubmitted, fmt.Errorf("failed to delete resubmitted message %d: %w", id, err)
	}

	s.logger.Info("resubmitted failed message", "id", id, "job", rule.Job, "topic", record.TopicName, "subscription", record.SubscriptionName)
	return RetryResubmitted, nil
}

// List returns the newest failed messages, at most limit of them.
func (s *Service) List(ctx context.Context, limit int) ([]*core.FailedMessage, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.ListFailedMessages(ctx, limit)
}

// Get returns one failed message.
func (s *Service) Get(ctx context.Context, id int64) (*core.FailedMessage, error) {
	return s.store.GetFailedMessage(ctx, id)
}

// Delete drops a failed message without replaying it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteFailedMessage(ctx, id)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
