// Package failures captures failed job executions and replays them on
// operator request.
package failures

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/metrics"
)

const saveTimeout = 10 * time.Second

// detailer is implemented by errors that carry more context than Error().
type detailer interface {
	Detail() string
}

// Recorder persists one FailedMessage per failed job execution.
// It is the failure hook of the job backend.
type Recorder struct {
	store   core.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store core.Store, m *metrics.Metrics, logger *slog.Logger) *Recorder {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Recorder{store: store, metrics: m, logger: logger}
}

// RecordJobFailure builds and saves the failure record. It never fails: a
// record that cannot be saved is logged with enough context to recover it
// by hand.
func (r *Recorder) RecordJobFailure(ctx context.Context, jobKey string, req *core.DispatchJobRequest, correlationID string, err error) {
	if req == nil {
		r.logger.Error("job failed without a request", "job", jobKey, "correlation_id", correlationID, "error", err)
		return
	}

	record := &core.FailedMessage{
		TopicName:        req.TopicName,
		SubscriptionName: req.SubscriptionName,
		Subject:          req.Subject,
		SequenceNumber:   req.SequenceNumber,
		Message:          req.Message,
		ErrorSummary:     summary(err),
		ErrorDetail:      detail(err),
		CorrelationID:    correlationID,
		CreatedAt:        time.Now().UTC(),
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if saveErr := r.store.SaveFailedMessage(saveCtx, record); saveErr != nil {
		r.logger.Error("failed to persist failed message",
			"job", jobKey,
			"topic", req.TopicName,
			"subscription", req.SubscriptionName,
			"subject", req.Subject,
			"sequence_number", req.SequenceNumber,
			"correlation_id", correlationID,
			"job_error", record.ErrorSummary,
			"error", saveErr,
		)
		return
	}

	r.metrics.FailedRecords.Inc()
	r.logger.Info("recorded failed message",
		"id", record.ID,
		"job", jobKey,
		"topic", req.TopicName,
		"subscription", req.SubscriptionName,
		"correlation_id", correlationID,
	)
}

func summary(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func detail(err error) string {
	if err == nil {
		return ""
	}
	var d detailer
	if errors.As(err, &d) {
		return d.Detail()
	}
	return summary(err)
}
