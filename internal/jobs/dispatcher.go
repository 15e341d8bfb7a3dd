// Package jobs is the job execution backend: a registry of job
// implementations and a worker pool that runs dispatched requests with retries.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sevigo/metroid/internal/config"
	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/correlation"
	"github.com/sevigo/metroid/internal/metrics"
)

// FailureHook is told about every job that failed all of its attempts.
// Implementations must not panic and must not block for long.
type FailureHook interface {
	RecordJobFailure(ctx context.Context, jobKey string, req *core.DispatchJobRequest, correlationID string, err error)
}

// Dispatcher implements core.JobDispatcher and manages a pool of worker
// goroutines that execute dispatched jobs.
type Dispatcher struct {
	registry *Registry
	hook     FailureHook
	cfg      config.JobsConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger

	jobQueue chan []byte // Encoded envelopes.
	mu       sync.RWMutex
	stopped  bool
	wg       sync.WaitGroup
}

// NewDispatcher initializes a dispatcher and starts its workers.
// If MaxWorkers is 0 or negative, it defaults to 1.
func NewDispatcher(cfg config.JobsConfig, registry *Registry, hook FailureHook, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 5 * time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}
	d := &Dispatcher{
		registry: registry,
		hook:     hook,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		jobQueue: make(chan []byte, cfg.QueueSize),
	}
	d.startWorkers()
	return d
}

// startWorkers launches MaxWorkers goroutines to process jobs from the queue.
func (d *Dispatcher) startWorkers() {
	for i := 0; i < d.cfg.MaxWorkers; i++ {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

// startWorker processes envelopes from the queue until it's closed.
func (d *Dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("starting job worker", "id", workerID)

	for payload := range d.jobQueue {
		d.process(workerID, payload)
	}

	d.logger.Debug("shutting down job worker", "id", workerID)
}

// Submit encodes req and queues it for the job registered under jobKey.
// It waits up to the configured submit timeout for queue space.
func (d *Dispatcher) Submit(ctx context.Context, jobKey string, req *core.DispatchJobRequest) error {
	if !d.registry.Has(jobKey) {
		return &SubmissionError{JobKey: jobKey, Err: ErrUnknownJob}
	}

	ctx, correlationID := correlation.Ensure(ctx)
	payload, err := encodeEnvelope(&envelope{JobKey: jobKey, CorrelationID: correlationID, Request: req})
	if err != nil {
		return &SubmissionError{JobKey: jobKey, Err: err}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return &SubmissionError{JobKey: jobKey, Err: ErrDispatcherStopped}
	}

	timer := time.NewTimer(d.cfg.SubmitTimeout)
	defer timer.Stop()

	select {
	case d.jobQueue <- payload:
		d.logger.Info("queued job",
			"job", jobKey,
			"topic", req.TopicName,
			"subscription", req.SubscriptionName,
			"sequence_number", req.SequenceNumber,
			"correlation_id", correlationID,
		)
		return nil
	case <-timer.C:
		return &SubmissionError{JobKey: jobKey, Err: ErrQueueFull}
	case <-ctx.Done():
		return &SubmissionError{JobKey: jobKey, Err: ctx.Err()}
	}
}

// process decodes one envelope and runs its job with retries.
func (d *Dispatcher) process(workerID int, payload []byte) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		d.logger.Error("dropping undecodable job", "worker_id", workerID, "error", err)
		return
	}

	ctx := correlation.WithID(context.Background(), env.CorrelationID)
	log := d.logger.With("job", env.JobKey, "correlation_id", env.CorrelationID, "worker_id", workerID)

	job, ok := d.registry.Get(env.JobKey)
	if !ok {
		d.fail(ctx, env, &ExecutionError{JobKey: env.JobKey, Err: fmt.Errorf("%w: %q", ErrUnknownJob, env.JobKey)})
		return
	}

	attempts := 0
	operation := func() error {
		attempts++
		return d.runOnce(ctx, job, env.Request)
	}
	notify := func(err error, next time.Duration) {
		log.Warn("job attempt failed, retrying", "attempt", attempts, "retry_in", next, "error", err)
	}

	if err := backoff.RetryNotify(operation, d.newBackOff(), notify); err != nil {
		d.fail(ctx, env, &ExecutionError{JobKey: env.JobKey, Attempts: attempts, Err: err})
		return
	}

	d.metrics.JobsSucceeded.WithLabelValues(env.JobKey).Inc()
	log.Info("job completed", "attempts", attempts)
}

// runOnce executes a single attempt, converting a panic into an error.
func (d *Dispatcher) runOnce(ctx context.Context, job core.Job, req *core.DispatchJobRequest) (err error) {
	if d.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.JobTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return job.Run(ctx, req)
}

func (d *Dispatcher) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if d.cfg.InitialBackoff > 0 {
		b.InitialInterval = d.cfg.InitialBackoff
	}
	if d.cfg.MaxBackoff > 0 {
		b.MaxInterval = d.cfg.MaxBackoff
	}
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(max(d.cfg.MaxRetries, 0)))
}

func (d *Dispatcher) fail(ctx context.Context, env *envelope, err *ExecutionError) {
	d.metrics.JobsFailed.WithLabelValues(env.JobKey).Inc()
	d.logger.Error("job failed",
		"job", env.JobKey,
		"attempts", err.Attempts,
		"correlation_id", env.CorrelationID,
		"error", err,
	)
	if d.hook != nil {
		d.hook.RecordJobFailure(ctx, env.JobKey, env.Request, env.CorrelationID, err)
	}
}

// Stop gracefully shuts down the dispatcher, waiting for queued jobs to finish.
// Submit returns ErrDispatcherStopped afterwards.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobQueue)
	d.mu.Unlock()

	d.logger.Info("stopping dispatcher and waiting for jobs to finish")
	d.wg.Wait()
	d.logger.Info("all jobs have finished")
}
