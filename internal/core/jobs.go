// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing the broker transport, the job backend and the failure store to be
// swapped without touching the dispatch engine.
package core

import (
	"context"
)

//go:generate mockgen -destination=../../mocks/mock_job_dispatcher.go -package=mocks . JobDispatcher

// JobDispatcher defines the contract for a system that can accept and queue
// background jobs for asynchronous processing. This interface decouples the
// subscription consume loop from the job execution mechanism.
type JobDispatcher interface {
	// Submit hands a request to the job identified by jobKey.
	// A nil error means the job backend accepted the request; it says nothing
	// about whether the job itself will succeed.
	Submit(ctx context.Context, jobKey string, req *DispatchJobRequest) error
}

// Job represents a single, executable unit of work that can be processed by the
// job backend. Each job is triggered by a DispatchJobRequest built from an
// inbound broker message.
type Job interface {
	// Run executes the job's logic. It returns an error if the job fails;
	// the backend retries and eventually records the failure.
	Run(ctx context.Context, req *DispatchJobRequest) error
}

// JobFunc adapts a plain function to the Job interface.
type JobFunc func(ctx context.Context, req *DispatchJobRequest) error

// Run implements Job.
func (f JobFunc) Run(ctx context.Context, req *DispatchJobRequest) error { return f(ctx, req) }

// DispatchJobRequest is exactly what is handed to the job backend. Its shape is
// the contract between the consume loop and the jobs, so it must survive
// encoding on the job queue unchanged.
type DispatchJobRequest struct {
	Message          map[string]any `json:"message" msgpack:"message"`
	TopicName        string         `json:"topic_name" msgpack:"topic_name"`
	SubscriptionName string         `json:"subscription_name" msgpack:"subscription_name"`
	Subject          string         `json:"subject" msgpack:"subject"`
	SequenceNumber   int64          `json:"sequence_number" msgpack:"sequence_number"`
}
