// Package metrics exposes Prometheus collectors for the dispatch engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors updated by the subscription runners, the job
// backend and the failure recorder.
type Metrics struct {
	MessagesReceived   *prometheus.CounterVec
	MessagesDispatched *prometheus.CounterVec
	MessagesUnroutable *prometheus.CounterVec
	DecodeErrors       *prometheus.CounterVec
	JobsSucceeded      *prometheus.CounterVec
	JobsFailed         *prometheus.CounterVec
	FailedRecords      prometheus.Counter
	FailedPublishes    prometheus.Counter
}

// New creates the collectors and registers them with reg.
// A nil reg leaves the collectors unregistered, which is what tests use.
func New(reg prometheus.Registerer) *Metrics {
	subLabels := []string{"topic", "subscription"}
	m := &Metrics{
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metroid",
			Name:      "messages_received_total",
			Help:      "Messages pulled from a subscription.",
		}, subLabels),
		MessagesDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metroid",
			Name:      "messages_dispatched_total",
			Help:      "Messages handed to a handler job.",
		}, append(subLabels, "job")),
		MessagesUnroutable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metroid",
			Name:      "messages_unroutable_total",
			Help:      "Messages completed without a matching handler.",
		}, subLabels),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metroid",
			Name:      "message_decode_errors_total",
			Help:      "Messages whose body could not be decoded.",
		}, subLabels),
		JobsSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metroid",
			Name:      "jobs_succeeded_total",
			Help:      "Job executions that completed successfully.",
		}, []string{"job"}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metroid",
			Name:      "jobs_failed_total",
			Help:      "Job executions that failed after all retries.",
		}, []string{"job"}),
		FailedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metroid",
			Name:      "failed_message_records_total",
			Help:      "Failed message records persisted.",
		}),
		FailedPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metroid",
			Name:      "failed_publishes_total",
			Help:      "Outbound publishes that failed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.MessagesReceived,
			m.MessagesDispatched,
			m.MessagesUnroutable,
			m.DecodeErrors,
			m.JobsSucceeded,
			m.JobsFailed,
			m.FailedRecords,
			m.FailedPublishes,
		)
	}
	return m
}

// NewNop returns unregistered collectors.
func NewNop() *Metrics {
	return New(nil)
}
