package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by Store lookups for missing records.
var ErrNotFound = errors.New("record not found")

// FailedMessage records a job execution that failed inside the job backend.
// It is created once per failure and deleted once a manual retry succeeds.
type FailedMessage struct {
	ID               int64          `db:"id" json:"id"`
	TopicName        string         `db:"topic_name" json:"topic_name"`
	SubscriptionName string         `db:"subscription_name" json:"subscription_name"`
	Subject          string         `db:"subject" json:"subject"`
	SequenceNumber   int64          `db:"sequence_number" json:"sequence_number"`
	Message          map[string]any `db:"-" json:"message"`
	ErrorSummary     string         `db:"error_summary" json:"error_summary"`
	ErrorDetail      string         `db:"error_detail" json:"error_detail"`
	CorrelationID    string         `db:"correlation_id" json:"correlation_id"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// FailedPublish records an outbound publish that could not be delivered.
type FailedPublish struct {
	ID            int64           `db:"id" json:"id"`
	TopicName     string          `db:"topic_name" json:"topic_name"`
	EventType     string          `db:"event_type" json:"event_type"`
	Subject       string          `db:"subject" json:"subject"`
	DataVersion   string          `db:"data_version" json:"data_version"`
	EventTime     time.Time       `db:"event_time" json:"event_time"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	CorrelationID string          `db:"correlation_id" json:"correlation_id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

//go:generate mockgen -destination=../../mocks/mock_store.go -package=mocks . Store

// Store defines the persistence operations for failure records.
// Writes are single-row inserts and deletes by primary key.
type Store interface {
	SaveFailedMessage(ctx context.Context, msg *FailedMessage) error
	GetFailedMessage(ctx context.Context, id int64) (*FailedMessage, error)
	ListFailedMessages(ctx context.Context, limit int) ([]*FailedMessage, error)
	DeleteFailedMessage(ctx context.Context, id int64) error

	SaveFailedPublish(ctx context.Context, msg *FailedPublish) error
	ListFailedPublishes(ctx context.Context) ([]*FailedPublish, error)
	DeleteFailedPublish(ctx context.Context, id int64) error
}
