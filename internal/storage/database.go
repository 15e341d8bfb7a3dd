package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/sevigo/metroid/internal/core"
)

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a core.Store backed by Postgres.
func NewStore(db *sqlx.DB) core.Store {
	return &postgresStore{db: db}
}

// failedMessageRow is the table shape of core.FailedMessage; the message
// body lives in a JSONB column.
type failedMessageRow struct {
	core.FailedMessage
	RawMessage []byte `db:"message"`
}

func (r *failedMessageRow) toCore() (*core.FailedMessage, error) {
	msg := r.FailedMessage
	if len(r.RawMessage) > 0 {
		if err := json.Unmarshal(r.RawMessage, &msg.Message); err != nil {
			return nil, fmt.Errorf("failed to decode message of failed message %d: %w", r.ID, err)
		}
	}
	return &msg, nil
}

const failedMessageColumns = `id, topic_name, subscription_name, subject, sequence_number, message,
	error_summary, error_detail, correlation_id, created_at`

// SaveFailedMessage inserts msg and sets its ID.
func (s *postgresStore) SaveFailedMessage(ctx context.Context, msg *core.FailedMessage) error {
	body, err := json.Marshal(msg.Message)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO failed_messages
			(topic_name, subscription_name, subject, sequence_number, message, error_summary, error_detail, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	err = s.db.QueryRowxContext(ctx, query,
		msg.TopicName, msg.SubscriptionName, msg.Subject, msg.SequenceNumber, body,
		msg.ErrorSummary, msg.ErrorDetail, msg.CorrelationID, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("failed to insert failed message: %w", err)
	}
	return nil
}

// GetFailedMessage returns the record with id, or core.ErrNotFound.
func (s *postgresStore) GetFailedMessage(ctx context.Context, id int64) (*core.FailedMessage, error) {
	query := `SELECT ` + failedMessageColumns + ` FROM failed_messages WHERE id = $1`

	var row failedMessageRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed message %d: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load failed message %d: %w", id, err)
	}
	return row.toCore()
}

// ListFailedMessages returns the newest records first.
func (s *postgresStore) ListFailedMessages(ctx context.Context, limit int) ([]*core.FailedMessage, error) {
	query := `SELECT ` + failedMessageColumns + ` FROM failed_messages ORDER BY created_at DESC, id DESC LIMIT $1`

	var rows []failedMessageRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list failed messages: %w", err)
	}

	out := make([]*core.FailedMessage, 0, len(rows))
	for i := range rows {
		msg, err := rows[i].toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// DeleteFailedMessage removes the record with id, or returns core.ErrNotFound.
func (s *postgresStore) DeleteFailedMessage(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "failed_messages", id)
}

// SaveFailedPublish inserts msg and sets its ID.
func (s *postgresStore) SaveFailedPublish(ctx context.Context, msg *core.FailedPublish) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	payload := msg.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	query := `
		INSERT INTO failed_publish_messages
			(topic_name, event_type, subject, data_version, event_time, payload, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := s.db.QueryRowxContext(ctx, query,
		msg.TopicName, msg.EventType, msg.Subject, msg.DataVersion, msg.EventTime,
		[]byte(payload), msg.CorrelationID, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("failed to insert failed publish: %w", err)
	}
	return nil
}

// ListFailedPublishes returns all failed publishes, oldest first.
func (s *postgresStore) ListFailedPublishes(ctx context.Context) ([]*core.FailedPublish, error) {
	query := `
		SELECT id, topic_name, event_type, subject, data_version, event_time, payload, correlation_id, created_at
		FROM failed_publish_messages
		ORDER BY created_at, id`

	var out []*core.FailedPublish
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list failed publishes: %w", err)
	}
	return out, nil
}

// DeleteFailedPublish removes the record with id, or returns core.ErrNotFound.
func (s *postgresStore) DeleteFailedPublish(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "failed_publish_messages", id)
}

func (s *postgresStore) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", table, id, core.ErrNotFound)
	}
	return nil
}
