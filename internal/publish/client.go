// Package publish posts events to topics over the broker's HTTP ingest API
// and keeps failed posts for later retry.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sevigo/metroid/internal/config"
	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/correlation"
	"github.com/sevigo/metroid/internal/metrics"
)

// KeyHeader carries the per-topic publish key.
const KeyHeader = "x-metro-key"

// ErrNoPublishKey is returned for topics without a configured publish key.
var ErrNoPublishKey = errors.New("no publish key configured for topic")

// StatusError is returned when the ingest API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("publish rejected with status %d", e.StatusCode)
	}
	return fmt.Sprintf("publish rejected with status %d: %s", e.StatusCode, e.Body)
}

// Event is one outbound event.
type Event struct {
	EventType   string          `json:"eventType"`
	EventTime   time.Time       `json:"eventTime"`
	DataVersion string          `json:"dataVersion"`
	Data        json.RawMessage `json:"data"`
	Subject     string          `json:"subject"`
}

// KeyResolver returns the publish key of a topic.
type KeyResolver interface {
	PublishKey(topicName string) (string, bool)
}

// RetryReport summarizes one pass over the failed publishes.
type RetryReport struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Client publishes events and records the ones that could not be delivered.
type Client struct {
	baseURL    string
	httpClient *http.Client
	keys       KeyResolver
	store      core.Store
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a Client posting to cfg.BaseURL.
func NewClient(cfg config.PublishConfig, keys KeyResolver, store core.Store, m *metrics.Metrics, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		keys:       keys,
		store:      store,
		metrics:    m,
		logger:     logger,
	}
}

// Publish posts ev to topicName. A post that fails is saved as a
// FailedPublish and the post error is returned.
func (c *Client) Publish(ctx context.Context, topicName string, ev Event) error {
	key, ok := c.keys.PublishKey(topicName)
	if !ok {
		c.logger.Error("unable to find a publish key", "topic", topicName)
		return fmt.Errorf("%w: %q", ErrNoPublishKey, topicName)
	}
	if ev.EventTime.IsZero() {
		ev.EventTime = time.Now().UTC()
	}
	if len(ev.Data) == 0 {
		ev.Data = json.RawMessage("null")
	}
	ctx, correlationID := correlation.Ensure(ctx)

	log := c.logger.With("topic", topicName, "subject", ev.Subject, "event_type", ev.EventType, "correlation_id", correlationID)
	log.Info("publishing event")

	err := c.post(ctx, topicName, key, ev, correlationID)
	if err == nil {
		log.Info("published event")
		return nil
	}

	log.Warn("failed to publish event", "error", err)
	c.metrics.FailedPublishes.Inc()
	record := &core.FailedPublish{
		TopicName:     topicName,
		EventType:     ev.EventType,
		Subject:       ev.Subject,
		DataVersion:   ev.DataVersion,
		EventTime:     ev.EventTime,
		Payload:       ev.Data,
		CorrelationID: correlationID,
	}
	if saveErr := c.store.SaveFailedPublish(context.WithoutCancel(ctx), record); saveErr != nil {
		log.Error("unable to save failed publish", "error", saveErr)
	} else {
		log.Info("saved failed publish", "id", record.ID)
	}
	return err
}

// RetryFailed re-posts every saved failed publish and deletes the ones that
// succeed. Records that fail again stay for the next pass.
func (c *Client) RetryFailed(ctx context.Context) (RetryReport, error) {
	var report RetryReport

	records, err := c.store.ListFailedPublishes(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list failed publishes: %w", err)
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log := c.logger.With("id", record.ID, "topic", record.TopicName, "correlation_id", record.CorrelationID)

		key, ok := c.keys.PublishKey(record.TopicName)
		if !ok {
			log.Error("unable to find a publish key")
			report.Failed++
			continue
		}

		ev := Event{
			EventType:   record.EventType,
			EventTime:   record.EventTime,
			DataVersion: record.DataVersion,
			Data:        record.Payload,
			Subject:     record.Subject,
		}
		if err := c.post(correlation.WithID(ctx, record.CorrelationID), record.TopicName, key, ev, record.CorrelationID); err != nil {
			log.Info("failed to republish event", "error", err)
			report.Failed++
			continue
		}

		if err := c.store.DeleteFailedPublish(ctx, record.ID); err != nil {
			log.Error("republished event but could not delete the record", "error", err)
		}
		report.Succeeded++
	}
	return report, nil
}

// RunRetryLoop calls RetryFailed every interval until ctx is cancelled.
// A non-positive interval disables the loop.
func (c *Client) RunRetryLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		c.logger.Info("failed publish retry loop disabled")
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := c.RetryFailed(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("failed publish retry pass failed", "error", err)
				continue
			}
			if report.Succeeded+report.Failed > 0 {
				c.logger.Info("failed publish retry pass", "succeeded", report.Succeeded, "failed", report.Failed)
			}
		}
	}
}

func (c *Client) post(ctx context.Context, topicName, key string, ev Event, correlationID string) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+url.PathEscape(topicName), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(KeyHeader, key)
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publish request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
