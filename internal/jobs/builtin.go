package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sevigo/metroid/internal/config"
	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/correlation"
)

// Keys of the jobs shipped with the service.
const (
	LogJobKey     = "log"
	WebhookJobKey = "webhook"
)

// LogJob writes every event it receives to the log.
type LogJob struct {
	logger *slog.Logger
}

// NewLogJob creates a LogJob.
func NewLogJob(logger *slog.Logger) *LogJob {
	return &LogJob{logger: logger}
}

// Run implements core.Job.
func (j *LogJob) Run(ctx context.Context, req *core.DispatchJobRequest) error {
	j.logger.Info("received event",
		"topic", req.TopicName,
		"subscription", req.SubscriptionName,
		"subject", req.Subject,
		"sequence_number", req.SequenceNumber,
		"correlation_id", correlation.FromContext(ctx),
		"message", req.Message,
	)
	return nil
}

// WebhookJob forwards the dispatch request as JSON to an HTTP endpoint.
// Any non-2xx response fails the job.
type WebhookJob struct {
	url    string
	client *http.Client
}

// NewWebhookJob creates a WebhookJob posting to url.
func NewWebhookJob(url string, client *http.Client) *WebhookJob {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookJob{url: url, client: client}
}

// Run implements core.Job.
func (j *WebhookJob) Run(ctx context.Context, req *core.DispatchJobRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode webhook body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := correlation.FromContext(ctx); id != "" {
		httpReq.Header.Set("X-Correlation-ID", id)
	}

	resp, err := j.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// RegisterBuiltins registers the jobs shipped with the service. The webhook
// job is only available when a webhook URL is configured.
func RegisterBuiltins(reg *Registry, cfg config.JobsConfig, logger *slog.Logger) error {
	if err := reg.Register(LogJobKey, NewLogJob(logger)); err != nil {
		return err
	}
	if cfg.WebhookURL != "" {
		if err := reg.Register(WebhookJobKey, NewWebhookJob(cfg.WebhookURL, nil)); err != nil {
			return err
		}
	}
	return nil
}
