package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/metroid/internal/app"
	"github.com/sevigo/metroid/internal/publish"
)

var (
	eventType   string
	eventTime   string
	eventData   string
	dataVersion string
	subject     string
)

var publishCmd = &cobra.Command{
	Use:   "publish <topic>",
	Short: "Publishes one event to a topic",
	Long: `Publishes one event to a topic using the topic's configured publish key.
An event that cannot be delivered is stored and picked up by republish.

Examples:
  metroid-cli publish Intility.MyTopic --event-type My.Event.Created \
    --subject test/subject --data '{"hello":"world"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if !json.Valid([]byte(eventData)) {
			return fmt.Errorf("--data must be valid JSON")
		}
		ev := publish.Event{
			EventType:   eventType,
			DataVersion: dataVersion,
			Data:        json.RawMessage(eventData),
			Subject:     subject,
		}
		if eventTime != "" {
			t, err := time.Parse(time.RFC3339Nano, eventTime)
			if err != nil {
				return fmt.Errorf("--event-time must be an RFC 3339 timestamp: %w", err)
			}
			ev.EventTime = t
		}

		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Publisher.Publish(ctx, args[0], ev); err != nil {
				errorColor.Printf("✗ failed to publish to %s: %v\n", args[0], err)
				return err
			}
			successColor.Printf("✓ published %s to %s\n", ev.EventType, args[0])
			return nil
		})
	},
}

var republishCmd = &cobra.Command{
	Use:   "republish",
	Short: "Retries every stored failed publish",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			report, err := a.Publisher.RetryFailed(ctx)
			if err != nil {
				return err
			}
			if report.Failed > 0 {
				warnColor.Printf("republished %d event(s), %d still failing\n", report.Succeeded, report.Failed)
				return nil
			}
			successColor.Printf("✓ republished %d event(s)\n", report.Succeeded)
			return nil
		})
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	publishCmd.Flags().StringVar(&eventType, "event-type", "", "Event type, e.g. My.Event.Created")
	publishCmd.Flags().StringVar(&subject, "subject", "", "Event subject")
	publishCmd.Flags().StringVar(&dataVersion, "data-version", "1.0", "Data version")
	publishCmd.Flags().StringVar(&eventData, "data", "{}", "Event data as JSON")
	publishCmd.Flags().StringVar(&eventTime, "event-time", "", "Event time (RFC 3339); defaults to now")
	_ = publishCmd.MarkFlagRequired("event-type")
	_ = publishCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(publishCmd, republishCmd)
}
