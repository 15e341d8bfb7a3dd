package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/metroid/internal/app"
	"github.com/sevigo/metroid/internal/failures"
	"github.com/sevigo/metroid/internal/wire"
)

var (
	outputJSON bool
	listLimit  int
)

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "Inspect and replay failed messages",
}

var failedListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the newest failed messages",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			records, err := a.FailedMessages.List(ctx, listLimit)
			if err != nil {
				return fmt.Errorf("failed to list failed messages: %w", err)
			}

			if outputJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(records)
			}

			if len(records) == 0 {
				successColor.Println("No failed messages.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTOPIC\tSUBSCRIPTION\tSUBJECT\tERROR\tCREATED")
			for _, r := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.TopicName, r.SubscriptionName, r.Subject,
					truncate(r.ErrorSummary, 60), r.CreatedAt.Format(time.RFC822))
			}
			return w.Flush()
		})
	},
}

var failedRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Resubmits a failed message to its handler job",
	Long: `Resubmits a failed message to the job of the handler rule it was routed to.
The record is deleted once the job has been accepted. The command waits for
the job to finish before exiting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			result, err := a.FailedMessages.Retry(ctx, id)
			switch result {
			case failures.RetryResubmitted:
				successColor.Printf("✓ failed message %d resubmitted\n", id)
				if err != nil {
					warnColor.Printf("  %v\n", err)
				}
				return nil
			case failures.RetryNoHandler:
				warnColor.Printf("no handler found for failed message %d\n", id)
			default:
				errorColor.Printf("✗ failed to retry message %d\n", id)
			}
			return err
		})
	},
}

var failedDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Deletes a failed message without replaying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.FailedMessages.Delete(ctx, id); err != nil {
				errorColor.Printf("✗ failed to delete message %d\n", id)
				return err
			}
			successColor.Printf("✓ failed message %d deleted\n", id)
			return nil
		})
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	failedListCmd.Flags().BoolVar(&outputJSON, "json", false, "Output failed messages as JSON")
	failedListCmd.Flags().IntVarP(&listLimit, "limit", "n", failures.DefaultListLimit, "Maximum number of messages to list")

	failedCmd.AddCommand(failedListCmd, failedRetryCmd, failedDeleteCmd)
	rootCmd.AddCommand(failedCmd)
}

// withApp initializes the application services, runs fn and shuts the
// services down, waiting for any job fn queued.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx := context.Background()

	a, cleanup, err := wire.InitializeApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize app services: %w", err)
	}
	defer cleanup()

	runErr := fn(ctx, a)
	if err := a.Stop(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
