package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sevigo/metroid/internal/config"
	"github.com/sevigo/metroid/internal/jobs"
	"github.com/sevigo/metroid/internal/logger"
	"github.com/sevigo/metroid/internal/routing"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validates the service configuration and the subscriptions file",
	Long: `Loads the configuration the same way the worker does and checks every
subscription: connection targets, handler subjects and patterns, and job keys.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			errorColor.Printf("✗ %v\n", err)
			return err
		}

		jobRegistry := jobs.NewRegistry()
		if err := jobs.RegisterBuiltins(jobRegistry, cfg.Jobs, logger.Discard()); err != nil {
			return fmt.Errorf("failed to register jobs: %w", err)
		}

		routes, err := routing.NewRegistry(cfg.Subscriptions, jobRegistry)
		if err != nil {
			errorColor.Printf("✗ %v\n", err)
			return err
		}

		titleColor.Printf("Subscriptions (%s)\n", cfg.SubscriptionsFile)
		if len(routes.Subscriptions()) == 0 {
			warnColor.Println("no subscriptions configured; the worker will idle")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TOPIC\tSUBSCRIPTION\tTARGET\tSUBJECT\tMODE\tJOB")
		for _, sub := range routes.Subscriptions() {
			if len(sub.Handlers) == 0 {
				fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\t-\n", sub.TopicName, sub.SubscriptionName, sub.ConnectionTarget)
			}
			for _, h := range sub.Handlers {
				mode := "literal"
				if h.IsPattern {
					mode = "pattern"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", sub.TopicName, sub.SubscriptionName, sub.ConnectionTarget, h.Subject, mode, h.Job)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}

		dimColor.Printf("registered jobs: %s\n", strings.Join(jobRegistry.Keys(), ", "))
		successColor.Println("✓ configuration is valid")
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(validateCmd)
}
