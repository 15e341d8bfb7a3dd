package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/metroid/internal/broker/natsbus"
	"github.com/sevigo/metroid/internal/config"
	"github.com/sevigo/metroid/internal/logger"
)

var brokerTarget string

var deferredCmd = &cobra.Command{
	Use:   "deferred <topic> <sequence-number>",
	Short: "Prints a deferred message by its sequence number",
	Long: `Fetches a message that was set aside with defer. Deferred messages are not
delivered again; they can only be read by sequence number.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		topic := args[0]
		seq, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || seq <= 0 {
			return fmt.Errorf("invalid sequence number %q", args[1])
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		target := brokerTarget
		if target == "" {
			target = targetForTopic(cfg, topic)
		}
		if target == "" {
			return fmt.Errorf("no connection target for topic %q; pass --target", topic)
		}

		conn, err := natsbus.NewReceiver(cfg.NATS, logger.Discard()).Dial(target)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		msg, err := conn.FetchDeferred(ctx, topic, seq)
		if err != nil {
			errorColor.Printf("✗ %v\n", err)
			return err
		}
		titleColor.Printf("%s #%d\n", topic, msg.SequenceNumber)
		fmt.Println(string(msg.Body))
		return nil
	},
}

func targetForTopic(cfg *config.Config, topic string) string {
	for _, sub := range cfg.Subscriptions {
		if sub.TopicName == topic {
			return sub.ConnectionTarget
		}
	}
	return ""
}

func init() { //nolint:gochecknoinits // Cobra command registration
	deferredCmd.Flags().StringVar(&brokerTarget, "target", "", "Broker URL; defaults to the target of the topic's first subscription")
	rootCmd.AddCommand(deferredCmd)
}
