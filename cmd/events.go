/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ryshoes/storefront/internal/mq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect storefront events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail [channel]",
	Short: "Log every event published to a channel",
	Long: `Subscribes to a channel of the configured broker and logs each event.
The channel defaults to ` + mq.ChannelOrders + `.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := setup()

		channel := mq.ChannelOrders
		if len(args) == 1 {
			channel = args[0]
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer broker.Close()

		logger.WithField("channel", channel).Info("tailing events")
		err = broker.Subscribe(ctx, channel, func(ctx context.Context, id string, event mq.Event) error {
			logger.WithFields(logrus.Fields{
				"message_id":  id,
				"type":        event.Type,
				"entity_id":   event.EntityID,
				"occurred_at": event.OccurredAt,
				"payload":     string(event.Payload),
			}).Info("event")
			return nil
		})
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
