package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hauldesk/hauldesk-api/internal/infra/database"
	"github.com/hauldesk/hauldesk-api/internal/infra/queue"
	"github.com/hauldesk/hauldesk-api/internal/infra/worker"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish committed outbox events to RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		broker, err := openBroker()
		if err != nil {
			return err
		}
		defer broker.Close()

		relay := worker.NewOutboxRelay(
			database.NewOutboxRepository(db),
			queue.NewProducer(broker.Ch, broker.Topology.Exchange),
			cfg.Relay.Interval,
			cfg.Relay.BatchSize,
			logger,
		)
		return relay.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
}
