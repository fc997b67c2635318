package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/hauldesk/hauldesk-api/internal/infra/integration/followup"
	"github.com/hauldesk/hauldesk-api/internal/infra/mail"
	"github.com/hauldesk/hauldesk-api/internal/infra/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume CRM events: lead alerts, follow-ups and stage changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := openBroker()
		if err != nil {
			return err
		}
		defer broker.Close()

		rdb, err := queue.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return eris.Wrap(err, "redis ping")
		}

		alerts := mail.NewAlertSender(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			User:     cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			AlertTo:  splitList(cfg.Mail.AlertTo),
		}, logger)
		hooks := followup.NewClient(cfg.Followup.WebhookURL, cfg.Followup.Timeout, logger)

		w := queue.NewWorker(broker.Ch, broker.Topology.Queue, queue.NewRedisDeduper(rdb, cfg.Redis.DedupTTL), logger)
		w.Handle(entity.EventLeadAlert, queue.LeadAlertHandler(alerts))
		w.Handle(entity.EventFollowupSchedule, queue.FollowupHandler(hooks))
		w.Handle(entity.EventPipelineAutoStage, queue.StageChangeHandler(logger, hooks))

		return w.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
