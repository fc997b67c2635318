package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hauldesk/hauldesk-api/internal/infra/database"
	"github.com/hauldesk/hauldesk-api/internal/infra/http/handlers"
	"github.com/hauldesk/hauldesk-api/internal/infra/queue"
	"github.com/hauldesk/hauldesk-api/internal/infra/worker"
	"github.com/hauldesk/hauldesk-api/internal/usecase"
)

var (
	servePort      int
	serveWithRelay bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quote API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		var broker *queue.RabbitMQ
		if serveWithRelay {
			broker, err = openBroker()
			if err != nil {
				return err
			}
			defer broker.Close()
		}

		quotes := newInstantQuoteUseCase(db)
		normalizer := usecase.NewNormalizer(cfg.CRM.DefaultPhoneRegion)
		limiter := handlers.NewIPRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)

		var brokerStatus handlers.BrokerStatus
		if broker != nil {
			brokerStatus = broker
		}

		router := handlers.NewRouter(handlers.RouterConfig{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Quote:          handlers.NewQuoteHandler(quotes, normalizer, limiter, logger),
			SocialWebhook:  handlers.NewSocialWebhookHandler(quotes, normalizer, cfg.Social.WebhookSecret, logger),
			Health:         handlers.NewHealthHandler(db, brokerStatus, nil),
			Logger:         logger,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			logger.Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			limiter.Cleanup(time.Minute, gctx.Done())
			return nil
		})

		if broker != nil {
			relay := worker.NewOutboxRelay(
				database.NewOutboxRepository(db),
				queue.NewProducer(broker.Ch, broker.Topology.Exchange),
				cfg.Relay.Interval,
				cfg.Relay.BatchSize,
				logger,
			)
			g.Go(func() error { return relay.Start(gctx) })
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveWithRelay, "with-relay", false, "run the outbox relay in this process")
	rootCmd.AddCommand(serveCmd)
}
