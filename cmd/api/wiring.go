package main

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/hauldesk/hauldesk-api/internal/infra/database"
	"github.com/hauldesk/hauldesk-api/internal/infra/integration/anthropic"
	"github.com/hauldesk/hauldesk-api/internal/infra/queue"
	"github.com/hauldesk/hauldesk-api/internal/quoting"
	"github.com/hauldesk/hauldesk-api/internal/usecase"
)

// openDB connects to the configured store and applies migrations.
func openDB(ctx context.Context) (*sql.DB, error) {
	db, err := database.NewDBConnection(ctx, database.Options{
		Driver:       cfg.Store.Driver,
		DSN:          cfg.Store.DatabaseURL,
		MaxOpenConns: cfg.Store.MaxOpenConns,
		MaxIdleConns: cfg.Store.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(ctx, db, cfg.Store.Driver); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "migrate")
	}
	return db, nil
}

func openBroker() (*queue.RabbitMQ, error) {
	topo := queue.NewTopology(cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue)
	return queue.NewRabbitMQ(cfg.RabbitMQ.URL, topo, cfg.RabbitMQ.Prefetch)
}

func newInstantQuoteUseCase(db *sql.DB) *usecase.InstantQuoteUseCase {
	engine := quoting.NewEngine()
	validator := quoting.NewValidator()
	if cfg.Quote.MaxUnits > 0 {
		engine.MaxUnits = cfg.Quote.MaxUnits
		validator.MaxUnits = cfg.Quote.MaxUnits
	}

	validator.UnitPrice = cfg.Quote.UnitPrice
	validator.UnitsPerLoad = cfg.Quote.UnitsPerLoad

	identity := usecase.NewIdentityResolver(cfg.CRM.DefaultSalespersonID, logger)
	commit := usecase.NewCommitLeadUseCase(
		database.NewStore(db),
		identity,
		usecase.NewTimeframeScheduler(),
		entity.Stage(cfg.CRM.TargetStage),
		cfg.CRM.ConflictRetries,
		logger,
	)

	return usecase.NewInstantQuoteUseCase(
		engine,
		validator,
		newGenerator(),
		database.NewInstantQuoteRepository(db),
		commit,
		cfg.Quote.AITimeout,
		cfg.Quote.DiscountPercent,
		logger,
	)
}

// newGenerator returns nil without an API key so every quote takes the
// fallback path.
func newGenerator() usecase.QuoteCandidateGenerator {
	if cfg.Anthropic.Key == "" {
		logger.Warn("anthropic key not set, quotes use the deterministic fallback")
		return nil
	}
	client := anthropic.NewClient(cfg.Anthropic.Key)
	return anthropic.NewQuoteGenerator(
		client,
		cfg.Anthropic.Model,
		cfg.Anthropic.MaxTokens,
		cfg.Quote.UnitPrice,
		cfg.Quote.UnitsPerLoad,
		logger,
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
