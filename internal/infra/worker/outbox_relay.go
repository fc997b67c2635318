package worker

import (
	"context"
	"time"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/hauldesk/hauldesk-api/internal/infra/metrics"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	DefaultRelayInterval  = 2 * time.Second
	DefaultRelayBatchSize = 100
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, e *entity.OutboxEvent) error
}

// OutboxRelay publishes unpublished outbox rows in id order. A publish
// failure ends the batch so a later event never overtakes an earlier one;
// the failed row is retried on the next tick.
type OutboxRelay struct {
	Outbox    entity.OutboxRepositoryInterface
	Publisher EventPublisher
	Interval  time.Duration
	BatchSize int
	Logger    *zap.Logger
	Now       func() time.Time
}

func NewOutboxRelay(outbox entity.OutboxRepositoryInterface, publisher EventPublisher, interval time.Duration, batchSize int, logger *zap.Logger) *OutboxRelay {
	if interval <= 0 {
		interval = DefaultRelayInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultRelayBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxRelay{
		Outbox:    outbox,
		Publisher: publisher,
		Interval:  interval,
		BatchSize: batchSize,
		Logger:    logger,
		Now:       time.Now,
	}
}

// Start relays until ctx is done.
func (r *OutboxRelay) Start(ctx context.Context) error {
	r.Logger.Info("outbox relay started",
		zap.Duration("interval", r.Interval),
		zap.Int("batch_size", r.BatchSize),
	)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain keeps relaying full batches until the backlog is gone or a batch
// fails.
func (r *OutboxRelay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.RunOnce(ctx)
		if err != nil {
			r.Logger.Warn("outbox relay batch stopped", zap.Int("published", n), zap.Error(err))
			return
		}
		if n < r.BatchSize {
			return
		}
	}
}

// RunOnce relays one batch and returns how many events were published.
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.Outbox.FetchUnpublished(ctx, r.BatchSize)
	if err != nil {
		return 0, eris.Wrap(err, "relay: fetch unpublished")
	}

	published := 0
	for _, e := range events {
		if err := r.Publisher.PublishEvent(ctx, e); err != nil {
			metrics.RecordIntegrationError("rabbitmq")
			if merr := r.Outbox.MarkFailed(ctx, e.Seq, err.Error()); merr != nil {
				r.Logger.Error("failed to record publish failure", zap.Int64("seq", e.Seq), zap.Error(merr))
			}
			return published, eris.Wrapf(err, "relay: publish event %s", e.EventID)
		}

		if err := r.Outbox.MarkPublished(ctx, e.Seq, r.now()); err != nil {
			// The event is out; a redelivery on the next tick is absorbed by
			// consumer dedup.
			return published, eris.Wrapf(err, "relay: mark published %s", e.EventID)
		}

		metrics.RecordPublished(string(e.Type))
		r.Logger.Debug("outbox event published",
			zap.Int64("seq", e.Seq),
			zap.String("event_id", e.EventID),
			zap.String("type", string(e.Type)),
		)
		published++
	}
	return published, nil
}

func (r *OutboxRelay) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}
