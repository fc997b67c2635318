package queue

import (
	"context"
	"encoding/json"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/hauldesk/hauldesk-api/internal/infra/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	resultOK        = "ok"
	resultDuplicate = "duplicate"
	resultMalformed = "malformed"
	resultUnhandled = "unhandled"
	resultFailed    = "failed"
)

// Event is a consumed outbox event.
type Event struct {
	ID          string
	Type        entity.EventType
	AggregateID string
	Payload     json.RawMessage
}

type Handler func(ctx context.Context, e Event) error

type consumer interface {
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Worker consumes CRM events, skips ids it has already processed and
// dispatches the rest by event type. Anything it cannot process is rejected
// without requeue, which dead-letters it.
type Worker struct {
	Channel  consumer
	Queue    string
	Dedup    Deduper
	Logger   *zap.Logger
	handlers map[entity.EventType]Handler
}

func NewWorker(ch consumer, queue string, dedup Deduper, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		Channel:  ch,
		Queue:    queue,
		Dedup:    dedup,
		Logger:   logger,
		handlers: make(map[entity.EventType]Handler),
	}
}

func (w *Worker) Handle(t entity.EventType, h Handler) {
	w.handlers[t] = h
}

// Start blocks until ctx is done or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	msgs, err := w.Channel.ConsumeWithContext(ctx, w.Queue, "", false, false, false, false, nil)
	if err != nil {
		return eris.Wrapf(err, "queue: consume %s", w.Queue)
	}

	w.Logger.Info("worker consuming", zap.String("queue", w.Queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return eris.New("queue: delivery channel closed")
			}
			w.process(ctx, d)
		}
	}
}

func (w *Worker) process(ctx context.Context, d amqp.Delivery) {
	e := Event{ID: d.MessageId, Type: entity.EventType(d.Type), Payload: d.Body}
	if v, ok := d.Headers["aggregate_id"].(string); ok {
		e.AggregateID = v
	}
	log := w.Logger.With(zap.String("event_id", e.ID), zap.String("type", string(e.Type)))

	if e.ID == "" || !json.Valid(e.Payload) {
		log.Warn("dead-lettering malformed event")
		w.reject(d, e, resultMalformed)
		return
	}
	handler, ok := w.handlers[e.Type]
	if !ok {
		log.Warn("dead-lettering event with no handler")
		w.reject(d, e, resultUnhandled)
		return
	}

	claimed := true
	if w.Dedup != nil {
		var err error
		claimed, err = w.Dedup.Claim(ctx, e.ID)
		if err != nil {
			log.Warn("dedup unavailable, processing anyway", zap.Error(err))
			claimed = true
		} else if !claimed {
			log.Debug("skipping duplicate event")
			w.ack(d, e, resultDuplicate)
			return
		}
	}

	if err := handler(ctx, e); err != nil {
		log.Error("event handler failed", zap.Error(err))
		if w.Dedup != nil && claimed {
			if rerr := w.Dedup.Release(ctx, e.ID); rerr != nil {
				log.Warn("failed to release dedup claim", zap.Error(rerr))
			}
		}
		w.reject(d, e, resultFailed)
		return
	}

	log.Debug("event processed")
	w.ack(d, e, resultOK)
}

func (w *Worker) ack(d amqp.Delivery, e Event, result string) {
	if err := d.Ack(false); err != nil {
		w.Logger.Error("ack failed", zap.String("event_id", e.ID), zap.Error(err))
	}
	metrics.RecordConsumed(string(e.Type), result)
}

func (w *Worker) reject(d amqp.Delivery, e Event, result string) {
	if err := d.Nack(false, false); err != nil {
		w.Logger.Error("nack failed", zap.String("event_id", e.ID), zap.Error(err))
	}
	metrics.RecordConsumed(string(e.Type), result)
}
