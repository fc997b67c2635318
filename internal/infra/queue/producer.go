package queue

import (
	"context"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
)

type confirmPublisher interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

type RabbitMQProducer struct {
	Ch       confirmPublisher
	Exchange string
}

func NewProducer(ch confirmPublisher, exchange string) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch, Exchange: exchange}
}

// PublishEvent routes the event by its type and returns once the broker has
// confirmed it. The message id is the event id, which consumers use for
// deduplication.
func (p *RabbitMQProducer) PublishEvent(ctx context.Context, e *entity.OutboxEvent) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.EventID,
		Type:         string(e.Type),
		Timestamp:    e.CreatedAt,
		Headers: amqp.Table{
			"aggregate_id": e.AggregateID,
			"seq":          e.Seq,
		},
		Body: e.Payload,
	}

	confirm, err := p.Ch.PublishWithDeferredConfirmWithContext(ctx, p.Exchange, string(e.Type), false, false, msg)
	if err != nil {
		return eris.Wrapf(err, "queue: publish %s", e.EventID)
	}
	if confirm == nil {
		return nil
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return eris.Wrapf(err, "queue: wait confirm %s", e.EventID)
	}
	if !acked {
		return eris.Errorf("queue: broker nacked %s", e.EventID)
	}
	return nil
}
