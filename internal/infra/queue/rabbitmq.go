package queue

import (
	"github.com/hauldesk/hauldesk-api/internal/entity"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
)

const (
	DefaultExchange = "ex.crm"
	DefaultQueue    = "q.crm.events"
)

// Topology names the exchange and queue the relay and worker share. The
// dead-letter exchange and queue are derived from them.
type Topology struct {
	Exchange    string
	Queue       string
	RoutingKeys []string
}

func DefaultTopology() Topology {
	return NewTopology(DefaultExchange, DefaultQueue)
}

func NewTopology(exchange, queue string) Topology {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if queue == "" {
		queue = DefaultQueue
	}
	return Topology{
		Exchange: exchange,
		Queue:    queue,
		RoutingKeys: []string{
			string(entity.EventLeadAlert),
			string(entity.EventPipelineAutoStage),
			string(entity.EventFollowupSchedule),
		},
	}
}

func (t Topology) DeadLetterExchange() string { return t.Exchange + ".dlx" }
func (t Topology) DeadLetterQueue() string    { return t.Queue + ".dlq" }

type RabbitMQ struct {
	Conn     *amqp.Connection
	Ch       *amqp.Channel
	Topology Topology
}

// NewRabbitMQ dials the broker, declares the topology and puts the channel
// in confirm mode so publishes can wait for the broker's ack.
func NewRabbitMQ(url string, topo Topology, prefetch int) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, eris.Wrap(err, "rabbitmq: dial")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "rabbitmq: open channel")
	}

	if err := setupTopology(ch, topo); err != nil {
		conn.Close()
		return nil, err
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			conn.Close()
			return nil, eris.Wrap(err, "rabbitmq: set qos")
		}
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "rabbitmq: enable confirms")
	}

	return &RabbitMQ{Conn: conn, Ch: ch, Topology: topo}, nil
}

func (r *RabbitMQ) Healthy() bool {
	return r != nil && r.Conn != nil && !r.Conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r == nil || r.Conn == nil {
		return nil
	}
	return r.Conn.Close()
}

type topologyDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// setupTopology declares the dead-letter side first so the main queue's
// x-dead-letter-exchange argument always points at an existing exchange.
// Rejected messages keep their routing key.
func setupTopology(ch topologyDeclarer, topo Topology) error {
	dlx, dlq := topo.DeadLetterExchange(), topo.DeadLetterQueue()

	if err := ch.ExchangeDeclare(dlx, "direct", true, false, false, false, nil); err != nil {
		return eris.Wrapf(err, "rabbitmq: declare exchange %s", dlx)
	}
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return eris.Wrapf(err, "rabbitmq: declare queue %s", dlq)
	}

	if err := ch.ExchangeDeclare(topo.Exchange, "direct", true, false, false, false, nil); err != nil {
		return eris.Wrapf(err, "rabbitmq: declare exchange %s", topo.Exchange)
	}
	args := amqp.Table{"x-dead-letter-exchange": dlx}
	if _, err := ch.QueueDeclare(topo.Queue, true, false, false, false, args); err != nil {
		return eris.Wrapf(err, "rabbitmq: declare queue %s", topo.Queue)
	}

	for _, key := range topo.RoutingKeys {
		if err := ch.QueueBind(dlq, key, dlx, false, nil); err != nil {
			return eris.Wrapf(err, "rabbitmq: bind %s to %s", dlq, key)
		}
		if err := ch.QueueBind(topo.Queue, key, topo.Exchange, false, nil); err != nil {
			return eris.Wrapf(err, "rabbitmq: bind %s to %s", topo.Queue, key)
		}
	}
	return nil
}
