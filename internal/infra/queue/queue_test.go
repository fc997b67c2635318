package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hauldesk/hauldesk-api/internal/entity"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAcker struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *fakeAcker) Ack(uint64, bool) error { a.acks++; return nil }
func (a *fakeAcker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}
func (a *fakeAcker) Reject(_ uint64, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func delivery(acker *fakeAcker, id string, t entity.EventType, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: acker,
		MessageId:    id,
		Type:         string(t),
		Headers:      amqp.Table{"aggregate_id": "contact-1"},
		Body:         []byte(body),
	}
}

func newDeduper(t *testing.T) (*RedisDeduper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisDeduper(client, time.Hour), mr
}

func TestRedisDeduper(t *testing.T) {
	d, mr := newDeduper(t)
	ctx := context.Background()

	ok, err := d.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("crm:event:evt-1"))
	assert.Equal(t, time.Hour, mr.TTL("crm:event:evt-1"))

	ok, err = d.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Release(ctx, "evt-1"))
	ok, err = d.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Hour)
	ok, err = d.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisDeduper_Unavailable(t *testing.T) {
	d, mr := newDeduper(t)
	mr.Close()

	_, err := d.Claim(context.Background(), "evt-1")
	assert.Error(t, err)
}

func TestWorkerProcess(t *testing.T) {
	ctx := context.Background()
	alert := `{"lead_id":"lead-1","contact_id":"contact-1","contact_name":"Dana Reyes","postal_code":"78704","services":[]}`

	t.Run("dispatches and deduplicates", func(t *testing.T) {
		d, _ := newDeduper(t)
		w := NewWorker(nil, DefaultQueue, d, zap.NewNop())

		var got []Event
		w.Handle(entity.EventLeadAlert, func(_ context.Context, e Event) error {
			got = append(got, e)
			return nil
		})

		first, second := &fakeAcker{}, &fakeAcker{}
		w.process(ctx, delivery(first, "evt-1", entity.EventLeadAlert, alert))
		w.process(ctx, delivery(second, "evt-1", entity.EventLeadAlert, alert))

		require.Len(t, got, 1)
		assert.Equal(t, "contact-1", got[0].AggregateID)
		assert.Equal(t, 1, first.acks)
		assert.Equal(t, 1, second.acks)
		assert.Zero(t, second.nacks)
	})

	t.Run("handler failure releases claim and dead-letters", func(t *testing.T) {
		d, mr := newDeduper(t)
		w := NewWorker(nil, DefaultQueue, d, zap.NewNop())
		w.Handle(entity.EventLeadAlert, func(context.Context, Event) error { return errors.New("smtp down") })

		acker := &fakeAcker{}
		w.process(ctx, delivery(acker, "evt-2", entity.EventLeadAlert, alert))

		assert.Equal(t, 1, acker.nacks)
		assert.False(t, acker.requeue)
		assert.False(t, mr.Exists("crm:event:evt-2"))
	})

	t.Run("malformed and unhandled are dead-lettered", func(t *testing.T) {
		w := NewWorker(nil, DefaultQueue, nil, zap.NewNop())
		w.Handle(entity.EventLeadAlert, func(context.Context, Event) error { return nil })

		cases := []amqp.Delivery{}
		ackers := []*fakeAcker{{}, {}, {}}
		cases = append(cases,
			delivery(ackers[0], "", entity.EventLeadAlert, alert),
			delivery(ackers[1], "evt-3", entity.EventLeadAlert, "{not json"),
			delivery(ackers[2], "evt-4", "invoice.paid", `{}`),
		)
		for _, c := range cases {
			w.process(ctx, c)
		}
		for _, a := range ackers {
			assert.Equal(t, 1, a.nacks)
			assert.Zero(t, a.acks)
			assert.False(t, a.requeue)
		}
	})

	t.Run("dedup outage still processes", func(t *testing.T) {
		d, mr := newDeduper(t)
		mr.Close()
		w := NewWorker(nil, DefaultQueue, d, zap.NewNop())

		calls := 0
		w.Handle(entity.EventLeadAlert, func(context.Context, Event) error { calls++; return nil })

		acker := &fakeAcker{}
		w.process(ctx, delivery(acker, "evt-5", entity.EventLeadAlert, alert))
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, acker.acks)
	})
}

type recordingSender struct{ got []entity.LeadAlertPayload }

func (s *recordingSender) SendLeadAlert(_ context.Context, a entity.LeadAlertPayload) error {
	s.got = append(s.got, a)
	return nil
}

type recordingScheduler struct{ got []entity.FollowupPayload }

func (s *recordingScheduler) Schedule(_ context.Context, f entity.FollowupPayload) error {
	s.got = append(s.got, f)
	return nil
}

func TestHandlersDecodePayloads(t *testing.T) {
	ctx := context.Background()

	sender := &recordingSender{}
	alert, _ := json.Marshal(entity.LeadAlertPayload{LeadID: "lead-1", PriceLow: 400, PriceHigh: 600})
	require.NoError(t, LeadAlertHandler(sender)(ctx, Event{Payload: alert}))
	require.Len(t, sender.got, 1)
	assert.Equal(t, 600, sender.got[0].PriceHigh)

	scheduler := &recordingScheduler{}
	at := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)
	followup, _ := json.Marshal(entity.FollowupPayload{LeadID: "lead-1", Reason: "quote_followup", SuggestedAt: at})
	require.NoError(t, FollowupHandler(scheduler)(ctx, Event{Payload: followup}))
	require.Len(t, scheduler.got, 1)
	assert.True(t, scheduler.got[0].SuggestedAt.Equal(at))

	change, _ := json.Marshal(entity.StageChangePayload{FromStage: entity.StageNew, ToStage: entity.StageQuoted})
	assert.NoError(t, StageChangeHandler(zap.NewNop(), nil)(ctx, Event{Payload: change}))

	assert.Error(t, LeadAlertHandler(sender)(ctx, Event{Payload: []byte(`[]`)}))
}

type declared struct {
	exchanges []string
	queues    map[string]amqp.Table
	bindings  []string
}

func (d *declared) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	d.exchanges = append(d.exchanges, name)
	return nil
}

func (d *declared) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	if d.queues == nil {
		d.queues = map[string]amqp.Table{}
	}
	d.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (d *declared) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	d.bindings = append(d.bindings, exchange+"->"+name+":"+key)
	return nil
}

func TestSetupTopology(t *testing.T) {
	d := &declared{}
	require.NoError(t, setupTopology(d, DefaultTopology()))

	assert.Equal(t, []string{"ex.crm.dlx", "ex.crm"}, d.exchanges)
	assert.Equal(t, "ex.crm.dlx", d.queues["q.crm.events"]["x-dead-letter-exchange"])
	assert.Contains(t, d.queues, "q.crm.events.dlq")
	assert.Contains(t, d.bindings, "ex.crm->q.crm.events:lead.alert")
	assert.Contains(t, d.bindings, "ex.crm.dlx->q.crm.events.dlq:followup.schedule")
	assert.Len(t, d.bindings, 6)
}

type capturePublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (p *capturePublisher) PublishWithDeferredConfirmWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	p.exchange, p.key, p.msg = exchange, key, msg
	return nil, p.err
}

func TestProducerPublishEvent(t *testing.T) {
	e, err := entity.NewOutboxEvent(entity.EventFollowupSchedule, "contact-1", entity.FollowupPayload{LeadID: "lead-1"})
	require.NoError(t, err)
	e.Seq = 7

	pub := &capturePublisher{}
	require.NoError(t, NewProducer(pub, DefaultExchange).PublishEvent(context.Background(), e))

	assert.Equal(t, "ex.crm", pub.exchange)
	assert.Equal(t, "followup.schedule", pub.key)
	assert.Equal(t, e.EventID, pub.msg.MessageId)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, int64(7), pub.msg.Headers["seq"])
	assert.JSONEq(t, string(e.Payload), string(pub.msg.Body))

	pub.err = errors.New("channel closed")
	assert.Error(t, NewProducer(pub, DefaultExchange).PublishEvent(context.Background(), e))
}
