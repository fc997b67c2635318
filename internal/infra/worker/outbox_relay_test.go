package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/hauldesk/hauldesk-api/internal/infra/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	published []string
	failOn    string
}

func (p *fakePublisher) PublishEvent(_ context.Context, e *entity.OutboxEvent) error {
	if e.EventID == p.failOn {
		return errors.New("channel closed")
	}
	p.published = append(p.published, e.EventID)
	return nil
}

func newOutbox(t *testing.T) *database.OutboxRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDBConnection(ctx, database.Options{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "relay.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))

	return database.NewOutboxRepository(db)
}

func enqueue(t *testing.T, outbox *database.OutboxRepository, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		e, err := entity.NewOutboxEvent(entity.EventLeadAlert, "contact-1", entity.LeadAlertPayload{LeadID: "lead-1"})
		require.NoError(t, err)
		require.NoError(t, outbox.Enqueue(context.Background(), e))
		ids[i] = e.EventID
	}
	return ids
}

func TestOutboxRelay_PublishesInOrder(t *testing.T) {
	outbox := newOutbox(t)
	ids := enqueue(t, outbox, 3)
	pub := &fakePublisher{}

	relay := NewOutboxRelay(outbox, pub, time.Second, 10, zap.NewNop())
	n, err := relay.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, ids, pub.published)

	pending, err := outbox.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxRelay_FailureStopsBatch(t *testing.T) {
	ctx := context.Background()
	outbox := newOutbox(t)
	ids := enqueue(t, outbox, 3)
	pub := &fakePublisher{failOn: ids[1]}

	relay := NewOutboxRelay(outbox, pub, time.Second, 10, zap.NewNop())
	n, err := relay.RunOnce(ctx)

	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ids[:1], pub.published)

	pending, err := outbox.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[1], pending[0].EventID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "channel closed")

	pub.failOn = ""
	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, ids, pub.published)
}

func TestOutboxRelay_DrainsFullBatches(t *testing.T) {
	outbox := newOutbox(t)
	ids := enqueue(t, outbox, 5)
	pub := &fakePublisher{}

	relay := NewOutboxRelay(outbox, pub, time.Hour, 2, zap.NewNop())
	relay.drain(context.Background())

	assert.Equal(t, ids, pub.published)
}

func TestOutboxRelay_StartStopsOnCancel(t *testing.T) {
	outbox := newOutbox(t)
	enqueue(t, outbox, 1)
	pub := &fakePublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewOutboxRelay(outbox, pub, 10*time.Millisecond, 10, zap.NewNop()).Start(ctx) }()

	require.Eventually(t, func() bool {
		pending, err := outbox.FetchUnpublished(context.Background(), 10)
		return err == nil && len(pending) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
