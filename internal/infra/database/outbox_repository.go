package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
)

const maxLastErrorLength = 1000

type OutboxRepository struct {
	DB DBTX
}

func NewOutboxRepository(db DBTX) *OutboxRepository {
	return &OutboxRepository{DB: db}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, e *entity.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (event_id, type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.DB.QueryRowContext(ctx, query,
		e.EventID,
		string(e.Type),
		e.AggregateID,
		string(e.Payload),
		e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		return eris.Wrapf(err, "outbox repository: enqueue %s", e.Type)
	}
	return nil
}

// FetchUnpublished returns pending events in creation order.
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]*entity.OutboxEvent, error) {
	query := `
		SELECT id, event_id, type, aggregate_id, payload, created_at, attempts, last_error
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`

	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "outbox repository: fetch unpublished")
	}
	defer rows.Close()

	var events []*entity.OutboxEvent
	for rows.Next() {
		var (
			e       entity.OutboxEvent
			typ     string
			payload []byte
		)
		if err := rows.Scan(&e.Seq, &e.EventID, &typ, &e.AggregateID, &payload, &e.CreatedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, eris.Wrap(err, "outbox repository: scan")
		}
		e.Type = entity.EventType(typ)
		e.Payload = json.RawMessage(payload)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "outbox repository: rows")
	}
	return events, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, seq int64, at time.Time) error {
	query := `UPDATE outbox_events SET published_at = $2, attempts = attempts + 1, last_error = '' WHERE id = $1`
	if _, err := r.DB.ExecContext(ctx, query, seq, at); err != nil {
		return eris.Wrapf(err, "outbox repository: mark %d published", seq)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, seq int64, reason string) error {
	if len(reason) > maxLastErrorLength {
		reason = reason[:maxLastErrorLength]
	}
	query := `UPDATE outbox_events SET attempts = attempts + 1, last_error = $2 WHERE id = $1`
	if _, err := r.DB.ExecContext(ctx, query, seq, reason); err != nil {
		return eris.Wrapf(err, "outbox repository: mark %d failed", seq)
	}
	return nil
}

// ListByAggregate returns every event of a contact in creation order,
// published or not.
func (r *OutboxRepository) ListByAggregate(ctx context.Context, aggregateID string) ([]*entity.OutboxEvent, error) {
	query := `
		SELECT id, event_id, type, aggregate_id, payload, created_at, published_at, attempts, last_error
		FROM outbox_events
		WHERE aggregate_id = $1
		ORDER BY id
	`

	rows, err := r.DB.QueryContext(ctx, query, aggregateID)
	if err != nil {
		return nil, eris.Wrap(err, "outbox repository: list by aggregate")
	}
	defer rows.Close()

	var events []*entity.OutboxEvent
	for rows.Next() {
		var (
			e         entity.OutboxEvent
			typ       string
			payload   []byte
			published sql.NullTime
		)
		if err := rows.Scan(&e.Seq, &e.EventID, &typ, &e.AggregateID, &payload, &e.CreatedAt, &published, &e.Attempts, &e.LastError); err != nil {
			return nil, eris.Wrap(err, "outbox repository: scan")
		}
		e.Type = entity.EventType(typ)
		e.Payload = json.RawMessage(payload)
		if published.Valid {
			t := published.Time
			e.PublishedAt = &t
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "outbox repository: rows")
	}
	return events, nil
}
