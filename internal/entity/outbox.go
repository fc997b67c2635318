package entity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventLeadAlert         EventType = "lead.alert"
	EventPipelineAutoStage EventType = "pipeline.auto_stage_change"
	EventFollowupSchedule  EventType = "followup.schedule"
)

// OutboxEvent is an append-only side-effect intent written in the same
// transaction as the state change it describes.
type OutboxEvent struct {
	Seq         int64           `json:"seq"`
	EventID     string          `json:"event_id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error,omitempty"`
}

// NewOutboxEvent marshals payload into a new event keyed by aggregateID
// (the contact id, which scopes causal ordering).
func NewOutboxEvent(t EventType, aggregateID string, payload any) (*OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		EventID:     uuid.New().String(),
		Type:        t,
		AggregateID: aggregateID,
		Payload:     body,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// LeadAlertPayload is self-contained: a consumer can alert staff without
// reading the database.
type LeadAlertPayload struct {
	LeadID      string       `json:"lead_id"`
	ContactID   string       `json:"contact_id"`
	Source      string       `json:"source"`
	QuoteID     string       `json:"quote_id,omitempty"`
	ContactName string       `json:"contact_name"`
	Phone       string       `json:"phone,omitempty"`
	Email       string       `json:"email,omitempty"`
	PostalCode  string       `json:"postal_code"`
	Services    []ServiceTag `json:"services"`
	PriceLow    int          `json:"price_low,omitempty"`
	PriceHigh   int          `json:"price_high,omitempty"`
}

type StageChangePayload struct {
	ContactID string            `json:"contact_id"`
	LeadID    string            `json:"lead_id"`
	FromStage Stage             `json:"from_stage"`
	ToStage   Stage             `json:"to_stage"`
	Reason    string            `json:"reason"`
	Meta      map[string]string `json:"meta,omitempty"`
}

type FollowupPayload struct {
	LeadID      string    `json:"lead_id"`
	ContactID   string    `json:"contact_id"`
	Reason      string    `json:"reason"`
	Timeframe   Timeframe `json:"timeframe"`
	SuggestedAt time.Time `json:"suggested_at"`
}

type OutboxRepositoryInterface interface {
	Enqueue(ctx context.Context, e *OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkPublished(ctx context.Context, seq int64, at time.Time) error
	MarkFailed(ctx context.Context, seq int64, reason string) error
}
