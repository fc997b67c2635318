package entity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusScheduled LeadStatus = "scheduled"
)

// Lead is one row per intake event. Leads are never deduplicated.
type Lead struct {
	ID          string          `json:"id"`
	ContactID   string          `json:"contact_id"`
	PropertyID  string          `json:"property_id"`
	QuoteID     string          `json:"quote_id,omitempty"`
	Services    []ServiceTag    `json:"services"`
	Notes       string          `json:"notes,omitempty"`
	Status      LeadStatus      `json:"status"`
	Source      string          `json:"source"`
	Attribution Attribution     `json:"attribution"`
	FormPayload json.RawMessage `json:"form_payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewLead builds a lead for an intake, snapshotting the full normalized
// input into FormPayload for audit and replay.
func NewLead(contactID, propertyID, quoteID string, intake JobIntake, contact ContactInfo) (*Lead, error) {
	payload, err := json.Marshal(struct {
		Intake  JobIntake   `json:"intake"`
		Contact ContactInfo `json:"contact"`
	}{intake, contact})
	if err != nil {
		return nil, err
	}

	status := LeadStatusNew
	if intake.BookingRequested {
		status = LeadStatusScheduled
	}

	return &Lead{
		ID:          uuid.New().String(),
		ContactID:   contactID,
		PropertyID:  propertyID,
		QuoteID:     quoteID,
		Services:    intake.Services,
		Notes:       intake.Notes,
		Status:      status,
		Source:      string(intake.Channel),
		Attribution: intake.Attribution,
		FormPayload: payload,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

type LeadRepositoryInterface interface {
	Create(ctx context.Context, lead *Lead) error
}
