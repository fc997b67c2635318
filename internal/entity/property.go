package entity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrPropertyNotFound = errors.New("property not found")

// Property is a physical address. Its natural key is
// (AddressLine1, PostalCode, State); re-submitting the same address resolves
// to the same row and reassigns ContactID, City and Gated.
type Property struct {
	ID           string    `json:"id"`
	ContactID    string    `json:"contact_id"`
	AddressLine1 string    `json:"address_line1"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state"`
	PostalCode   string    `json:"postal_code"`
	Gated        bool      `json:"gated"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewProperty builds an unsaved property with its natural key normalized.
func NewProperty(contactID, line1, city, state, postalCode string, gated bool) *Property {
	now := time.Now().UTC()
	p := &Property{
		ID:           uuid.New().String(),
		ContactID:    contactID,
		AddressLine1: line1,
		City:         city,
		State:        state,
		PostalCode:   postalCode,
		Gated:        gated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.Normalize()
	return p
}

// Normalize trims the natural key fields and upper-cases the state.
func (p *Property) Normalize() {
	p.AddressLine1 = strings.Join(strings.Fields(p.AddressLine1), " ")
	p.City = strings.TrimSpace(p.City)
	p.State = strings.ToUpper(strings.TrimSpace(p.State))
	p.PostalCode = strings.TrimSpace(p.PostalCode)
}

// PlaceholderAddressLine is the synthetic line used when only a postal code
// is known. It embeds the full contact id so placeholders of different
// contacts in the same postal code never share a natural key.
func PlaceholderAddressLine(contactID string) string {
	return "Pending address (" + contactID + ")"
}

type PropertyRepositoryInterface interface {
	LatestByContactID(ctx context.Context, contactID string) (*Property, error)
	// Upsert inserts p or, on a natural key conflict, reassigns the existing
	// row and loads its id into p.
	Upsert(ctx context.Context, p *Property) error
}
