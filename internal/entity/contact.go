package entity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrContactNotFound      = errors.New("contact not found")
	ErrContactAlreadyExists = errors.New("contact already exists")
)

// Contact is a person in the CRM. Contacts are deduplicated by normalized
// email when present, otherwise by E.164 phone, and are never hard-deleted
// by the commit pipeline.
type Contact struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email,omitempty"`
	PhoneRaw      string    `json:"phone_raw,omitempty"`
	PhoneE164     string    `json:"phone_e164,omitempty"`
	SalespersonID string    `json:"salesperson_id,omitempty"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewContact builds an unsaved contact with a fresh id and timestamps.
func NewContact(info ContactInfo, source string) *Contact {
	now := time.Now().UTC()
	return &Contact{
		ID:        uuid.New().String(),
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Email:     info.Email,
		PhoneRaw:  info.PhoneRaw,
		PhoneE164: info.PhoneE164,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks that the contact can be deduplicated.
func (c *Contact) Validate() error {
	if c.Email == "" && c.PhoneE164 == "" {
		return errors.New("contact needs an email or a phone number")
	}
	return nil
}

// ContactPatch describes the mutation applied to an existing contact on a
// repeat submission. Name and phone always follow the latest submission;
// email and salesperson only fill blanks.
type ContactPatch struct {
	FirstName     string
	LastName      string
	PhoneRaw      string
	PhoneE164     string
	Email         string
	SalespersonID string
}

// Apply mutates c according to the fill-blanks rules and reports whether
// anything changed.
func (p ContactPatch) Apply(c *Contact) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}

	set(&c.FirstName, p.FirstName)
	set(&c.LastName, p.LastName)
	set(&c.PhoneRaw, p.PhoneRaw)
	set(&c.PhoneE164, p.PhoneE164)
	fill(&c.Email, p.Email)
	fill(&c.SalespersonID, p.SalespersonID)

	if changed {
		c.UpdatedAt = time.Now().UTC()
	}
	return changed
}

type ContactRepositoryInterface interface {
	FindByEmail(ctx context.Context, email string) (*Contact, error)
	FindByPhone(ctx context.Context, phoneE164 string) (*Contact, error)
	// Create returns ErrContactAlreadyExists when a dedup key is taken.
	Create(ctx context.Context, c *Contact) error
	Update(ctx context.Context, c *Contact) error
}
