package usecase

import (
	"github.com/hauldesk/hauldesk-api/internal/entity"
)

// QuoteRequest is the wire shape shared by the web form, the chat widget and
// the AI quote endpoint.
type QuoteRequest struct {
	Channel          string               `json:"channel"`
	FirstName        string               `json:"first_name"`
	LastName         string               `json:"last_name"`
	Email            string               `json:"email"`
	Phone            string               `json:"phone"`
	Services         []string             `json:"services"`
	Size             string               `json:"size"`
	Notes            string               `json:"notes"`
	PostalCode       string               `json:"postal_code"`
	PhotoURLs        []string             `json:"photo_urls"`
	Timeframe        string               `json:"timeframe"`
	BookingRequested bool                 `json:"booking_requested"`
	Address          *entity.AddressInput `json:"address,omitempty"`
	UTMSource        string               `json:"utm_source"`
	UTMMedium        string               `json:"utm_medium"`
	UTMCampaign      string               `json:"utm_campaign"`
	Referrer         string               `json:"referrer"`
	LandingPage      string               `json:"landing_page"`
}

// SocialLeadWebhook is the lead-ads webhook envelope of the social platform.
type SocialLeadWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string          `json:"field"`
			Value SocialLeadValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type SocialLeadValue struct {
	LeadgenID   string            `json:"leadgen_id"`
	FormID      string            `json:"form_id"`
	AdID        string            `json:"ad_id"`
	CampaignID  string            `json:"campaign_id"`
	CreatedTime int64             `json:"created_time"`
	FieldData   []SocialFieldData `json:"field_data"`
}

type SocialFieldData struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// InstantQuoteInput is a normalized intake ready for quoting.
type InstantQuoteInput struct {
	Intake  entity.JobIntake
	Contact entity.ContactInfo
}

// QuoteResult is the customer-facing half of an instant quote. It exists
// whenever the intake passed validation.
type QuoteResult struct {
	QuoteID         string             `json:"quote_id,omitempty"`
	Quote           entity.Quote       `json:"quote"`
	Bounds          entity.QuoteBounds `json:"bounds"`
	Source          entity.QuoteSource `json:"source"`
	DiscountPercent int                `json:"discount_percent"`
	DiscountedLow   int                `json:"discounted_low"`
	DiscountedHigh  int                `json:"discounted_high"`
}

// InstantQuoteOutput pairs the quote with the independently failable CRM
// commit outcome.
type InstantQuoteOutput struct {
	Quote QuoteResult
	CRM   *CrmCommitResult
}

type CommitLeadInput struct {
	Intake  entity.JobIntake
	Contact entity.ContactInfo
	QuoteID string
	Quote   *entity.Quote
}

type CommitState string

const (
	StateStart                CommitState = "START"
	StateContactResolved      CommitState = "CONTACT_RESOLVED"
	StatePropertyResolved     CommitState = "PROPERTY_RESOLVED"
	StateLeadInserted         CommitState = "LEAD_INSERTED"
	StatePipelineChecked      CommitState = "PIPELINE_CHECKED"
	StatePipelineTransitioned CommitState = "PIPELINE_TRANSITIONED"
	StateEventsQueued         CommitState = "EVENTS_QUEUED"
	StateCommit               CommitState = "COMMIT"
)

// CrmCommitResult is the outcome of filing one intake in the CRM. Err is set
// when the transaction rolled back; the ids are only set after a commit.
type CrmCommitResult struct {
	ContactID    string
	PropertyID   string
	LeadID       string
	FromStage    entity.Stage
	ToStage      entity.Stage
	Transitioned bool
	EventIDs     []string
	States       []CommitState
	Attempts     int
	Err          error
}

func (r *CrmCommitResult) OK() bool {
	return r != nil && r.Err == nil
}

func (r *CrmCommitResult) reach(s CommitState) {
	r.States = append(r.States, s)
}

// ContactInput is the normalized person data handed to the identity
// resolver.
type ContactInput struct {
	FirstName string
	LastName  string
	PhoneRaw  string
	PhoneE164 string
	Email     string
	Source    string
}

type PropertyInput struct {
	ContactID    string
	AddressLine1 string
	City         string
	State        string
	PostalCode   string
	Gated        bool
}
