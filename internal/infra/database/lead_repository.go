package database

import (
	"context"
	"encoding/json"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
)

type LeadRepository struct {
	DB DBTX
}

func NewLeadRepository(db DBTX) *LeadRepository {
	return &LeadRepository{DB: db}
}

func (r *LeadRepository) Create(ctx context.Context, lead *entity.Lead) error {
	query := `
		INSERT INTO leads (
			id, contact_id, property_id, quote_id, services, notes, status, source,
			utm_source, utm_medium, utm_campaign, referrer, landing_page, form_payload, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	services := lead.Services
	if services == nil {
		services = []entity.ServiceTag{}
	}
	servicesJSON, err := json.Marshal(services)
	if err != nil {
		return eris.Wrap(err, "lead repository: marshal services")
	}

	_, err = r.DB.ExecContext(ctx, query,
		lead.ID,
		lead.ContactID,
		lead.PropertyID,
		nullString(lead.QuoteID),
		string(servicesJSON),
		lead.Notes,
		string(lead.Status),
		lead.Source,
		lead.Attribution.UTMSource,
		lead.Attribution.UTMMedium,
		lead.Attribution.UTMCampaign,
		lead.Attribution.Referrer,
		lead.Attribution.LandingPage,
		string(lead.FormPayload),
		lead.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "lead repository: create")
	}
	return nil
}

// CountByContactID is used by reporting and tests.
func (r *LeadRepository) CountByContactID(ctx context.Context, contactID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE contact_id = $1`, contactID).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "lead repository: count")
	}
	return n, nil
}
