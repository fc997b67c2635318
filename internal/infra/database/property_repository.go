package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
)

type PropertyRepository struct {
	DB DBTX
}

func NewPropertyRepository(db DBTX) *PropertyRepository {
	return &PropertyRepository{DB: db}
}

func (r *PropertyRepository) LatestByContactID(ctx context.Context, contactID string) (*entity.Property, error) {
	query := `
		SELECT id, contact_id, address_line1, city, state, postal_code, gated, created_at, updated_at
		FROM properties
		WHERE contact_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var p entity.Property
	err := r.DB.QueryRowContext(ctx, query, contactID).Scan(
		&p.ID,
		&p.ContactID,
		&p.AddressLine1,
		&p.City,
		&p.State,
		&p.PostalCode,
		&p.Gated,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrPropertyNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "property repository: latest by contact")
	}
	return &p, nil
}

// Upsert keys on (address_line1, postal_code, state). On conflict the
// existing row is reassigned to p's contact and p takes the row's id and
// creation time.
func (r *PropertyRepository) Upsert(ctx context.Context, p *entity.Property) error {
	query := `
		INSERT INTO properties (id, contact_id, address_line1, city, state, postal_code, gated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (address_line1, postal_code, state)
		DO UPDATE SET
			contact_id = EXCLUDED.contact_id,
			city = EXCLUDED.city,
			gated = EXCLUDED.gated,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := r.DB.QueryRowContext(ctx, query,
		p.ID,
		p.ContactID,
		p.AddressLine1,
		p.City,
		p.State,
		p.PostalCode,
		p.Gated,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "property repository: upsert")
	}
	return nil
}
