package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
)

const contactColumns = `id, first_name, last_name, email, phone_raw, phone_e164, salesperson_id, source, created_at, updated_at`

type ContactRepository struct {
	DB DBTX
}

func NewContactRepository(db DBTX) *ContactRepository {
	return &ContactRepository{DB: db}
}

func (r *ContactRepository) FindByEmail(ctx context.Context, email string) (*entity.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE email = $1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, email))
}

// FindByPhone prefers the phone-only contact, which is the row the phone
// uniqueness constraint applies to.
func (r *ContactRepository) FindByPhone(ctx context.Context, phoneE164 string) (*entity.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE phone_e164 = $1
		ORDER BY CASE WHEN email IS NULL THEN 0 ELSE 1 END, created_at
		LIMIT 1
	`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, phoneE164))
}

func (r *ContactRepository) Create(ctx context.Context, c *entity.Contact) error {
	query := `
		INSERT INTO contacts (id, first_name, last_name, email, phone_raw, phone_e164, salesperson_id, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.DB.ExecContext(ctx, query,
		c.ID,
		c.FirstName,
		c.LastName,
		nullString(c.Email),
		nullString(c.PhoneRaw),
		nullString(c.PhoneE164),
		nullString(c.SalespersonID),
		c.Source,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return entity.ErrContactAlreadyExists
		}
		return eris.Wrap(err, "contact repository: create")
	}
	return nil
}

func (r *ContactRepository) Update(ctx context.Context, c *entity.Contact) error {
	query := `
		UPDATE contacts
		SET first_name = $2, last_name = $3, email = $4, phone_raw = $5, phone_e164 = $6,
			salesperson_id = $7, updated_at = $8
		WHERE id = $1
	`

	res, err := r.DB.ExecContext(ctx, query,
		c.ID,
		c.FirstName,
		c.LastName,
		nullString(c.Email),
		nullString(c.PhoneRaw),
		nullString(c.PhoneE164),
		nullString(c.SalespersonID),
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return entity.ErrContactAlreadyExists
		}
		return eris.Wrap(err, "contact repository: update")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return entity.ErrContactNotFound
	}
	return nil
}

func (r *ContactRepository) scanOne(row *sql.Row) (*entity.Contact, error) {
	var c entity.Contact
	var email, phoneRaw, phoneE164, salesperson sql.NullString
	err := row.Scan(
		&c.ID,
		&c.FirstName,
		&c.LastName,
		&email,
		&phoneRaw,
		&phoneE164,
		&salesperson,
		&c.Source,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrContactNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "contact repository: scan")
	}

	c.Email = email.String
	c.PhoneRaw = phoneRaw.String
	c.PhoneE164 = phoneE164.String
	c.SalespersonID = salesperson.String
	return &c, nil
}
