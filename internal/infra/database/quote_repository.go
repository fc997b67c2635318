package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
)

type InstantQuoteRepository struct {
	DB DBTX
}

func NewInstantQuoteRepository(db DBTX) *InstantQuoteRepository {
	return &InstantQuoteRepository{DB: db}
}

func (r *InstantQuoteRepository) Create(ctx context.Context, q *entity.InstantQuote) error {
	query := `
		INSERT INTO instant_quotes (
			id, intake_id, price_low, price_high, load_fraction, display_tier_label, reason_summary,
			needs_in_person, min_units, max_units, min_high_units, source, discount_percent,
			discounted_low, discounted_high, intake, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	intake, err := json.Marshal(q.Intake)
	if err != nil {
		return eris.Wrap(err, "quote repository: marshal intake")
	}

	_, err = r.DB.ExecContext(ctx, query,
		q.ID,
		q.IntakeID,
		q.Quote.PriceLow,
		q.Quote.PriceHigh,
		q.Quote.LoadFractionEstimate,
		q.Quote.DisplayTierLabel,
		q.Quote.ReasonSummary,
		q.Quote.NeedsInPersonEstimate,
		q.Bounds.MinUnits,
		q.Bounds.MaxUnits,
		q.Bounds.MinHighUnits,
		string(q.Source),
		q.DiscountPercent,
		q.DiscountedLow,
		q.DiscountedHigh,
		string(intake),
		q.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "quote repository: create")
	}
	return nil
}

func (r *InstantQuoteRepository) FindByID(ctx context.Context, id string) (*entity.InstantQuote, error) {
	query := `
		SELECT id, intake_id, price_low, price_high, load_fraction, display_tier_label, reason_summary,
			needs_in_person, min_units, max_units, min_high_units, source, discount_percent,
			discounted_low, discounted_high, intake, created_at
		FROM instant_quotes
		WHERE id = $1
	`

	var (
		q      entity.InstantQuote
		source string
		intake []byte
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&q.ID,
		&q.IntakeID,
		&q.Quote.PriceLow,
		&q.Quote.PriceHigh,
		&q.Quote.LoadFractionEstimate,
		&q.Quote.DisplayTierLabel,
		&q.Quote.ReasonSummary,
		&q.Quote.NeedsInPersonEstimate,
		&q.Bounds.MinUnits,
		&q.Bounds.MaxUnits,
		&q.Bounds.MinHighUnits,
		&source,
		&q.DiscountPercent,
		&q.DiscountedLow,
		&q.DiscountedHigh,
		&intake,
		&q.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrQuoteNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "quote repository: find")
	}

	q.Source = entity.QuoteSource(source)
	if err := json.Unmarshal(intake, &q.Intake); err != nil {
		return nil, eris.Wrap(err, "quote repository: unmarshal intake")
	}
	return &q, nil
}
