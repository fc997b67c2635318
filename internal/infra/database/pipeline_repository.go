package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
)

type PipelineRepository struct {
	DB DBTX
}

func NewPipelineRepository(db DBTX) *PipelineRepository {
	return &PipelineRepository{DB: db}
}

func (r *PipelineRepository) GetStage(ctx context.Context, contactID string) (entity.Stage, error) {
	var stage string
	err := r.DB.QueryRowContext(ctx, `SELECT stage FROM pipeline_states WHERE contact_id = $1`, contactID).Scan(&stage)
	if errors.Is(err, sql.ErrNoRows) {
		return "", entity.ErrPipelineStateNotFound
	}
	if err != nil {
		return "", eris.Wrap(err, "pipeline repository: get stage")
	}
	return entity.Stage(stage), nil
}

// SetStage keeps at most one row per contact.
func (r *PipelineRepository) SetStage(ctx context.Context, state *entity.PipelineState) error {
	query := `
		INSERT INTO pipeline_states (contact_id, stage, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (contact_id)
		DO UPDATE SET stage = EXCLUDED.stage, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.DB.ExecContext(ctx, query, state.ContactID, string(state.Stage), state.UpdatedAt); err != nil {
		return eris.Wrap(err, "pipeline repository: set stage")
	}
	return nil
}
