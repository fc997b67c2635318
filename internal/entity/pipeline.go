package entity

import (
	"context"
	"errors"
	"time"
)

var ErrPipelineStateNotFound = errors.New("pipeline state not found")

// Stage is a CRM pipeline stage.
type Stage string

const (
	StageNew       Stage = "new"
	StageContacted Stage = "contacted"
	StageQuoted    Stage = "quoted"
	StageBooked    Stage = "booked"
	StageCompleted Stage = "completed"
	StageLost      Stage = "lost"
)

var stageRank = map[Stage]int{
	StageNew:       0,
	StageLost:      0,
	StageContacted: 1,
	StageQuoted:    2,
	StageBooked:    3,
	StageCompleted: 4,
}

// Rank orders stages for forward-only automation. Unknown stages rank
// highest so automation never overwrites a stage it does not understand.
func (s Stage) Rank() int {
	if r, ok := stageRank[s]; ok {
		return r
	}
	return len(stageRank)
}

// ShouldAdvanceTo reports whether automation may move a contact from s into
// target. Moving into the current stage, or backward, is refused.
func (s Stage) ShouldAdvanceTo(target Stage) bool {
	return s != target && s.Rank() < target.Rank()
}

// PipelineState holds the single current stage of a contact.
type PipelineState struct {
	ContactID string    `json:"contact_id"`
	Stage     Stage     `json:"stage"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PipelineRepositoryInterface interface {
	GetStage(ctx context.Context, contactID string) (Stage, error)
	SetStage(ctx context.Context, state *PipelineState) error
}
