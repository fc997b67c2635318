package usecase

import (
	"context"
	"time"

	"github.com/hauldesk/hauldesk-api/internal/entity"
)

// Store runs fn inside one database transaction, committing when fn returns
// nil and rolling back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow entity.UnitOfWork) error) error
}

// QuoteCandidateGenerator proposes an untrusted quote for an intake. The
// bounds are passed so the generator can be told to stay inside them.
type QuoteCandidateGenerator interface {
	Generate(ctx context.Context, intake entity.JobIntake, bounds entity.QuoteBounds) (*entity.CandidateQuote, error)
}

// FollowupScheduler suggests when staff should follow up on a lead.
type FollowupScheduler interface {
	Suggest(intake entity.JobIntake, from time.Time) (at time.Time, reason string)
}

type BoundsEngine interface {
	Bounds(intake entity.JobIntake) entity.QuoteBounds
}

type QuoteValidator interface {
	Validate(c entity.CandidateQuote, b entity.QuoteBounds, size entity.PerceivedSize) entity.Quote
	Fallback(b entity.QuoteBounds, size entity.PerceivedSize) entity.Quote
}

type LeadCommitter interface {
	Execute(ctx context.Context, input CommitLeadInput) (*CrmCommitResult, error)
}
