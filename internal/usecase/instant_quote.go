package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hauldesk/hauldesk-api/internal/entity"
	"go.uber.org/zap"
)

const (
	DefaultAITimeout     = 8 * time.Second
	DefaultCommitTimeout = 15 * time.Second
)

// InstantQuoteUseCase produces a bounded quote for an intake and then files
// the intake in the CRM. The quote never depends on the CRM commit.
type InstantQuoteUseCase struct {
	Engine          BoundsEngine
	Validator       QuoteValidator
	Generator       QuoteCandidateGenerator
	Quotes          entity.InstantQuoteRepositoryInterface
	Commit          LeadCommitter
	AITimeout       time.Duration
	CommitTimeout   time.Duration
	DiscountPercent int
	Logger          *zap.Logger
}

func NewInstantQuoteUseCase(
	engine BoundsEngine,
	validator QuoteValidator,
	generator QuoteCandidateGenerator,
	quotes entity.InstantQuoteRepositoryInterface,
	commit LeadCommitter,
	aiTimeout time.Duration,
	discountPercent int,
	logger *zap.Logger,
) *InstantQuoteUseCase {
	if aiTimeout <= 0 {
		aiTimeout = DefaultAITimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstantQuoteUseCase{
		Engine:          engine,
		Validator:       validator,
		Generator:       generator,
		Quotes:          quotes,
		Commit:          commit,
		AITimeout:       aiTimeout,
		CommitTimeout:   DefaultCommitTimeout,
		DiscountPercent: discountPercent,
		Logger:          logger,
	}
}

// Execute returns ValidationErrors for a malformed intake. Any other failure
// is absorbed: generator problems fall back to a deterministic quote, and
// CRM problems are reported only through the output's CRM result.
func (uc *InstantQuoteUseCase) Execute(ctx context.Context, input InstantQuoteInput) (*InstantQuoteOutput, error) {
	if errs := ValidateInstantQuoteInput(input); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	if input.Intake.ID == "" {
		input.Intake.ID = uuid.New().String()
	}
	intake := input.Intake

	bounds := uc.Engine.Bounds(intake)
	quote, source := uc.quote(ctx, intake, bounds)

	record := &entity.InstantQuote{
		ID:        uuid.New().String(),
		IntakeID:  intake.ID,
		Quote:     quote,
		Bounds:    bounds,
		Source:    source,
		Intake:    intake,
		CreatedAt: time.Now().UTC(),
	}
	record.ApplyDiscount(uc.DiscountPercent)

	result := QuoteResult{
		Quote:           quote,
		Bounds:          bounds,
		Source:          source,
		DiscountPercent: record.DiscountPercent,
		DiscountedLow:   record.DiscountedLow,
		DiscountedHigh:  record.DiscountedHigh,
	}

	// Filing outlives the request: a client that hangs up after seeing the
	// quote must not roll back its lead.
	fileCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.commitTimeout())
	defer cancel()

	if uc.Quotes != nil {
		if err := uc.Quotes.Create(fileCtx, record); err != nil {
			uc.Logger.Error("failed to persist instant quote",
				zap.String("intake_id", intake.ID),
				zap.Error(err),
			)
		} else {
			result.QuoteID = record.ID
		}
	}

	out := &InstantQuoteOutput{Quote: result}
	if uc.Commit == nil {
		return out, nil
	}

	crm, err := uc.Commit.Execute(fileCtx, CommitLeadInput{
		Intake:  intake,
		Contact: input.Contact,
		QuoteID: result.QuoteID,
		Quote:   &quote,
	})
	if crm == nil {
		crm = &CrmCommitResult{Err: err}
	}
	if err != nil {
		uc.Logger.Error("crm commit failed; quote kept for manual reconciliation",
			zap.String("quote_id", result.QuoteID),
			zap.String("intake_id", intake.ID),
			zap.Strings("states", statesToStrings(crm.States)),
			zap.Error(err),
		)
	}
	out.CRM = crm

	return out, nil
}

func (uc *InstantQuoteUseCase) quote(ctx context.Context, intake entity.JobIntake, bounds entity.QuoteBounds) (entity.Quote, entity.QuoteSource) {
	if uc.Generator == nil {
		return uc.Validator.Fallback(bounds, intake.Size), entity.QuoteSourceFallback
	}

	genCtx, cancel := context.WithTimeout(ctx, uc.AITimeout)
	defer cancel()

	candidate, err := uc.Generator.Generate(genCtx, intake, bounds)
	if err == nil && candidate == nil {
		err = &UpstreamQuoteError{Reason: "schema_mismatch", Err: errors.New("generator returned no candidate")}
	}
	if err != nil {
		upstream := asUpstreamError(genCtx, err)
		uc.Logger.Warn("candidate quote unavailable, using fallback",
			zap.String("intake_id", intake.ID),
			zap.String("variant", upstream.Variant),
			zap.String("reason", upstream.Reason),
			zap.Error(upstream.Err),
		)
		return uc.Validator.Fallback(bounds, intake.Size), entity.QuoteSourceFallback
	}

	return uc.Validator.Validate(*candidate, bounds, intake.Size), entity.QuoteSourceLLM
}

func (uc *InstantQuoteUseCase) commitTimeout() time.Duration {
	if uc.CommitTimeout <= 0 {
		return DefaultCommitTimeout
	}
	return uc.CommitTimeout
}

func asUpstreamError(ctx context.Context, err error) *UpstreamQuoteError {
	var upstream *UpstreamQuoteError
	if errors.As(err, &upstream) {
		return upstream
	}
	reason := "error"
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = "timeout"
	}
	return &UpstreamQuoteError{Reason: reason, Err: err}
}

func statesToStrings(states []CommitState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
