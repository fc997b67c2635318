package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const autoStageReason = "instant_quote"

type CommitLeadUseCase struct {
	Store           Store
	Identity        *IdentityResolver
	Scheduler       FollowupScheduler
	TargetStage     entity.Stage
	ConflictRetries int
	Logger          *zap.Logger
	Now             func() time.Time
}

func NewCommitLeadUseCase(
	store Store,
	identity *IdentityResolver,
	scheduler FollowupScheduler,
	targetStage entity.Stage,
	conflictRetries int,
	logger *zap.Logger,
) *CommitLeadUseCase {
	if targetStage == "" {
		targetStage = entity.StageQuoted
	}
	if scheduler == nil {
		scheduler = NewTimeframeScheduler()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitLeadUseCase{
		Store:           store,
		Identity:        identity,
		Scheduler:       scheduler,
		TargetStage:     targetStage,
		ConflictRetries: max(conflictRetries, 0),
		Logger:          logger,
		Now:             time.Now,
	}
}

// Execute files one intake in the CRM inside a single transaction. On an
// IdentityConflict the whole transaction is retried up to ConflictRetries
// times. The returned result always carries the state trail; on failure its
// Err matches the returned error.
func (uc *CommitLeadUseCase) Execute(ctx context.Context, input CommitLeadInput) (*CrmCommitResult, error) {
	var (
		res *CrmCommitResult
		err error
	)
	for attempt := 1; attempt <= uc.ConflictRetries+1; attempt++ {
		res, err = uc.commit(ctx, input)
		res.Attempts = attempt
		if err == nil {
			return res, nil
		}

		var conflict *IdentityConflict
		if !errors.As(err, &conflict) || !conflict.Retryable() || ctx.Err() != nil {
			break
		}
		if attempt <= uc.ConflictRetries {
			uc.Logger.Warn("retrying lead commit after identity conflict",
				zap.String("intake_id", input.Intake.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}

	res.Err = err
	return res, err
}

func (uc *CommitLeadUseCase) commit(ctx context.Context, input CommitLeadInput) (*CrmCommitResult, error) {
	trail := &CrmCommitResult{States: []CommitState{StateStart}}
	var out CrmCommitResult

	err := uc.Store.WithinTx(ctx, func(ctx context.Context, uow entity.UnitOfWork) error {
		contact, err := uc.Identity.UpsertContact(ctx, uow, ContactInput{
			FirstName: input.Contact.FirstName,
			LastName:  input.Contact.LastName,
			PhoneRaw:  input.Contact.PhoneRaw,
			PhoneE164: input.Contact.PhoneE164,
			Email:     input.Contact.Email,
			Source:    string(input.Intake.Channel),
		})
		if err != nil {
			return stepError(StateContactResolved, err)
		}
		out.ContactID = contact.ID
		trail.reach(StateContactResolved)

		property, err := uc.resolveProperty(ctx, uow, contact.ID, input.Intake)
		if err != nil {
			return stepError(StatePropertyResolved, err)
		}
		out.PropertyID = property.ID
		trail.reach(StatePropertyResolved)

		lead, err := entity.NewLead(contact.ID, property.ID, input.QuoteID, input.Intake, input.Contact)
		if err != nil {
			return stepError(StateLeadInserted, err)
		}
		if err := uow.Leads().Create(ctx, lead); err != nil {
			return stepError(StateLeadInserted, eris.Wrap(err, "commit: insert lead"))
		}
		out.LeadID = lead.ID
		trail.reach(StateLeadInserted)

		alert := entity.LeadAlertPayload{
			LeadID:      lead.ID,
			ContactID:   contact.ID,
			Source:      lead.Source,
			QuoteID:     input.QuoteID,
			ContactName: entity.ContactInfo{FirstName: contact.FirstName, LastName: contact.LastName}.FullName(),
			Phone:       contact.PhoneE164,
			Email:       contact.Email,
			PostalCode:  input.Intake.PostalCode,
			Services:    input.Intake.Services,
		}
		if input.Quote != nil {
			alert.PriceLow = input.Quote.PriceLow
			alert.PriceHigh = input.Quote.PriceHigh
		}
		if err := uc.enqueue(ctx, uow, &out, entity.EventLeadAlert, contact.ID, alert); err != nil {
			return stepError(StateEventsQueued, err)
		}

		from, err := uow.Pipeline().GetStage(ctx, contact.ID)
		if errors.Is(err, entity.ErrPipelineStateNotFound) {
			from, err = entity.StageNew, nil
		}
		if err != nil {
			return stepError(StatePipelineChecked, eris.Wrap(err, "commit: read pipeline stage"))
		}
		out.FromStage = from
		out.ToStage = from
		trail.reach(StatePipelineChecked)

		if from.ShouldAdvanceTo(uc.TargetStage) {
			now := uc.now()
			if err := uow.Pipeline().SetStage(ctx, &entity.PipelineState{
				ContactID: contact.ID,
				Stage:     uc.TargetStage,
				UpdatedAt: now,
			}); err != nil {
				return stepError(StatePipelineTransitioned, eris.Wrap(err, "commit: set pipeline stage"))
			}

			meta := map[string]string{"channel": string(input.Intake.Channel)}
			if input.QuoteID != "" {
				meta["quote_id"] = input.QuoteID
			}
			if err := uc.enqueue(ctx, uow, &out, entity.EventPipelineAutoStage, contact.ID, entity.StageChangePayload{
				ContactID: contact.ID,
				LeadID:    lead.ID,
				FromStage: from,
				ToStage:   uc.TargetStage,
				Reason:    autoStageReason,
				Meta:      meta,
			}); err != nil {
				return stepError(StatePipelineTransitioned, err)
			}
			out.ToStage = uc.TargetStage
			out.Transitioned = true
			trail.reach(StatePipelineTransitioned)
		}

		suggestedAt, reason := uc.Scheduler.Suggest(input.Intake, uc.now())
		if err := uc.enqueue(ctx, uow, &out, entity.EventFollowupSchedule, contact.ID, entity.FollowupPayload{
			LeadID:      lead.ID,
			ContactID:   contact.ID,
			Reason:      reason,
			Timeframe:   input.Intake.Timeframe,
			SuggestedAt: suggestedAt,
		}); err != nil {
			return stepError(StateEventsQueued, err)
		}
		trail.reach(StateEventsQueued)

		return nil
	})
	if err != nil {
		return trail, err
	}

	out.States = append(trail.States, StateCommit)
	return &out, nil
}

// resolveProperty reuses the contact's latest property, then the intake's
// address, then a per-contact placeholder in the intake's postal code.
func (uc *CommitLeadUseCase) resolveProperty(ctx context.Context, uow entity.UnitOfWork, contactID string, intake entity.JobIntake) (*entity.Property, error) {
	latest, err := uow.Properties().LatestByContactID(ctx, contactID)
	if err == nil {
		return latest, nil
	}
	if !errors.Is(err, entity.ErrPropertyNotFound) {
		return nil, eris.Wrap(err, "commit: find latest property")
	}

	in := PropertyInput{
		ContactID:    contactID,
		AddressLine1: entity.PlaceholderAddressLine(contactID),
		PostalCode:   intake.PostalCode,
	}
	if a := intake.Address; a != nil && a.Line1 != "" {
		in = PropertyInput{
			ContactID:    contactID,
			AddressLine1: a.Line1,
			City:         a.City,
			State:        a.State,
			PostalCode:   a.PostalCode,
			Gated:        a.Gated,
		}
	}
	return uc.Identity.UpsertProperty(ctx, uow, in)
}

func (uc *CommitLeadUseCase) enqueue(ctx context.Context, uow entity.UnitOfWork, out *CrmCommitResult, t entity.EventType, contactID string, payload any) error {
	event, err := entity.NewOutboxEvent(t, contactID, payload)
	if err != nil {
		return eris.Wrapf(err, "commit: build %s event", t)
	}
	if err := uow.Outbox().Enqueue(ctx, event); err != nil {
		return eris.Wrapf(err, "commit: enqueue %s event", t)
	}
	out.EventIDs = append(out.EventIDs, event.EventID)
	return nil
}

func (uc *CommitLeadUseCase) now() time.Time {
	if uc.Now == nil {
		return time.Now().UTC()
	}
	return uc.Now().UTC()
}

// stepError keeps IdentityConflict as is and tags anything else with the
// step it broke.
func stepError(step CommitState, err error) error {
	var conflict *IdentityConflict
	if errors.As(err, &conflict) {
		return err
	}
	var cte *CommitTransactionError
	if errors.As(err, &cte) {
		return err
	}
	return &CommitTransactionError{Step: step, Err: err}
}
