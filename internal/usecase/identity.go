package usecase

import (
	"context"
	"errors"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const contactInsertSavepoint = "contact_insert"

// IdentityResolver finds or creates contacts and properties inside an open
// unit of work. Concurrent calls for the same person converge on one row:
// the loser of an insert race observes the uniqueness violation, rolls back
// to a savepoint and re-selects the winner.
type IdentityResolver struct {
	DefaultSalespersonID string
	Logger               *zap.Logger
}

func NewIdentityResolver(defaultSalespersonID string, logger *zap.Logger) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityResolver{DefaultSalespersonID: defaultSalespersonID, Logger: logger}
}

func (r *IdentityResolver) UpsertContact(ctx context.Context, uow entity.UnitOfWork, in ContactInput) (*entity.Contact, error) {
	email := NormalizeEmail(in.Email)
	if email == "" && in.PhoneE164 == "" {
		return nil, eris.New("identity: contact needs an email or a phone number")
	}

	existing, err := r.lookup(ctx, uow, email, in.PhoneE164)
	if err != nil {
		return nil, eris.Wrap(err, "identity: lookup contact")
	}
	if existing != nil {
		patch := entity.ContactPatch{
			FirstName:     in.FirstName,
			LastName:      in.LastName,
			PhoneRaw:      in.PhoneRaw,
			PhoneE164:     in.PhoneE164,
			Email:         email,
			SalespersonID: r.DefaultSalespersonID,
		}
		if patch.Apply(existing) {
			if err := uow.Contacts().Update(ctx, existing); err != nil {
				return nil, eris.Wrap(err, "identity: update contact")
			}
		}
		return existing, nil
	}

	c := entity.NewContact(entity.ContactInfo{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     email,
		PhoneRaw:  in.PhoneRaw,
		PhoneE164: in.PhoneE164,
	}, in.Source)
	c.SalespersonID = r.DefaultSalespersonID

	err = uow.Savepoint(ctx, contactInsertSavepoint, func(ctx context.Context) error {
		return uow.Contacts().Create(ctx, c)
	})
	if err == nil {
		return c, nil
	}

	key := dedupKey(email, in.PhoneE164)
	if !errors.Is(err, entity.ErrContactAlreadyExists) {
		return nil, &IdentityConflict{Entity: "contact", Key: key, Err: err}
	}

	r.Logger.Debug("contact insert lost a race, re-selecting", zap.String("key", key))

	winner, err := r.reselect(ctx, uow, email, in.PhoneE164)
	if err != nil {
		return nil, &IdentityConflict{Entity: "contact", Key: key, Err: err}
	}
	if winner == nil {
		return nil, &IdentityConflict{Entity: "contact", Key: key, Err: entity.ErrContactNotFound}
	}
	return winner, nil
}

// lookup follows the dedup key: email when present, otherwise phone.
func (r *IdentityResolver) lookup(ctx context.Context, uow entity.UnitOfWork, email, phone string) (*entity.Contact, error) {
	if email != "" {
		return found(uow.Contacts().FindByEmail(ctx, email))
	}
	return found(uow.Contacts().FindByPhone(ctx, phone))
}

// reselect tries email then phone, since the winner of the race may have
// been keyed by either.
func (r *IdentityResolver) reselect(ctx context.Context, uow entity.UnitOfWork, email, phone string) (*entity.Contact, error) {
	if email != "" {
		c, err := found(uow.Contacts().FindByEmail(ctx, email))
		if err != nil || c != nil {
			return c, err
		}
	}
	if phone != "" {
		return found(uow.Contacts().FindByPhone(ctx, phone))
	}
	return nil, nil
}

func found(c *entity.Contact, err error) (*entity.Contact, error) {
	if errors.Is(err, entity.ErrContactNotFound) {
		return nil, nil
	}
	return c, err
}

func dedupKey(email, phone string) string {
	if email != "" {
		return email
	}
	return phone
}

// UpsertProperty resolves an address by its natural key. A re-submitted
// address keeps its row but moves to the submitting contact.
func (r *IdentityResolver) UpsertProperty(ctx context.Context, uow entity.UnitOfWork, in PropertyInput) (*entity.Property, error) {
	p := entity.NewProperty(in.ContactID, in.AddressLine1, in.City, in.State, in.PostalCode, in.Gated)
	if p.AddressLine1 == "" || p.PostalCode == "" {
		return nil, eris.New("identity: property needs an address line and postal code")
	}

	if err := uow.Properties().Upsert(ctx, p); err != nil {
		return nil, &IdentityConflict{
			Entity: "property",
			Key:    p.AddressLine1 + "|" + p.PostalCode + "|" + p.State,
			Err:    err,
		}
	}
	return p, nil
}
