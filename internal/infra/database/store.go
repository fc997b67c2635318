package database

import (
	"context"
	"database/sql"
	"regexp"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/rotisserie/eris"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every repository works
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var savepointName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// WithinTx commits when fn returns nil and rolls back otherwise. The error
// from fn is returned unchanged so callers can match typed errors.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow entity.UnitOfWork) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin tx")
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, newUnitOfWork(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit")
	}
	committed = true
	return nil
}

type unitOfWork struct {
	tx         *sql.Tx
	contacts   *ContactRepository
	properties *PropertyRepository
	leads      *LeadRepository
	pipeline   *PipelineRepository
	outbox     *OutboxRepository
}

func newUnitOfWork(tx *sql.Tx) *unitOfWork {
	return &unitOfWork{
		tx:         tx,
		contacts:   NewContactRepository(tx),
		properties: NewPropertyRepository(tx),
		leads:      NewLeadRepository(tx),
		pipeline:   NewPipelineRepository(tx),
		outbox:     NewOutboxRepository(tx),
	}
}

func (u *unitOfWork) Contacts() entity.ContactRepositoryInterface { return u.contacts }
func (u *unitOfWork) Properties() entity.PropertyRepositoryInterface { return u.properties }
func (u *unitOfWork) Leads() entity.LeadRepositoryInterface { return u.leads }
func (u *unitOfWork) Pipeline() entity.PipelineRepositoryInterface { return u.pipeline }
func (u *unitOfWork) Outbox() entity.OutboxRepositoryInterface { return u.outbox }

func (u *unitOfWork) Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return withSavepoint(ctx, u.tx, name, fn)
}

// withSavepoint brackets fn with SAVEPOINT / RELEASE. When fn fails the
// savepoint is rolled back and released, leaving the transaction usable, and
// fn's error is returned.
func withSavepoint(ctx context.Context, tx DBTX, name string, fn func(ctx context.Context) error) error {
	if !savepointName.MatchString(name) {
		return eris.Errorf("store: invalid savepoint name %q", name)
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return eris.Wrapf(err, "store: savepoint %s", name)
	}

	if fnErr := fn(ctx); fnErr != nil {
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
			return eris.Wrapf(err, "store: rollback to savepoint %s after %v", name, fnErr)
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
			return eris.Wrapf(err, "store: release savepoint %s", name)
		}
		return fnErr
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return eris.Wrapf(err, "store: release savepoint %s", name)
	}
	return nil
}
