package usecase

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/hauldesk/hauldesk-api/internal/infra/database"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) (*database.Store, *sql.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDBConnection(ctx, database.Options{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "crm.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))

	return database.NewStore(db), db
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

// staleReads makes the first N email lookups miss, reproducing the window in
// which a concurrent transaction inserts the same contact.
type staleReads struct {
	entity.UnitOfWork
	misses int
}

func (u *staleReads) Contacts() entity.ContactRepositoryInterface {
	return &staleContacts{ContactRepositoryInterface: u.UnitOfWork.Contacts(), uow: u}
}

type staleContacts struct {
	entity.ContactRepositoryInterface
	uow *staleReads
}

func (s *staleContacts) FindByEmail(ctx context.Context, email string) (*entity.Contact, error) {
	if s.uow.misses > 0 {
		s.uow.misses--
		return nil, entity.ErrContactNotFound
	}
	return s.ContactRepositoryInterface.FindByEmail(ctx, email)
}

type staleStore struct {
	Store
	misses int
}

func (s *staleStore) WithinTx(ctx context.Context, fn func(ctx context.Context, uow entity.UnitOfWork) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, uow entity.UnitOfWork) error {
		return fn(ctx, &staleReads{UnitOfWork: uow, misses: s.misses})
	})
}
