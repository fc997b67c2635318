package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContact(email, phone string) *entity.Contact {
	return entity.NewContact(entity.ContactInfo{
		FirstName: "Dana",
		LastName:  "Reyes",
		Email:     email,
		PhoneRaw:  phone,
		PhoneE164: phone,
	}, "web_form")
}

func TestContactRepositoryCreate_UniqueViolation(t *testing.T) {
	driverErrors := map[string]error{
		"pgx":     &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"},
		"lib/pq":  &pq.Error{Code: "23505"},
		"foreign": errors.New("connection reset"),
	}

	for name, driverErr := range driverErrors {
		t.Run(name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec(`INSERT INTO contacts`).WillReturnError(driverErr)

			err = NewContactRepository(db).Create(context.Background(), newContact("dana@example.com", ""))
			if name == "foreign" {
				assert.Error(t, err)
				assert.NotErrorIs(t, err, entity.ErrContactAlreadyExists)
			} else {
				assert.ErrorIs(t, err, entity.ErrContactAlreadyExists)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestContactRepositoryFindByEmail_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM contacts WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewContactRepository(db).FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, entity.ErrContactNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepositoryFindByEmail_NullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "phone_raw", "phone_e164", "salesperson_id", "source", "created_at", "updated_at"}).
		AddRow("c-1", "Dana", "Reyes", "dana@example.com", nil, nil, nil, "web_form", now, now)
	mock.ExpectQuery(`SELECT .* FROM contacts WHERE email = \$1`).
		WithArgs("dana@example.com").
		WillReturnRows(rows)

	c, err := NewContactRepository(db).FindByEmail(context.Background(), "dana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "c-1", c.ID)
	assert.Empty(t, c.PhoneE164)
	assert.Empty(t, c.SalespersonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavepointRecoversFromFailedInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`^SAVEPOINT contact_insert$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO contacts`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectExec(`^ROLLBACK TO SAVEPOINT contact_insert$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^RELEASE SAVEPOINT contact_insert$`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO pipeline_states`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewStore(db)
	err = store.WithinTx(context.Background(), func(ctx context.Context, uow entity.UnitOfWork) error {
		insertErr := uow.Savepoint(ctx, "contact_insert", func(ctx context.Context) error {
			return uow.Contacts().Create(ctx, newContact("dana@example.com", ""))
		})
		require.ErrorIs(t, insertErr, entity.ErrContactAlreadyExists)

		return uow.Pipeline().SetStage(ctx, &entity.PipelineState{
			ContactID: "c-1",
			Stage:     entity.StageQuoted,
			UpdatedAt: time.Now(),
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewStore(db).WithinTx(context.Background(), func(ctx context.Context, uow entity.UnitOfWork) error {
		return boom
	})
	assert.Same(t, boom, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavepointRejectsUnsafeName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = NewStore(db).WithinTx(context.Background(), func(ctx context.Context, uow entity.UnitOfWork) error {
		return uow.Savepoint(ctx, "x; DROP TABLE contacts", func(ctx context.Context) error { return nil })
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepository_SQLite(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()
	repo := NewContactRepository(db)

	c := newContact("dana@example.com", "+12015550123")
	require.NoError(t, repo.Create(ctx, c))

	t.Run("Duplicate email", func(t *testing.T) {
		err := repo.Create(ctx, newContact("dana@example.com", ""))
		assert.ErrorIs(t, err, entity.ErrContactAlreadyExists)
	})

	t.Run("Phone-only contacts are unique by phone", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newContact("", "+12015550124")))
		err := repo.Create(ctx, newContact("", "+12015550124"))
		assert.ErrorIs(t, err, entity.ErrContactAlreadyExists)
	})

	t.Run("Phone shared with an email contact is allowed", func(t *testing.T) {
		assert.NoError(t, repo.Create(ctx, newContact("", "+12015550123")))
	})

	t.Run("Find by phone prefers the phone-only row", func(t *testing.T) {
		got, err := repo.FindByPhone(ctx, "+12015550123")
		require.NoError(t, err)
		assert.Empty(t, got.Email)
	})

	t.Run("Update", func(t *testing.T) {
		c.PhoneE164 = "+12015550199"
		c.SalespersonID = "sp-1"
		require.NoError(t, repo.Update(ctx, c))

		got, err := repo.FindByEmail(ctx, "dana@example.com")
		require.NoError(t, err)
		assert.Equal(t, "+12015550199", got.PhoneE164)
		assert.Equal(t, "sp-1", got.SalespersonID)
	})
}
