package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workeasy-api/internal/models"
)

func newStoreRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var storeRowColumns = []string{"id", "name", "address", "phone", "owner_id", "created_at", "updated_at"}

func TestStoreRepositoryCreateAsOwner(t *testing.T) {
	db, mock, cleanup := newStoreRepoMock(t)
	defer cleanup()
	repo := NewStoreRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profiles")).
		WithArgs("owner-1", models.RoleManager, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stores")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO store_users")).
		WithArgs(sqlmock.AnyArg(), "owner-1", models.RoleManager, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store, err := repo.CreateAsOwner(context.Background(), "owner-1", models.CreateStoreInput{Name: "강남점"})
	require.NoError(t, err)
	assert.Equal(t, "강남점", store.Name)
	assert.Equal(t, "owner-1", store.OwnerID)
	assert.NotEmpty(t, store.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepositoryCreateAsOwnerRollsBack(t *testing.T) {
	db, mock, cleanup := newStoreRepoMock(t)
	defer cleanup()
	repo := NewStoreRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profiles")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stores")).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.CreateAsOwner(context.Background(), "owner-1", models.CreateStoreInput{Name: "x"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepositoryMemberRole(t *testing.T) {
	db, mock, cleanup := newStoreRepoMock(t)
	defer cleanup()
	repo := NewStoreRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT CASE WHEN s.owner_id = $2")).
		WithArgs("store-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("staff"))

	role, err := repo.MemberRole(context.Background(), "store-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, role)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT CASE WHEN s.owner_id = $2")).
		WithArgs("store-1", "stranger").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.MemberRole(context.Background(), "store-1", "stranger")
	assert.True(t, IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepositoryFirstMembershipStore(t *testing.T) {
	db, mock, cleanup := newStoreRepoMock(t)
	defer cleanup()
	repo := NewStoreRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM store_users su")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(storeRowColumns).AddRow("store-1", "카페", nil, nil, "owner-1", now, now))

	store, err := repo.FirstMembershipStore(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "store-1", store.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepositoryListStaffUsesFallbackName(t *testing.T) {
	db, mock, cleanup := newStoreRepoMock(t)
	defer cleanup()
	repo := NewStoreRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(NULLIF(p.full_name, ''), $2)")).
		WithArgs("store-1", models.UnnamedProfile).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role", "full_name", "avatar_url"}).
			AddRow("user-1", "staff", models.UnnamedProfile, nil))

	staff, err := repo.ListStaff(context.Background(), "store-1")
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, models.UnnamedProfile, staff[0].FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepositoryProfilesByIDs(t *testing.T) {
	db, mock, cleanup := newStoreRepoMock(t)
	defer cleanup()
	repo := NewStoreRepository(db)

	empty, err := repo.ProfilesByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "avatar_url", "role", "created_at", "updated_at"}).
			AddRow("user-1", "김민지", nil, "staff", now, now).
			AddRow("user-2", nil, nil, nil, now, now))

	profiles, err := repo.ProfilesByIDs(context.Background(), []string{"user-1", "user-2"})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "김민지", profiles[0].DisplayName())
	assert.Equal(t, models.UnnamedProfile, profiles[1].DisplayName())
	require.NoError(t, mock.ExpectationsWereMet())
}
