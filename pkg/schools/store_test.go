package schools

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/campus/pkg/apperr"
)

func schoolRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "address", "city", "phone", "email",
		"director_first_name", "director_last_name", "director_email", "director_phone",
		"status", "rejection_reason", "validated_at", "validated_by", "created_at", "updated_at",
	})
}

func pendingSchoolRow(id int64) *sqlmock.Rows {
	now := time.Now()
	return schoolRows().AddRow(
		id, "Northside Academy", "12 Hill Road", "Springfield", "+15550100", "office@northside.example.com",
		"Ada", "Lovelace", "ada@northside.example.com", "+15550101",
		"pending", nil, nil, nil, now, now,
	)
}

func TestPostgresStore_Create(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("INSERT INTO schools").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	school := &School{
		Name:          "Northside Academy",
		Email:         "Office@Northside.Example.com",
		DirectorEmail: "Ada@Northside.Example.com",
	}

	err = store.Create(ctx, school)
	require.NoError(t, err)
	assert.Equal(t, int64(3), school.ID)
	assert.Equal(t, StatusPending, school.Status)
	assert.Equal(t, "office@northside.example.com", school.Email)
	assert.Equal(t, "ada@northside.example.com", school.DirectorEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_DuplicateEmail(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("INSERT INTO schools").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "schools_email_key"})

	err = store.Create(ctx, &School{Name: "Dup", Email: "dup@example.com"})
	assert.True(t, apperr.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT (.+) FROM schools WHERE id").
		WithArgs(int64(3)).
		WillReturnRows(pendingSchoolRow(3))

	school, err := store.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, school.Status)
	assert.Empty(t, school.RejectionReason)
	assert.Nil(t, school.ValidatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT (.+) FROM schools WHERE id").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	school, err := store.Get(ctx, 99)
	assert.Nil(t, school)
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EmailInUse(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ada@northside.example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	inUse, err := store.EmailInUse(ctx, "Ada@Northside.Example.com")
	require.NoError(t, err)
	assert.True(t, inUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Approve(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec("UPDATE schools").
		WithArgs("validated", int64(500), int64(3), "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.Approve(ctx, 3, 500))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Approve_NotPending(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec("UPDATE schools").
		WithArgs("validated", int64(500), int64(3), "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	// The store distinguishes "missing" from "wrong state" with a follow-up
	// read.
	mock.ExpectQuery("SELECT (.+) FROM schools WHERE id").
		WithArgs(int64(3)).
		WillReturnRows(pendingSchoolRow(3))

	err = store.Approve(ctx, 3, 500)
	assert.True(t, apperr.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Approve_UnknownSchool(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec("UPDATE schools").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM schools WHERE id").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	err = store.Approve(ctx, 99, 500)
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Reject(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec("UPDATE schools").
		WithArgs("rejected", "Missing required documentation", int64(3), "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.Reject(ctx, 3, "Missing required documentation"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Suspend(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec("UPDATE schools").
		WithArgs("suspended", int64(3), "validated").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.Suspend(ctx, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
