package rbac

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

func roleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "school_id", "is_system_role", "is_active", "created_at", "updated_at",
	})
}

func permissionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "category", "description", "created_at"})
}

func TestPostgresStore_CreateRole(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	schoolID := int64(42)
	mock.ExpectQuery("INSERT INTO roles").
		WithArgs("teacher", "Teaching staff", &schoolID, false, true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	role := &Role{
		Name:        "teacher",
		Description: "Teaching staff",
		SchoolID:    &schoolID,
		IsActive:    true,
	}

	err = store.CreateRole(ctx, role)
	require.NoError(t, err)
	assert.Equal(t, int64(5), role.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRole_DuplicateName(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("INSERT INTO roles").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "roles_name_school_id_key"})

	err = store.CreateRole(ctx, &Role{Name: "teacher"})
	assert.True(t, apperr.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRole(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM roles WHERE id").
		WithArgs(int64(5)).
		WillReturnRows(roleRows().AddRow(int64(5), "teacher", "Teaching staff", int64(42), false, true, now, now))
	mock.ExpectQuery("SELECT (.+) FROM permissions p JOIN role_permissions rp").
		WithArgs(int64(5)).
		WillReturnRows(permissionRows().
			AddRow(int64(1), "view_students", "students", "View student records", now).
			AddRow(int64(2), "view_grades", "grades", "View grades", now))

	role, err := store.GetRole(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "teacher", role.Name)
	require.NotNil(t, role.SchoolID)
	assert.Equal(t, int64(42), *role.SchoolID)
	assert.Len(t, role.Permissions, 2)
	assert.True(t, role.HasPermission(TagViewStudents))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRole_NotFound(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT (.+) FROM roles WHERE id").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	role, err := store.GetRole(ctx, 99)
	assert.Nil(t, role)
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRoleByName_Global(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM roles WHERE name").
		WithArgs("admin", nil).
		WillReturnRows(roleRows().AddRow(int64(1), "admin", "Global administrator", nil, true, true, now, now))
	mock.ExpectQuery("SELECT (.+) FROM permissions p JOIN role_permissions rp").
		WithArgs(int64(1)).
		WillReturnRows(permissionRows().AddRow(int64(1), "*", "system", "All permissions", now))

	role, err := store.GetRoleByName(ctx, "admin", nil)
	require.NoError(t, err)
	assert.True(t, role.IsGlobal())
	assert.True(t, role.HasPermission(TagManageUsers))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListOwnedRoleNames(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT name FROM roles WHERE school_id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("director").AddRow("teacher"))

	names, err := store.ListOwnedRoleNames(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"director", "teacher"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GrantPermission_Duplicate(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec("INSERT INTO role_permissions").
		WithArgs(int64(5), int64(1), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "role_permissions_role_id_permission_id_key"})

	err = store.GrantPermission(ctx, 5, 1)
	assert.True(t, apperr.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPermissionByName(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM permissions WHERE name").
		WithArgs("view_students").
		WillReturnRows(permissionRows().AddRow(int64(1), "view_students", "students", "View student records", now))

	permission, err := store.GetPermissionByName(ctx, TagViewStudents)
	require.NoError(t, err)
	assert.Equal(t, TagViewStudents, permission.Name)
	assert.Equal(t, "students", permission.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}
