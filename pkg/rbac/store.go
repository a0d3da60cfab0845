package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/campushq/campus/pkg/apperr"
)

// Store defines persistence operations for roles and permissions.
type Store interface {
	CreateRole(ctx context.Context, role *Role) error
	GetRole(ctx context.Context, id int64) (*Role, error)
	// GetRoleByName looks up a role by exact (name, schoolID) pair. A nil
	// schoolID matches global roles only.
	GetRoleByName(ctx context.Context, name string, schoolID *int64) (*Role, error)
	// ListRoles returns the roles visible to a school: global roles plus the
	// school's own. A nil schoolID returns global roles only.
	ListRoles(ctx context.Context, schoolID *int64) ([]*Role, error)
	// ListOwnedRoleNames returns the names of roles owned by the school,
	// excluding global roles.
	ListOwnedRoleNames(ctx context.Context, schoolID int64) ([]string, error)
	CreatePermission(ctx context.Context, permission *Permission) error
	GetPermissionByName(ctx context.Context, name Tag) (*Permission, error)
	ListPermissions(ctx context.Context) ([]*Permission, error)
	GrantPermission(ctx context.Context, roleID, permissionID int64) error
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateRole inserts a new role. A duplicate (name, school_id) pair maps to
// a ConflictError.
func (s *PostgresStore) CreateRole(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO roles (name, description, school_id, is_system_role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		role.Name,
		role.Description,
		role.SchoolID,
		role.IsSystemRole,
		role.IsActive,
		now,
	).Scan(&role.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("a role with this name already exists")
		}
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

const roleColumns = `id, name, description, school_id, is_system_role, is_active, created_at, updated_at`

// GetRole retrieves a role by ID with its permissions loaded.
func (s *PostgresStore) GetRole(ctx context.Context, id int64) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`

	role, err := s.scanRole(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadPermissions(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// GetRoleByName retrieves a role by exact (name, schoolID) pair with its
// permissions loaded.
func (s *PostgresStore) GetRoleByName(ctx context.Context, name string, schoolID *int64) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE name = $1 AND school_id IS NOT DISTINCT FROM $2`

	role, err := s.scanRole(s.db.QueryRowContext(ctx, query, name, schoolID))
	if err != nil {
		return nil, err
	}
	if err := s.loadPermissions(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// ListRoles returns the roles visible to a school, global roles first.
func (s *PostgresStore) ListRoles(ctx context.Context, schoolID *int64) ([]*Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE school_id IS NULL OR school_id = $1
		ORDER BY school_id NULLS FIRST, name
	`

	rows, err := s.db.QueryContext(ctx, query, schoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role, err := s.scanRoleRows(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	for _, role := range roles {
		if err := s.loadPermissions(ctx, role); err != nil {
			return nil, err
		}
	}

	return roles, nil
}

// ListOwnedRoleNames returns the names of roles owned by the school.
func (s *PostgresStore) ListOwnedRoleNames(ctx context.Context, schoolID int64) ([]string, error) {
	query := `SELECT name FROM roles WHERE school_id = $1`

	rows, err := s.db.QueryContext(ctx, query, schoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role names: %w", err)
	}

	return names, nil
}

// CreatePermission inserts a catalog permission. A duplicate name maps to a
// ConflictError.
func (s *PostgresStore) CreatePermission(ctx context.Context, permission *Permission) error {
	query := `
		INSERT INTO permissions (name, category, description, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		permission.Name,
		permission.Category,
		permission.Description,
		now,
	).Scan(&permission.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("a permission with this name already exists")
		}
		return fmt.Errorf("failed to create permission: %w", err)
	}

	permission.CreatedAt = now
	return nil
}

// GetPermissionByName retrieves a catalog permission by name.
func (s *PostgresStore) GetPermissionByName(ctx context.Context, name Tag) (*Permission, error) {
	query := `SELECT id, name, category, description, created_at FROM permissions WHERE name = $1`

	var permission Permission
	err := s.db.QueryRowContext(ctx, query, string(name)).Scan(
		&permission.ID,
		&permission.Name,
		&permission.Category,
		&permission.Description,
		&permission.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("permission not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}

	return &permission, nil
}

// ListPermissions returns the full permission catalog ordered by category.
func (s *PostgresStore) ListPermissions(ctx context.Context) ([]*Permission, error) {
	query := `SELECT id, name, category, description, created_at FROM permissions ORDER BY category, name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var permissions []*Permission
	for rows.Next() {
		var permission Permission
		if err := rows.Scan(
			&permission.ID,
			&permission.Name,
			&permission.Category,
			&permission.Description,
			&permission.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, &permission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}

	return permissions, nil
}

// GrantPermission attaches a permission to a role. A duplicate grant maps to
// a ConflictError, which provisioning callers treat as already granted.
func (s *PostgresStore) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	query := `INSERT INTO role_permissions (role_id, permission_id, created_at) VALUES ($1, $2, $3)`

	_, err := s.db.ExecContext(ctx, query, roleID, permissionID, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("permission already granted to role")
		}
		return fmt.Errorf("failed to grant permission: %w", err)
	}

	return nil
}

func (s *PostgresStore) loadPermissions(ctx context.Context, role *Role) error {
	query := `
		SELECT p.id, p.name, p.category, p.description, p.created_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name
	`

	rows, err := s.db.QueryContext(ctx, query, role.ID)
	if err != nil {
		return fmt.Errorf("failed to load role permissions: %w", err)
	}
	defer rows.Close()

	role.Permissions = nil
	for rows.Next() {
		var permission Permission
		if err := rows.Scan(
			&permission.ID,
			&permission.Name,
			&permission.Category,
			&permission.Description,
			&permission.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan role permission: %w", err)
		}
		role.Permissions = append(role.Permissions, permission)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate role permissions: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanRole(row *sql.Row) (*Role, error) {
	role, err := scanRoleFrom(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("role not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) scanRoleRows(rows *sql.Rows) (*Role, error) {
	role, err := scanRoleFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}
	return role, nil
}

func scanRoleFrom(scanner rowScanner) (*Role, error) {
	var role Role
	var schoolID sql.NullInt64

	err := scanner.Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&schoolID,
		&role.IsSystemRole,
		&role.IsActive,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if schoolID.Valid {
		id := schoolID.Int64
		role.SchoolID = &id
	}

	return &role, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (class 23505).
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
