package members

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/rbac"
)

// Store defines persistence operations for memberships.
type Store interface {
	Create(ctx context.Context, membership *Membership) error
	Get(ctx context.Context, id int64) (*Membership, error)
	// GetByUserAndSchool returns the membership row regardless of its
	// activation flags; callers decide whether the flags permit access.
	GetByUserAndSchool(ctx context.Context, userID, schoolID int64) (*Membership, error)
	GetByInvitationToken(ctx context.Context, token string) (*Membership, error)
	ListBySchool(ctx context.Context, schoolID int64) ([]*Membership, error)
	UpdateRole(ctx context.Context, id, roleID int64) error
	// Activate flips the membership to active and validated, records the
	// join time, and clears any pending invitation token.
	Activate(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	// DeleteExpiredInvitations removes never-accepted memberships whose
	// invitation expired before the given time.
	DeleteExpiredInvitations(ctx context.Context, before time.Time) (int64, error)
}

// PostgresStore implements Store using PostgreSQL. Role details are resolved
// through the rbac store so permission loading stays in one place.
type PostgresStore struct {
	db    *sql.DB
	roles rbac.Store
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, roles rbac.Store) *PostgresStore {
	return &PostgresStore{db: db, roles: roles}
}

const membershipColumns = `id, user_id, school_id, role_id, is_active, is_validated, invitation_token, invitation_expires_at, invited_by, joined_at, created_at, updated_at`

// Create inserts a new membership. A duplicate (user_id, school_id) pair
// maps to a ConflictError.
func (s *PostgresStore) Create(ctx context.Context, membership *Membership) error {
	query := `
		INSERT INTO user_school_roles (user_id, school_id, role_id, is_active, is_validated, invitation_token, invitation_expires_at, invited_by, joined_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		membership.UserID,
		membership.SchoolID,
		membership.RoleID,
		membership.IsActive,
		membership.IsValidated,
		membership.InvitationToken,
		membership.InvitationExpiresAt,
		membership.InvitedBy,
		membership.JoinedAt,
		now,
	).Scan(&membership.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("user already belongs to this school")
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}

	membership.CreatedAt = now
	membership.UpdatedAt = now
	return nil
}

// Get retrieves a membership by ID with its role loaded.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM user_school_roles WHERE id = $1`
	return s.scanWithRole(ctx, s.db.QueryRowContext(ctx, query, id))
}

// GetByUserAndSchool retrieves the membership for a (user, school) pair with
// its role loaded.
func (s *PostgresStore) GetByUserAndSchool(ctx context.Context, userID, schoolID int64) (*Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM user_school_roles WHERE user_id = $1 AND school_id = $2`
	return s.scanWithRole(ctx, s.db.QueryRowContext(ctx, query, userID, schoolID))
}

// GetByInvitationToken retrieves a membership by its invitation token.
func (s *PostgresStore) GetByInvitationToken(ctx context.Context, token string) (*Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM user_school_roles WHERE invitation_token = $1`
	return s.scanWithRole(ctx, s.db.QueryRowContext(ctx, query, token))
}

// ListBySchool returns all memberships of a school with denormalized user
// contact fields, ordered by creation time.
func (s *PostgresStore) ListBySchool(ctx context.Context, schoolID int64) ([]*Membership, error) {
	query := `
		SELECT m.id, m.user_id, m.school_id, m.role_id, m.is_active, m.is_validated,
		       m.invitation_token, m.invitation_expires_at, m.invited_by, m.joined_at,
		       m.created_at, m.updated_at,
		       u.email, u.first_name, u.last_name
		FROM user_school_roles m
		JOIN users u ON u.id = m.user_id
		WHERE m.school_id = $1
		ORDER BY m.created_at
	`

	rows, err := s.db.QueryContext(ctx, query, schoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*Membership
	for rows.Next() {
		membership, err := scanMembership(rows, true)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, membership)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	for _, membership := range memberships {
		role, err := s.roles.GetRole(ctx, membership.RoleID)
		if err != nil {
			return nil, fmt.Errorf("failed to load membership role: %w", err)
		}
		membership.Role = role
	}

	return memberships, nil
}

// UpdateRole changes the role a membership is bound to.
func (s *PostgresStore) UpdateRole(ctx context.Context, id, roleID int64) error {
	query := `UPDATE user_school_roles SET role_id = $1, updated_at = NOW() WHERE id = $2`
	return s.execOne(ctx, query, roleID, id)
}

// Activate flips the membership to active and validated and clears any
// pending invitation.
func (s *PostgresStore) Activate(ctx context.Context, id int64) error {
	query := `
		UPDATE user_school_roles
		SET is_active = true, is_validated = true, joined_at = NOW(),
		    invitation_token = NULL, invitation_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return s.execOne(ctx, query, id)
}

// SetActive administratively enables or disables a membership.
func (s *PostgresStore) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE user_school_roles SET is_active = $1, updated_at = NOW() WHERE id = $2`
	return s.execOne(ctx, query, active, id)
}

// Delete removes a membership.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM user_school_roles WHERE id = $1`
	return s.execOne(ctx, query, id)
}

// DeleteExpiredInvitations removes never-accepted invitations that expired
// before the given time and returns the number of rows removed.
func (s *PostgresStore) DeleteExpiredInvitations(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM user_school_roles
		WHERE is_validated = false
		  AND invitation_token IS NOT NULL
		  AND invitation_expires_at < $1
	`

	result, err := s.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invitations: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

func (s *PostgresStore) execOne(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("membership not found")
	}
	return nil
}

func (s *PostgresStore) scanWithRole(ctx context.Context, row *sql.Row) (*Membership, error) {
	membership, err := scanMembership(row, false)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("membership not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	role, err := s.roles.GetRole(ctx, membership.RoleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load membership role: %w", err)
	}
	membership.Role = role

	return membership, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMembership(scanner rowScanner, withUser bool) (*Membership, error) {
	var membership Membership
	var token sql.NullString
	var expiresAt, joinedAt sql.NullTime
	var invitedBy sql.NullInt64

	dest := []interface{}{
		&membership.ID,
		&membership.UserID,
		&membership.SchoolID,
		&membership.RoleID,
		&membership.IsActive,
		&membership.IsValidated,
		&token,
		&expiresAt,
		&invitedBy,
		&joinedAt,
		&membership.CreatedAt,
		&membership.UpdatedAt,
	}
	if withUser {
		dest = append(dest, &membership.UserEmail, &membership.UserFirstName, &membership.UserLastName)
	}

	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	if token.Valid {
		value := token.String
		membership.InvitationToken = &value
	}
	if expiresAt.Valid {
		value := expiresAt.Time
		membership.InvitationExpiresAt = &value
	}
	if invitedBy.Valid {
		value := invitedBy.Int64
		membership.InvitedBy = &value
	}
	if joinedAt.Valid {
		value := joinedAt.Time
		membership.JoinedAt = &value
	}

	return &membership, nil
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
