package users

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/auth"
)

// Store defines persistence operations for users.
type Store interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// EnsureByEmail returns the existing user for the email or creates an
	// inactive placeholder record, used when a director or inviter references
	// a user that has never registered.
	EnsureByEmail(ctx context.Context, email, firstName, lastName string) (*User, error)
	MarkEmailVerified(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, email, first_name, last_name, phone, password_hash, is_active, is_email_verified, created_at, updated_at, last_login_at`

// Create inserts a new user. A duplicate email maps to a ConflictError.
func (s *PostgresStore) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, first_name, last_name, phone, password_hash, is_active, is_email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		strings.ToLower(user.Email),
		user.FirstName,
		user.LastName,
		user.Phone,
		user.PasswordHash,
		user.IsActive,
		user.IsEmailVerified,
		now,
	).Scan(&user.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("a user with this email already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// Get retrieves a user by ID.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email (case-insensitive).
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, strings.ToLower(email)))
}

// EnsureByEmail returns the existing user or creates an inactive placeholder.
func (s *PostgresStore) EnsureByEmail(ctx context.Context, email, firstName, lastName string) (*User, error) {
	existing, err := s.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}

	user := &User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  false,
	}
	if err := s.Create(ctx, user); err != nil {
		// Lost the race to a concurrent insert; the row exists now.
		if apperr.IsConflict(err) {
			return s.GetByEmail(ctx, email)
		}
		return nil, err
	}
	return user, nil
}

// MarkEmailVerified flags a user's email as verified.
func (s *PostgresStore) MarkEmailVerified(ctx context.Context, id int64) error {
	return s.updateFlag(ctx, id, "is_email_verified", true)
}

// SetActive enables or disables a user account.
func (s *PostgresStore) SetActive(ctx context.Context, id int64, active bool) error {
	return s.updateFlag(ctx, id, "is_active", active)
}

func (s *PostgresStore) updateFlag(ctx context.Context, id int64, column string, value bool) error {
	// column is always a compile-time constant from this file
	query := fmt.Sprintf(`UPDATE users SET %s = $1, updated_at = NOW() WHERE id = $2`, column)
	result, err := s.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// CreateToken stores a hashed API token for a user. The raw token never
// touches the database.
func (s *PostgresStore) CreateToken(ctx context.Context, userID int64, tokenHash, name string, expiresAt *time.Time) error {
	query := `
		INSERT INTO user_tokens (user_id, token_hash, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	_, err := s.db.ExecContext(ctx, query, userID, tokenHash, name, expiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("token already exists")
		}
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// IdentityByTokenHash resolves an API token hash to a caller identity,
// implementing auth.TokenStore. Revoked/expired tokens and inactive users do
// not resolve.
func (s *PostgresStore) IdentityByTokenHash(ctx context.Context, tokenHash string) (*auth.Identity, error) {
	query := `
		SELECT u.id, u.email
		FROM users u
		JOIN user_tokens t ON t.user_id = u.id
		WHERE t.token_hash = $1
		  AND t.revoked_at IS NULL
		  AND (t.expires_at IS NULL OR t.expires_at > NOW())
		  AND u.is_active = true
	`

	var identity auth.Identity
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&identity.UserID, &identity.Email)
	if err == sql.ErrNoRows {
		return nil, apperr.Authentication("invalid or expired token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	return &identity, nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*User, error) {
	var user User
	var phone sql.NullString
	var lastLogin sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&phone,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsEmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLogin,
	)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if phone.Valid {
		user.Phone = phone.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}

	return &user, nil
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
var _ auth.TokenStore = (*PostgresStore)(nil)
