package schools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/campushq/campus/pkg/apperr"
)

// Store defines persistence operations for schools.
type Store interface {
	Create(ctx context.Context, school *School) error
	Get(ctx context.Context, id int64) (*School, error)
	// EmailInUse reports whether the email already appears as a school
	// contact email or a founding director email.
	EmailInUse(ctx context.Context, email string) (bool, error)
	// List returns schools, optionally filtered by status.
	List(ctx context.Context, status *SchoolStatus) ([]*School, error)
	// Approve transitions pending -> validated and records the approver.
	// Returns a ConflictError when the school is not pending.
	Approve(ctx context.Context, id, approverID int64) error
	// Reject transitions pending -> rejected and stores the reason.
	// Returns a ConflictError when the school is not pending.
	Reject(ctx context.Context, id int64, reason string) error
	// Suspend transitions validated -> suspended. Returns a ConflictError
	// when the school is not validated.
	Suspend(ctx context.Context, id int64) error
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schoolColumns = `id, name, address, city, phone, email, director_first_name, director_last_name, director_email, director_phone, status, rejection_reason, validated_at, validated_by, created_at, updated_at`

// Create inserts a new school in pending status. A duplicate contact email
// maps to a ConflictError.
func (s *PostgresStore) Create(ctx context.Context, school *School) error {
	query := `
		INSERT INTO schools (name, address, city, phone, email, director_first_name, director_last_name, director_email, director_phone, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		school.Name,
		school.Address,
		school.City,
		school.Phone,
		strings.ToLower(school.Email),
		school.DirectorFirstName,
		school.DirectorLastName,
		strings.ToLower(school.DirectorEmail),
		school.DirectorPhone,
		string(StatusPending),
		now,
	).Scan(&school.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("a school with this email already exists")
		}
		return fmt.Errorf("failed to create school: %w", err)
	}

	school.Email = strings.ToLower(school.Email)
	school.DirectorEmail = strings.ToLower(school.DirectorEmail)
	school.Status = StatusPending
	school.CreatedAt = now
	school.UpdatedAt = now
	return nil
}

// Get retrieves a school by ID.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*School, error) {
	query := `SELECT ` + schoolColumns + ` FROM schools WHERE id = $1`
	return scanSchool(s.db.QueryRowContext(ctx, query, id))
}

// EmailInUse checks both contact and director email columns.
func (s *PostgresStore) EmailInUse(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM schools WHERE email = $1 OR director_email = $1)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check school email: %w", err)
	}
	return exists, nil
}

// List returns schools ordered by creation time, optionally filtered by
// status.
func (s *PostgresStore) List(ctx context.Context, status *SchoolStatus) ([]*School, error) {
	query := `SELECT ` + schoolColumns + ` FROM schools`
	var args []interface{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schools: %w", err)
	}
	defer rows.Close()

	var schools []*School
	for rows.Next() {
		school, err := scanSchoolFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan school: %w", err)
		}
		schools = append(schools, school)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schools: %w", err)
	}

	return schools, nil
}

// Approve performs the conditional pending -> validated transition. The
// WHERE clause on status makes the transition one-shot under concurrency.
func (s *PostgresStore) Approve(ctx context.Context, id, approverID int64) error {
	query := `
		UPDATE schools
		SET status = $1, validated_at = NOW(), validated_by = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	return s.transition(ctx, id, query, string(StatusValidated), approverID, id, string(StatusPending))
}

// Reject performs the conditional pending -> rejected transition.
func (s *PostgresStore) Reject(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE schools
		SET status = $1, rejection_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	return s.transition(ctx, id, query, string(StatusRejected), reason, id, string(StatusPending))
}

// Suspend performs the conditional validated -> suspended transition.
func (s *PostgresStore) Suspend(ctx context.Context, id int64) error {
	query := `
		UPDATE schools
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	return s.transition(ctx, id, query, string(StatusSuspended), id, string(StatusValidated))
}

func (s *PostgresStore) transition(ctx context.Context, id int64, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update school status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Either the school does not exist or it is not in the state the
		// transition requires.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return apperr.Conflict("school is not in the required status for this transition")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchool(row *sql.Row) (*School, error) {
	school, err := scanSchoolFrom(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("school not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get school: %w", err)
	}
	return school, nil
}

func scanSchoolFrom(scanner rowScanner) (*School, error) {
	var school School
	var rejectionReason sql.NullString
	var validatedAt sql.NullTime
	var validatedBy sql.NullInt64

	err := scanner.Scan(
		&school.ID,
		&school.Name,
		&school.Address,
		&school.City,
		&school.Phone,
		&school.Email,
		&school.DirectorFirstName,
		&school.DirectorLastName,
		&school.DirectorEmail,
		&school.DirectorPhone,
		&school.Status,
		&rejectionReason,
		&validatedAt,
		&validatedBy,
		&school.CreatedAt,
		&school.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rejectionReason.Valid {
		school.RejectionReason = rejectionReason.String
	}
	if validatedAt.Valid {
		value := validatedAt.Time
		school.ValidatedAt = &value
	}
	if validatedBy.Valid {
		value := validatedBy.Int64
		school.ValidatedBy = &value
	}

	return &school, nil
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
