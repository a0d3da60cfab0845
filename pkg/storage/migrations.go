package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campushq/campus/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					first_name VARCHAR(255) NOT NULL DEFAULT '',
					last_name VARCHAR(255) NOT NULL DEFAULT '',
					phone VARCHAR(50),
					password_hash VARCHAR(255) NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT FALSE,
					is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					last_login_at TIMESTAMP
				);

				CREATE INDEX idx_users_email ON users(email);
			`,
		},
		{
			Version:     2,
			Description: "Create schools table",
			SQL: `
				CREATE TABLE IF NOT EXISTS schools (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					address TEXT NOT NULL DEFAULT '',
					city VARCHAR(255) NOT NULL DEFAULT '',
					phone VARCHAR(50) NOT NULL DEFAULT '',
					email VARCHAR(255) NOT NULL UNIQUE,
					director_first_name VARCHAR(255) NOT NULL DEFAULT '',
					director_last_name VARCHAR(255) NOT NULL DEFAULT '',
					director_email VARCHAR(255) NOT NULL,
					director_phone VARCHAR(50) NOT NULL DEFAULT '',
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					rejection_reason TEXT,
					validated_at TIMESTAMP,
					validated_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_schools_status ON schools(status);
				CREATE INDEX idx_schools_director_email ON schools(director_email);
			`,
		},
		{
			Version:     3,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					school_id BIGINT REFERENCES schools(id) ON DELETE CASCADE,
					is_system_role BOOLEAN NOT NULL DEFAULT FALSE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(name, school_id)
				);

				CREATE UNIQUE INDEX idx_roles_global_name ON roles(name) WHERE school_id IS NULL;
				CREATE INDEX idx_roles_school_id ON roles(school_id);
			`,
		},
		{
			Version:     4,
			Description: "Create permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					category VARCHAR(100) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_permissions_category ON permissions(category);
			`,
		},
		{
			Version:     5,
			Description: "Create role_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_permissions (
					id BIGSERIAL PRIMARY KEY,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(role_id, permission_id)
				);

				CREATE INDEX idx_role_permissions_role_id ON role_permissions(role_id);
			`,
		},
		{
			Version:     6,
			Description: "Create user_school_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_school_roles (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					school_id BIGINT NOT NULL REFERENCES schools(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					is_active BOOLEAN NOT NULL DEFAULT FALSE,
					is_validated BOOLEAN NOT NULL DEFAULT FALSE,
					invitation_token VARCHAR(255) UNIQUE,
					invitation_expires_at TIMESTAMP,
					invited_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					joined_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, school_id)
				);

				CREATE INDEX idx_user_school_roles_school_id ON user_school_roles(school_id);
				CREATE INDEX idx_user_school_roles_user_id ON user_school_roles(user_id);
				CREATE INDEX idx_user_school_roles_invitation_expires_at ON user_school_roles(invitation_expires_at);
			`,
		},
		{
			Version:     7,
			Description: "Create user_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_tokens (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL DEFAULT '',
					expires_at TIMESTAMP,
					revoked_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					last_used_at TIMESTAMP
				);

				CREATE INDEX idx_user_tokens_user_id ON user_tokens(user_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS campus_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM campus_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO campus_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
