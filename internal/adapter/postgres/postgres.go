// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MikhalGarbuz/analyze-your-life/internal/conversation"
	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// DB wraps a *sqlx.DB and implements domain repository interfaces.
type DB struct {
	sql *sqlx.DB
}

var (
	_ domain.ExperimentRepository = (*DB)(nil)
	_ domain.ParameterRepository  = (*DB)(nil)
	_ domain.EntryRepository      = (*DB)(nil)
	_ domain.UserRepository       = (*DB)(nil)
	_ domain.SessionRepository    = (*SessionRepo)(nil)
	_ conversation.SessionStore   = (*ConversationStore)(nil)
)

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS chat_id BIGINT;`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		user_agent TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);`,
	`CREATE TABLE IF NOT EXISTS experiments (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_experiments_user_id ON experiments(user_id);`,
	`CREATE TABLE IF NOT EXISTS parameters (
		id BIGSERIAL PRIMARY KEY,
		experiment_id BIGINT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		role TEXT NOT NULL CHECK(role IN ('goal','independent')),
		type TEXT NOT NULL CHECK(type IN ('boolean','class','numeric')),
		class_min INTEGER,
		class_max INTEGER,
		UNIQUE(experiment_id, name),
		CHECK((type = 'class') = (class_min IS NOT NULL AND class_max IS NOT NULL)),
		CHECK(class_min IS NULL OR class_min <= class_max)
	);`,
	`CREATE TABLE IF NOT EXISTS daily_entries (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		experiment_id BIGINT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
		entry_date DATE NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE(user_id, experiment_id, entry_date)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_daily_entries_date ON daily_entries(entry_date);`,
	`CREATE TABLE IF NOT EXISTS conversation_sessions (
		user_id BIGINT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`,
}

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// uniqueViolation maps a unique_violation on field to a ValidationError.
func uniqueViolation(err error, field, reason string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return &domain.ValidationError{Field: field, Reason: reason}
	}
	return err
}
