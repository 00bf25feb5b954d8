// Package postgres opens the audit database and ensures its schema exists.
// The audit trail is append-only; there are no destructive migrations, so
// schema bootstrap is a fixed list of CREATE IF NOT EXISTS statements.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects via the pgx stdlib driver and verifies the connection.
// Returns nil if the DSN is empty (postgres not configured).
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return db, nil
}

// EnsureSchema creates the audit tables if they do not exist yet. Safe to
// run on every startup; every statement is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outbox (
			id UUID PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS outbox_created_at_idx ON outbox (created_at)`,

		`CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			category TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			check_id UUID,
			subject TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			loan_ref_hash TEXT NOT NULL DEFAULT '',
			schedule_version TEXT NOT NULL DEFAULT '',
			violation_count INTEGER NOT NULL DEFAULT 0,
			request_id TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS audit_events_check_id_idx ON audit_events (check_id)`,
		`CREATE INDEX IF NOT EXISTS audit_events_timestamp_idx ON audit_events (timestamp DESC)`,

		`CREATE TABLE IF NOT EXISTS audit_compliance (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			check_id UUID NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			loan_ref_hash TEXT NOT NULL DEFAULT '',
			schedule_version TEXT NOT NULL DEFAULT '',
			violation_count INTEGER NOT NULL DEFAULT 0,
			request_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS audit_compliance_check_id_idx ON audit_compliance (check_id)`,

		`CREATE TABLE IF NOT EXISTS audit_security (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT 'info'
		)`,

		`CREATE TABLE IF NOT EXISTS audit_ops (
			id UUID NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			request_id TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (id, timestamp)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure audit schema: %w", err)
		}
	}
	return nil
}
