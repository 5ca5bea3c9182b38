// internal/store/migrate.go
package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS licenses (
	license_key        TEXT PRIMARY KEY,
	email              TEXT NOT NULL,
	name               TEXT NOT NULL DEFAULT '',
	tier               TEXT NOT NULL DEFAULT 'pro',
	status             TEXT NOT NULL DEFAULT 'active',
	expires_at         TIMESTAMPTZ NOT NULL,
	last_transition_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	notified_states    TEXT[] NOT NULL DEFAULT '{}',
	source_payment_id  TEXT,
	notes              TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS licenses_source_payment_idx
	ON licenses (source_payment_id) WHERE source_payment_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS notification_jobs (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	to_email   TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	payload    JSONB NOT NULL DEFAULT '{}',
	status     TEXT NOT NULL DEFAULT 'pending',
	retries    INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	claimed_at TIMESTAMPTZ,
	sent_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS notification_jobs_pending_idx
	ON notification_jobs (created_at) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS build_history (
	id          BIGSERIAL PRIMARY KEY,
	license_key TEXT NOT NULL,
	entry       TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS build_history_key_idx
	ON build_history (license_key);
`

// Migrate creates the schema if it does not exist yet. Safe to run on every
// startup; every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
