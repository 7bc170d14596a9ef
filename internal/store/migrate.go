package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrationLock is the pg_advisory_lock key held while migrating so that
// replicas starting together apply each version once.
const migrationLock int64 = 0x686f7374656c

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{1, "complaints", `
CREATE TABLE IF NOT EXISTS complaints (
    id             TEXT PRIMARY KEY,
    title          VARCHAR(200) NOT NULL,
    description    TEXT NOT NULL,
    category       VARCHAR(20) NOT NULL,
    priority       VARCHAR(10) NOT NULL DEFAULT 'medium',
    status         VARCHAR(20) NOT NULL DEFAULT 'pending',
    submitted_at   TIMESTAMP WITH TIME ZONE NOT NULL,
    resolved_at    TIMESTAMP WITH TIME ZONE,
    student_ref    TEXT NOT NULL,
    room_number    TEXT NOT NULL,
    attachment_url TEXT NOT NULL DEFAULT '',
    version        BIGINT NOT NULL DEFAULT 1,
    updated_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('pending', 'in-progress', 'resolved')),
    CONSTRAINT valid_priority CHECK (priority IN ('low', 'medium', 'high')),
    CONSTRAINT resolved_stamp CHECK ((status = 'resolved') = (resolved_at IS NOT NULL)),
    CONSTRAINT resolved_after_submit CHECK (resolved_at IS NULL OR resolved_at >= submitted_at)
);

CREATE INDEX IF NOT EXISTS idx_complaints_submitted ON complaints(submitted_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_complaints_student ON complaints(student_ref, submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status);
`},
	{2, "complaint_history", `
CREATE TABLE IF NOT EXISTS complaint_history (
    id           TEXT PRIMARY KEY,
    complaint_id TEXT NOT NULL REFERENCES complaints(id) ON DELETE CASCADE,
    from_status  VARCHAR(20) NOT NULL DEFAULT '',
    to_status    VARCHAR(20) NOT NULL,
    actor        TEXT NOT NULL DEFAULT '',
    at           TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_complaint ON complaint_history(complaint_id, at);
`},
	{3, "feedback", `
CREATE TABLE IF NOT EXISTS feedback (
    id           TEXT PRIMARY KEY,
    kind         VARCHAR(30) NOT NULL,
    message      TEXT NOT NULL,
    anonymous    BOOLEAN NOT NULL DEFAULT FALSE,
    student_ref  TEXT NOT NULL DEFAULT '',
    name         TEXT NOT NULL DEFAULT '',
    room_number  TEXT NOT NULL DEFAULT '',
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_kind ON feedback(kind, submitted_at DESC);
`},
	{4, "complaint_student_name", `
ALTER TABLE complaints ADD COLUMN IF NOT EXISTS student_name TEXT NOT NULL DEFAULT '';
`},
}

// Migrate applies pending schema migrations in order, recording each in
// schema_migrations. It is safe to run on every start and from several
// processes at once.
func (d *DB) Migrate(ctx context.Context) (err error) {
	conn, err := d.Client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("store: migration connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLock); err != nil {
		return fmt.Errorf("store: migration lock: %w", err)
	}
	defer func() {
		_, unlockErr := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLock)
		if unlockErr != nil && err == nil {
			err = fmt.Errorf("store: migration unlock: %w", unlockErr)
		}
	}()

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("store: create schema_migrations: %w", err)
	}
	for _, m := range migrations {
		if err := apply(ctx, conn, m); err != nil {
			return fmt.Errorf("store: migration %03d %s: %w", m.version, m.name, err)
		}
	}
	return nil
}

func apply(ctx context.Context, conn *sql.Conn, m migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var applied bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version,
	).Scan(&applied); err != nil {
		return err
	}
	if applied {
		return nil
	}
	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name,
	); err != nil {
		return err
	}
	return tx.Commit()
}
