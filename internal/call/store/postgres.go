package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// Open connects to postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate bootstraps the schema. Purge cascades are still executed
// statement-by-statement in the service so each step is observable, but
// the foreign keys guarantee no orphan can outlive its call, and the
// composite key on resolutions backs the same-call invariant.
func Migrate(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id UUID PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	program_id TEXT NOT NULL,
	academic_year_id TEXT,
	call_type TEXT NOT NULL,
	modality TEXT NOT NULL,
	number_of_places INTEGER NOT NULL CHECK (number_of_places >= 1),
	destinations TEXT[] NOT NULL,
	scoring_table JSONB NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	published_at TIMESTAMPTZ,
	closed_at TIMESTAMPTZ,
	created_by UUID,
	updated_by UUID,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS call_phases (
	id UUID PRIMARY KEY,
	call_id UUID NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
	phase_type TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	start_date TIMESTAMPTZ,
	end_date TIMESTAMPTZ,
	phase_order INTEGER NOT NULL,
	is_current BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ,
	UNIQUE (id, call_id)
);
CREATE INDEX IF NOT EXISTS call_phases_call_order ON call_phases (call_id, phase_order);

CREATE TABLE IF NOT EXISTS call_resolutions (
	id UUID PRIMARY KEY,
	call_id UUID NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
	call_phase_id UUID NOT NULL,
	resolution_type TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	evaluation_procedure TEXT NOT NULL DEFAULT '',
	official_date TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ,
	created_by UUID,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ,
	FOREIGN KEY (call_phase_id, call_id) REFERENCES call_phases (id, call_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS call_resolutions_phase ON call_resolutions (call_phase_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// PostgresTransactor runs units of work in a database transaction carried
// through the context, so the call, phase, and resolution stores all see
// the same transaction.
type PostgresTransactor struct {
	db      *sql.DB
	timeout time.Duration
}

// NewTransactor wraps db for transactional units of work.
func NewTransactor(db *sql.DB) *PostgresTransactor {
	return &PostgresTransactor{db: db}
}

// RunInTx begins a transaction, stores it in the context, runs fn, and
// commits. Failures roll back completely. Serialization and deadlock
// failures come back with the concurrency-conflict code so the service
// layer can retry a bounded number of times.
func (t *PostgresTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dbTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, dbTx)); err != nil {
		return classifyPG(err)
	}
	if err := dbTx.Commit(); err != nil {
		return classifyPG(err)
	}
	return nil
}

// classifyPG maps postgres serialization and deadlock failures to the
// retryable concurrency-conflict code; everything else passes through.
func classifyPG(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return dErrors.Wrap(err, dErrors.CodeConcurrencyConflict, "transaction serialization conflict")
		}
	}
	return err
}
