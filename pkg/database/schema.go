package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema is idempotent; EnsureSchema can run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS programs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	required_credits NUMERIC(6,1) NOT NULL,
	min_cgpa NUMERIC(4,2) NOT NULL,
	required_semesters INT NOT NULL,
	max_failed_courses INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS students (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	external_identity_id TEXT NOT NULL,
	student_number TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL,
	program_id TEXT NOT NULL REFERENCES programs(id),
	enrollment_year INT NOT NULL,
	wallet_address TEXT,
	wallet_id TEXT,
	wallet_created_at TIMESTAMPTZ,
	ledger_tx_hash TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK ((wallet_address IS NULL) = (wallet_id IS NULL) AND (wallet_id IS NULL) = (wallet_created_at IS NULL))
);

CREATE TABLE IF NOT EXISTS semester_results (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL REFERENCES students(id),
	semester INT NOT NULL,
	academic_year INT NOT NULL,
	gpa NUMERIC(4,2) NOT NULL,
	credits NUMERIC(6,1) NOT NULL,
	failed_courses INT NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	ledger_tx_hash TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS approvals (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	step INT NOT NULL CHECK (step >= 1),
	status TEXT NOT NULL,
	approver_id TEXT,
	decided_at TIMESTAMPTZ,
	note TEXT,
	comments TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS approvals_one_pending
	ON approvals (entity_type, entity_id, step) WHERE status = 'PENDING';

CREATE TABLE IF NOT EXISTS degree_proposals (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL REFERENCES students(id),
	expected_year INT NOT NULL,
	status TEXT NOT NULL,
	credential_id TEXT,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL REFERENCES students(id),
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	source_id TEXT NOT NULL,
	document_hash TEXT NOT NULL UNIQUE,
	payload JSONB NOT NULL,
	token_id TEXT UNIQUE,
	tx_hash TEXT,
	issued_at TIMESTAMPTZ,
	revoked_at TIMESTAMPTZ,
	revoke_reason TEXT,
	replaced_by TEXT,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CHECK ((token_id IS NOT NULL) = (status IN ('ISSUED', 'REVOKED', 'REPLACED')))
);

CREATE UNIQUE INDEX IF NOT EXISTS credentials_one_active_per_source
	ON credentials (type, source_id)
	WHERE type IN ('DEGREE', 'SEMESTER') AND status IN ('PENDING', 'ISSUED') AND replaced_by IS NULL;

CREATE INDEX IF NOT EXISTS credentials_student_created ON credentials (student_id, created_at DESC);

CREATE TABLE IF NOT EXISTS share_links (
	id TEXT PRIMARY KEY,
	token TEXT NOT NULL UNIQUE,
	credential_id TEXT NOT NULL REFERENCES credentials(id),
	expires_at TIMESTAMPTZ,
	view_count BIGINT NOT NULL DEFAULT 0,
	revoked_at TIMESTAMPTZ,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS job_records (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	output JSONB,
	attempts INT NOT NULL DEFAULT 0,
	error TEXT,
	completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS job_records_entity ON job_records (entity_id, type, created_at);

CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	actor_id TEXT NOT NULL,
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
