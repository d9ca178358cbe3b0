package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is idempotent; Migrate runs it on every start. The partial unique
// index on nexus_alerts backs the at-most-one-open-alert upsert, and
// audit_events and memo_verifications are append-only tables with no UPDATE
// or DELETE issued anywhere in the codebase.
const schema = `
CREATE TABLE IF NOT EXISTS clients (
	id UUID PRIMARY KEY,
	org_id UUID NOT NULL,
	name TEXT NOT NULL,
	legal_name TEXT NOT NULL DEFAULT '',
	industry TEXT NOT NULL DEFAULT '',
	annual_revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
	risk_level TEXT NOT NULL,
	quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	penalty_exposure DOUBLE PRECISION NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clients_org ON clients(org_id);

CREATE TABLE IF NOT EXISTS client_states (
	id UUID PRIMARY KEY,
	org_id UUID NOT NULL,
	client_id UUID NOT NULL,
	state_code TEXT NOT NULL,
	state_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	threshold_amount DOUBLE PRECISION NOT NULL,
	current_amount DOUBLE PRECISION NOT NULL,
	registration_required BOOLEAN NOT NULL DEFAULT FALSE,
	registration_date TIMESTAMPTZ,
	registration_number TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (client_id, state_code)
);
CREATE INDEX IF NOT EXISTS idx_client_states_org_state ON client_states(org_id, state_code);

CREATE TABLE IF NOT EXISTS nexus_alerts (
	id UUID PRIMARY KEY,
	org_id UUID NOT NULL,
	client_id UUID NOT NULL,
	state_code TEXT NOT NULL,
	alert_type TEXT NOT NULL,
	priority TEXT NOT NULL,
	status TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	current_amount DOUBLE PRECISION NOT NULL,
	threshold_amount DOUBLE PRECISION NOT NULL,
	penalty_risk DOUBLE PRECISION NOT NULL,
	deadline TIMESTAMPTZ,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_nexus_alerts_one_open
	ON nexus_alerts(client_id, state_code) WHERE status = 'open';
CREATE INDEX IF NOT EXISTS idx_nexus_alerts_org_status ON nexus_alerts(org_id, status);

CREATE TABLE IF NOT EXISTS statute_overrides (
	id UUID PRIMARY KEY,
	org_id UUID NOT NULL,
	state_code TEXT NOT NULL,
	tax_type TEXT NOT NULL,
	change_type TEXT NOT NULL,
	previous_value JSONB,
	new_value JSONB NOT NULL,
	effective_date TIMESTAMPTZ NOT NULL,
	source TEXT NOT NULL,
	citation TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	entered_by UUID NOT NULL,
	validated_by UUID,
	validated_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_overrides_org_state
	ON statute_overrides(org_id, state_code, tax_type, status);

CREATE TABLE IF NOT EXISTS memos (
	id UUID PRIMARY KEY,
	org_id UUID NOT NULL,
	client_id UUID NOT NULL,
	memo_type TEXT NOT NULL,
	title TEXT NOT NULL,
	sections JSONB,
	conclusion TEXT NOT NULL DEFAULT '',
	recommendations TEXT NOT NULL DEFAULT '',
	supersedes_memo_id UUID REFERENCES memos(id),
	status TEXT NOT NULL,
	hash TEXT NOT NULL DEFAULT '',
	sealed_at TIMESTAMPTZ,
	sealed_by UUID,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memos_org_client ON memos(org_id, client_id);

CREATE TABLE IF NOT EXISTS memo_verifications (
	id UUID PRIMARY KEY,
	memo_id UUID NOT NULL REFERENCES memos(id),
	org_id UUID NOT NULL,
	status TEXT NOT NULL,
	requested_by UUID NOT NULL,
	checked_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memo_verifications_memo ON memo_verifications(org_id, memo_id);

CREATE TABLE IF NOT EXISTS approvals (
	id UUID PRIMARY KEY,
	org_id UUID NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	approval_type TEXT NOT NULL,
	required_role TEXT NOT NULL,
	status TEXT NOT NULL,
	approved_by UUID,
	approved_at TIMESTAMPTZ,
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_approvals_entity ON approvals(org_id, entity_type, entity_id);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	org_id UUID NOT NULL,
	actor_id UUID NOT NULL,
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_entity
	ON audit_events(org_id, entity_type, entity_id, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_events_recent ON audit_events(org_id, created_at DESC);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
