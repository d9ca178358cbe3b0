package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"veritax/internal/audit"
	id "veritax/pkg/domain"
	txcontext "veritax/pkg/platform/tx"
)

// Store persists audit events in the audit_events table. The table carries no
// UPDATE or DELETE path; the trail is append-only by construction.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, org_id, actor_id, action, entity_type, entity_id,
			severity, details, request_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		uuid.UUID(event.OrgID),
		uuid.UUID(event.ActorID),
		event.Action,
		event.EntityType,
		event.EntityID,
		string(event.Severity),
		event.Details,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByEntity(ctx context.Context, orgID id.OrgID, entityType, entityID string) ([]audit.Event, error) {
	query := `
		SELECT id, org_id, actor_id, action, entity_type, entity_id,
		       severity, details, request_id, created_at
		FROM audit_events
		WHERE org_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListRecent(ctx context.Context, orgID id.OrgID, limit int) ([]audit.Event, error) {
	query := `
		SELECT id, org_id, actor_id, action, entity_type, entity_id,
		       severity, details, request_id, created_at
		FROM audit_events
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			orgID    uuid.UUID
			actorID  uuid.UUID
			severity string
		)
		err := rows.Scan(
			&event.ID,
			&orgID,
			&actorID,
			&event.Action,
			&event.EntityType,
			&event.EntityID,
			&severity,
			&event.Details,
			&event.RequestID,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.OrgID = id.OrgID(orgID)
		event.ActorID = id.UserID(actorID)
		event.Severity = id.Severity(severity)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
