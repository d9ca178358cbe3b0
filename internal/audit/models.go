package audit

import (
	"context"
	"time"

	id "veritax/pkg/domain"
)

// Event is the append-only forensic record of an action. Events are never
// mutated or deleted; the trail endpoints read them back verbatim.
type Event struct {
	ID         string      `json:"id"`
	OrgID      id.OrgID    `json:"org_id"`
	ActorID    id.UserID   `json:"actor_id"`
	Action     string      `json:"action"`
	EntityType string      `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Severity   id.Severity `json:"severity"`
	Details    string      `json:"details,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Store persists events. Append-only by contract: implementations expose no
// update or delete operations.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, orgID id.OrgID, entityType, entityID string) ([]Event, error)
	ListRecent(ctx context.Context, orgID id.OrgID, limit int) ([]Event, error)
}

// Actions recorded by the engine.
const (
	ActionClientCreated      = "client_created"
	ActionClientArchived     = "client_archived"
	ActionStateEvaluated     = "state_evaluated"
	ActionAlertOpened        = "alert_opened"
	ActionAlertUpdated       = "alert_updated"
	ActionAlertReviewed      = "alert_reviewed"
	ActionAlertResolved      = "alert_resolved"
	ActionOverrideCreated    = "override_created"
	ActionOverrideValidated  = "override_validated"
	ActionMemoCreated        = "memo_created"
	ActionMemoSealed         = "memo_sealed"
	ActionMemoVerified       = "memo_verified"
	ActionApprovalRequired   = "approval_required"
	ActionApprovalSubmitted  = "approval_submitted"
	ActionIngestionSanitized = "ingestion_sanitized"
)
