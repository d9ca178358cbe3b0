package models

import (
	"time"

	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
)

// Approval is one sign-off gate attached to an entity. The lifecycle is
// PENDING then APPROVED, one-way. There is no rejection state: work that a
// reviewer will not sign stays pending until the underlying entity changes.
type Approval struct {
	ID           id.ApprovalID     `json:"id"`
	OrgID        id.OrgID          `json:"org_id"`
	EntityType   string            `json:"entity_type"`
	EntityID     string            `json:"entity_id"`
	ApprovalType string            `json:"approval_type"`
	RequiredRole string            `json:"required_role"`
	Status       id.ApprovalStatus `json:"status"`
	ApprovedBy   *id.UserID        `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time        `json:"approved_at,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func NewApproval(
	approvalID id.ApprovalID,
	orgID id.OrgID,
	entityType, entityID, approvalType, requiredRole string,
	now time.Time,
) (*Approval, error) {
	if entityType == "" || entityID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "approval requires an entity")
	}
	if approvalType == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "approval type is required")
	}
	if requiredRole == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "required role is required")
	}
	return &Approval{
		ID:           approvalID,
		OrgID:        orgID,
		EntityType:   entityType,
		EntityID:     entityID,
		ApprovalType: approvalType,
		RequiredRole: requiredRole,
		Status:       id.ApprovalPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsApproved reports whether the gate has been signed.
func (a *Approval) IsApproved() bool {
	return a.Status == id.ApprovalApproved
}

// CanApprove checks the PENDING -> APPROVED transition for the caller's role.
// An already-approved gate returns a conflict so callers can treat a repeat
// submission as an idempotent no-op.
func (a *Approval) CanApprove(role string) error {
	if a.IsApproved() {
		return dErrors.New(dErrors.CodeConflict, "approval is already signed")
	}
	if role != a.RequiredRole {
		return dErrors.Newf(dErrors.CodeForbidden, "approval requires %s role", a.RequiredRole)
	}
	return nil
}

// ApplyApproval signs the gate. Must only be called after CanApprove returns nil.
func (a *Approval) ApplyApproval(by id.UserID, notes string, now time.Time) {
	a.Status = id.ApprovalApproved
	a.ApprovedBy = &by
	a.ApprovedAt = &now
	a.Notes = notes
	a.UpdatedAt = now
}
