package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"veritax/internal/approval/metrics"
	"veritax/internal/approval/models"
	"veritax/internal/audit"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/sentinel"
	"veritax/pkg/requestcontext"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, approval *models.Approval) error
	FindByID(ctx context.Context, orgID id.OrgID, approvalID id.ApprovalID) (*models.Approval, error)
	ListByEntity(ctx context.Context, orgID id.OrgID, entityType, entityID string) ([]*models.Approval, error)
	Execute(ctx context.Context, orgID id.OrgID, approvalID id.ApprovalID, validate func(*models.Approval) error, mutate func(*models.Approval)) (*models.Approval, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// CreateRequirementRequest is the wire shape for attaching a gate.
type CreateRequirementRequest struct {
	EntityType   string `json:"entityType"`
	EntityID     string `json:"entityId"`
	ApprovalType string `json:"approvalType"`
	RequiredRole string `json:"requiredRole"`
}

// Status summarizes an entity's approval gates. Approved is true only when at
// least one gate exists and every gate is signed.
type Status struct {
	Required  bool               `json:"required"`
	Approved  bool               `json:"approved"`
	Approvals []*models.Approval `json:"approvals"`
}

// Service manages approval gates on compliance entities.
type Service struct {
	store     Store
	logger    *slog.Logger
	publisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// CreateRequirement attaches a new pending gate to an entity.
func (s *Service) CreateRequirement(ctx context.Context, req *CreateRequirementRequest) (*models.Approval, error) {
	approval, err := models.NewApproval(
		id.ApprovalID(uuid.New()),
		requestcontext.OrgID(ctx),
		strings.TrimSpace(req.EntityType),
		strings.TrimSpace(req.EntityID),
		strings.TrimSpace(req.ApprovalType),
		strings.TrimSpace(req.RequiredRole),
		requestcontext.Now(ctx),
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.Create(ctx, approval); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create approval")
	}

	metrics.RequirementsCreated.Inc()
	s.emit(ctx, audit.ActionApprovalRequired, approval,
		fmt.Sprintf("entity=%s/%s type=%s", approval.EntityType, approval.EntityID, approval.ApprovalType))
	return approval, nil
}

// Submit signs a pending gate. The caller's role must match the gate's
// required role. Signing an already-approved gate is an idempotent no-op that
// returns the record unchanged.
func (s *Service) Submit(ctx context.Context, approvalID id.ApprovalID, notes string) (*models.Approval, error) {
	role := requestcontext.Role(ctx)
	userID := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)

	approval, err := s.store.Execute(ctx, requestcontext.OrgID(ctx), approvalID,
		func(a *models.Approval) error { return a.CanApprove(role) },
		func(a *models.Approval) { a.ApplyApproval(userID, notes, now) },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "approval not found")
		}
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			// Already signed. Return the record without a second audit event.
			return s.GetApproval(ctx, approvalID)
		}
		if dErrors.HasCode(err, dErrors.CodeForbidden) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to submit approval")
	}

	metrics.ApprovalsSubmitted.Inc()
	s.logger.InfoContext(ctx, "approval submitted",
		"approval_id", approval.ID,
		"entity_type", approval.EntityType,
		"entity_id", approval.EntityID,
	)
	s.emit(ctx, audit.ActionApprovalSubmitted, approval,
		fmt.Sprintf("entity=%s/%s", approval.EntityType, approval.EntityID))
	return approval, nil
}

// GetApproval returns one gate within the caller's organization.
func (s *Service) GetApproval(ctx context.Context, approvalID id.ApprovalID) (*models.Approval, error) {
	approval, err := s.store.FindByID(ctx, requestcontext.OrgID(ctx), approvalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "approval not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approval")
	}
	return approval, nil
}

// CheckStatus summarizes every gate attached to one entity.
func (s *Service) CheckStatus(ctx context.Context, entityType, entityID string) (*Status, error) {
	approvals, err := s.store.ListByEntity(ctx, requestcontext.OrgID(ctx), entityType, entityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list approvals")
	}

	status := &Status{
		Required:  len(approvals) > 0,
		Approvals: approvals,
	}
	if status.Approvals == nil {
		status.Approvals = []*models.Approval{}
	}
	if status.Required {
		status.Approved = true
		for _, approval := range approvals {
			if !approval.IsApproved() {
				status.Approved = false
				break
			}
		}
	}
	return status, nil
}

func (s *Service) emit(ctx context.Context, action string, approval *models.Approval, details string) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Emit(ctx, audit.Event{
		Action:     action,
		EntityType: "approval",
		EntityID:   approval.ID.String(),
		Details:    details,
	})
}
