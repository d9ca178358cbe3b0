package store

import (
	"context"
	"sort"
	"sync"

	"veritax/internal/approval/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
)

// InMemory keeps approvals per organization.
type InMemory struct {
	mu        sync.RWMutex
	approvals map[id.ApprovalID]*models.Approval
}

func NewInMemory() *InMemory {
	return &InMemory{approvals: make(map[id.ApprovalID]*models.Approval)}
}

func (s *InMemory) Create(_ context.Context, approval *models.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.approvals[approval.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *approval
	s.approvals[approval.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgID id.OrgID, approvalID id.ApprovalID) (*models.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	approval, ok := s.approvals[approvalID]
	if !ok || approval.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	clone := *approval
	return &clone, nil
}

func (s *InMemory) ListByEntity(_ context.Context, orgID id.OrgID, entityType, entityID string) ([]*models.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Approval
	for _, approval := range s.approvals {
		if approval.OrgID == orgID && approval.EntityType == entityType && approval.EntityID == entityID {
			clone := *approval
			matched = append(matched, &clone)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

// Execute atomically validates and mutates an approval under the store lock.
func (s *InMemory) Execute(
	_ context.Context,
	orgID id.OrgID,
	approvalID id.ApprovalID,
	validate func(*models.Approval) error,
	mutate func(*models.Approval),
) (*models.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	approval, ok := s.approvals[approvalID]
	if !ok || approval.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(approval); err != nil {
		return nil, err
	}
	mutate(approval)
	clone := *approval
	return &clone, nil
}
