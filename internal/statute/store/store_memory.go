package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"veritax/internal/statute/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
)

// InMemory keeps overrides per organization. Used by unit tests and local
// development.
type InMemory struct {
	mu        sync.RWMutex
	overrides map[id.OverrideID]*models.Override
}

func NewInMemory() *InMemory {
	return &InMemory{overrides: make(map[id.OverrideID]*models.Override)}
}

func (s *InMemory) Create(_ context.Context, override *models.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.overrides[override.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *override
	s.overrides[override.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgID id.OrgID, overrideID id.OverrideID) (*models.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	override, ok := s.overrides[overrideID]
	if !ok || override.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	clone := *override
	return &clone, nil
}

func (s *InMemory) ListByOrg(_ context.Context, orgID id.OrgID) ([]*models.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Override
	for _, override := range s.overrides {
		if override.OrgID == orgID {
			clone := *override
			matched = append(matched, &clone)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

// ListValidated returns only VALIDATED overrides for the (state, taxType)
// pair with an effective date on or before asOf. PENDING rows are excluded
// here, by construction, so the evaluation engine can never see them.
func (s *InMemory) ListValidated(_ context.Context, orgID id.OrgID, stateCode id.StateCode, taxType id.TaxType, asOf time.Time) ([]*models.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Override
	for _, override := range s.overrides {
		if override.OrgID != orgID || !override.IsValidated() {
			continue
		}
		if override.StateCode != stateCode || override.TaxType != taxType {
			continue
		}
		if override.EffectiveDate.After(asOf) {
			continue
		}
		clone := *override
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].EffectiveDate.Before(matched[j].EffectiveDate)
	})
	return matched, nil
}

// Execute atomically validates and mutates an override under the store lock.
func (s *InMemory) Execute(
	_ context.Context,
	orgID id.OrgID,
	overrideID id.OverrideID,
	validate func(*models.Override) error,
	mutate func(*models.Override),
) (*models.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	override, ok := s.overrides[overrideID]
	if !ok || override.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(override); err != nil {
		return nil, err
	}
	mutate(override)
	clone := *override
	return &clone, nil
}
