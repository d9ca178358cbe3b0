package store

import (
	"context"
	"sort"
	"sync"

	"veritax/internal/nexus/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
)

// AlertInMemory enforces the one-open-alert-per-(clientID, stateCode)
// invariant under its mutex, the same guarantee the Postgres store gets from
// its partial unique index.
type AlertInMemory struct {
	mu     sync.Mutex
	alerts map[id.AlertID]*models.NexusAlert
}

func NewAlertInMemory() *AlertInMemory {
	return &AlertInMemory{alerts: make(map[id.AlertID]*models.NexusAlert)}
}

// UpsertOpen creates the alert unless an open alert already exists for the
// (clientID, stateCode) pair, in which case the existing alert's amounts are
// refreshed instead. Reports whether a new alert was created.
func (s *AlertInMemory) UpsertOpen(_ context.Context, alert *models.NexusAlert) (*models.NexusAlert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.alerts {
		if existing.OrgID != alert.OrgID || existing.Status != id.AlertOpen {
			continue
		}
		if existing.ClientID != alert.ClientID || existing.StateCode != alert.StateCode {
			continue
		}
		existing.Refresh(alert.CurrentAmount, alert.ThresholdAmount, alert.PenaltyRisk, alert.UpdatedAt)
		clone := *existing
		return &clone, false, nil
	}

	clone := *alert
	s.alerts[alert.ID] = &clone
	copied := clone
	return &copied, true, nil
}

func (s *AlertInMemory) FindByID(_ context.Context, orgID id.OrgID, alertID id.AlertID) (*models.NexusAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[alertID]
	if !ok || alert.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	clone := *alert
	return &clone, nil
}

// ListByOrg returns alerts newest first. An empty status lists all of them.
func (s *AlertInMemory) ListByOrg(_ context.Context, orgID id.OrgID, status id.AlertStatus) ([]*models.NexusAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*models.NexusAlert
	for _, alert := range s.alerts {
		if alert.OrgID != orgID {
			continue
		}
		if status != "" && alert.Status != status {
			continue
		}
		clone := *alert
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

// Execute atomically validates and mutates an alert under the store lock.
func (s *AlertInMemory) Execute(
	_ context.Context,
	orgID id.OrgID,
	alertID id.AlertID,
	validate func(*models.NexusAlert) error,
	mutate func(*models.NexusAlert),
) (*models.NexusAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[alertID]
	if !ok || alert.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(alert); err != nil {
		return nil, err
	}
	mutate(alert)
	clone := *alert
	return &clone, nil
}
