package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veritax/internal/nexus/models"
	id "veritax/pkg/domain"
)

type AlertInMemorySuite struct {
	suite.Suite
	ctx   context.Context
	store *AlertInMemory
	orgID id.OrgID
	now   time.Time
}

func (s *AlertInMemorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewAlertInMemory()
	s.orgID = id.OrgID(uuid.New())
	s.now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
}

func TestAlertInMemorySuite(t *testing.T) {
	suite.Run(t, new(AlertInMemorySuite))
}

func (s *AlertInMemorySuite) openAlert(clientID id.ClientID, stateCode id.StateCode, amount float64) *models.NexusAlert {
	return &models.NexusAlert{
		ID:              id.AlertID(uuid.New()),
		OrgID:           s.orgID,
		ClientID:        clientID,
		StateCode:       stateCode,
		AlertType:       "threshold_exceeded",
		Priority:        "high",
		Status:          id.AlertOpen,
		Title:           "Nexus threshold exceeded",
		CurrentAmount:   amount,
		ThresholdAmount: 500_000,
		Active:          true,
		CreatedAt:       s.now,
		UpdatedAt:       s.now,
	}
}

func (s *AlertInMemorySuite) TestUpsertOpenDeduplicates() {
	clientID := id.ClientID(uuid.New())

	first, created, err := s.store.UpsertOpen(s.ctx, s.openAlert(clientID, "CA", 510_000))
	s.Require().NoError(err)
	s.True(created)

	second, created, err := s.store.UpsertOpen(s.ctx, s.openAlert(clientID, "CA", 540_000))
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)
	s.Equal(540_000.0, second.CurrentAmount)
}

func (s *AlertInMemorySuite) TestUpsertOpenIgnoresResolvedAlerts() {
	clientID := id.ClientID(uuid.New())

	first, _, err := s.store.UpsertOpen(s.ctx, s.openAlert(clientID, "CA", 510_000))
	s.Require().NoError(err)

	_, err = s.store.Execute(s.ctx, s.orgID, first.ID,
		func(a *models.NexusAlert) error { return a.CanTransitionTo(id.AlertResolved) },
		func(a *models.NexusAlert) { a.ApplyTransition(id.AlertResolved, s.now) },
	)
	s.Require().NoError(err)

	second, created, err := s.store.UpsertOpen(s.ctx, s.openAlert(clientID, "CA", 600_000))
	s.Require().NoError(err)
	s.True(created)
	s.NotEqual(first.ID, second.ID)
}

func (s *AlertInMemorySuite) TestListByOrgFiltersStatus() {
	clientID := id.ClientID(uuid.New())
	_, _, err := s.store.UpsertOpen(s.ctx, s.openAlert(clientID, "CA", 510_000))
	s.Require().NoError(err)

	open, err := s.store.ListByOrg(s.ctx, s.orgID, id.AlertOpen)
	s.Require().NoError(err)
	s.Len(open, 1)

	resolved, err := s.store.ListByOrg(s.ctx, s.orgID, id.AlertResolved)
	s.Require().NoError(err)
	s.Empty(resolved)

	foreign, err := s.store.ListByOrg(s.ctx, id.OrgID(uuid.New()), "")
	s.Require().NoError(err)
	s.Empty(foreign)
}
