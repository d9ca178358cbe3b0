package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veritax/internal/statute/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
	orgID id.OrgID
	now   time.Time
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.orgID = id.OrgID(uuid.New())
	s.now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) newOverride(stateCode id.StateCode, threshold float64, effective time.Time) *models.Override {
	override, err := models.NewOverride(
		id.OverrideID(uuid.New()),
		s.orgID,
		stateCode,
		id.TaxSales,
		id.ChangeThresholdAdjustment,
		nil, models.ThresholdPayload{Threshold: threshold},
		effective,
		"state notice", "", "",
		id.UserID(uuid.New()),
		s.now,
	)
	s.Require().NoError(err)
	return override
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	override := s.newOverride("CA", 600_000, s.now)
	s.Require().NoError(s.store.Create(s.ctx, override))

	found, err := s.store.FindByID(s.ctx, s.orgID, override.ID)
	s.Require().NoError(err)
	s.Equal(override.ID, found.ID)

	s.ErrorIs(s.store.Create(s.ctx, override), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestFindScopedToOrg() {
	override := s.newOverride("CA", 600_000, s.now)
	s.Require().NoError(s.store.Create(s.ctx, override))

	_, err := s.store.FindByID(s.ctx, id.OrgID(uuid.New()), override.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListValidatedExcludesPending() {
	pending := s.newOverride("CA", 600_000, s.now.AddDate(0, -1, 0))
	validated := s.newOverride("CA", 450_000, s.now.AddDate(0, -2, 0))
	validated.ApplyValidation(id.UserID(uuid.New()), s.now)
	otherState := s.newOverride("NY", 500_000, s.now.AddDate(0, -1, 0))
	otherState.ApplyValidation(id.UserID(uuid.New()), s.now)
	future := s.newOverride("CA", 100_000, s.now.AddDate(0, 3, 0))
	future.ApplyValidation(id.UserID(uuid.New()), s.now)

	for _, o := range []*models.Override{pending, validated, otherState, future} {
		s.Require().NoError(s.store.Create(s.ctx, o))
	}

	matched, err := s.store.ListValidated(s.ctx, s.orgID, "CA", id.TaxSales, s.now)
	s.Require().NoError(err)
	s.Require().Len(matched, 1)
	s.Equal(validated.ID, matched[0].ID)
}

func (s *InMemoryStoreSuite) TestListValidatedSortedByEffectiveDate() {
	older := s.newOverride("CA", 600_000, s.now.AddDate(0, -3, 0))
	newer := s.newOverride("CA", 450_000, s.now.AddDate(0, -1, 0))
	older.ApplyValidation(id.UserID(uuid.New()), s.now)
	newer.ApplyValidation(id.UserID(uuid.New()), s.now)

	s.Require().NoError(s.store.Create(s.ctx, newer))
	s.Require().NoError(s.store.Create(s.ctx, older))

	matched, err := s.store.ListValidated(s.ctx, s.orgID, "CA", id.TaxSales, s.now)
	s.Require().NoError(err)
	s.Require().Len(matched, 2)
	s.Equal(older.ID, matched[0].ID)
	s.Equal(newer.ID, matched[1].ID)
}

func (s *InMemoryStoreSuite) TestExecuteAppliesMutation() {
	override := s.newOverride("CA", 600_000, s.now)
	s.Require().NoError(s.store.Create(s.ctx, override))
	partner := id.UserID(uuid.New())

	updated, err := s.store.Execute(s.ctx, s.orgID, override.ID,
		func(o *models.Override) error { return o.CanValidate() },
		func(o *models.Override) { o.ApplyValidation(partner, s.now) },
	)
	s.Require().NoError(err)
	s.Equal(id.OverrideValidated, updated.Status)

	persisted, err := s.store.FindByID(s.ctx, s.orgID, override.ID)
	s.Require().NoError(err)
	s.Equal(id.OverrideValidated, persisted.Status)
}

func (s *InMemoryStoreSuite) TestExecuteValidationFailureLeavesStateUntouched() {
	override := s.newOverride("CA", 600_000, s.now)
	override.ApplyValidation(id.UserID(uuid.New()), s.now)
	s.Require().NoError(s.store.Create(s.ctx, override))

	_, err := s.store.Execute(s.ctx, s.orgID, override.ID,
		func(o *models.Override) error { return o.CanValidate() },
		func(o *models.Override) { s.Fail("mutate must not run after failed validation") },
	)
	s.Require().Error(err)
}
