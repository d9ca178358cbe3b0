//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veritax/internal/audit"
	auditpg "veritax/internal/audit/store/postgres"
	"veritax/internal/statute/models"
	"veritax/internal/statute/store"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
	"veritax/pkg/platform/tx"
	"veritax/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "statute_overrides", "audit_events"))
}

func newOverride(orgID id.OrgID, stateCode id.StateCode, effective time.Time) *models.Override {
	override, _ := models.NewOverride(
		id.OverrideID(uuid.New()),
		orgID,
		stateCode, id.TaxSales, id.ChangeThresholdAdjustment,
		nil, models.ThresholdPayload{Threshold: 450_000},
		effective,
		"CDTFA notice", "", "",
		id.UserID(uuid.New()),
		time.Now().UTC().Truncate(time.Microsecond),
	)
	return override
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	orgID := id.OrgID(uuid.New())
	override := newOverride(orgID, "CA", time.Now().UTC())

	s.Require().NoError(s.store.Create(ctx, override))

	found, err := s.store.FindByID(ctx, orgID, override.ID)
	s.Require().NoError(err)
	s.Equal(override.ID, found.ID)
	s.Equal(id.OverridePending, found.Status)

	payload, ok := found.NewValue.(models.ThresholdPayload)
	s.Require().True(ok)
	s.InDelta(450_000, payload.Threshold, 0.001)
}

func (s *PostgresStoreSuite) TestFindByID_WrongOrg() {
	ctx := context.Background()
	override := newOverride(id.OrgID(uuid.New()), "CA", time.Now().UTC())
	s.Require().NoError(s.store.Create(ctx, override))

	_, err := s.store.FindByID(ctx, id.OrgID(uuid.New()), override.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListValidated_FiltersStatusAndDate() {
	ctx := context.Background()
	orgID := id.OrgID(uuid.New())
	now := time.Now().UTC()
	validator := id.UserID(uuid.New())

	pending := newOverride(orgID, "CA", now.AddDate(0, -1, 0))
	s.Require().NoError(s.store.Create(ctx, pending))

	effective := newOverride(orgID, "CA", now.AddDate(0, -2, 0))
	s.Require().NoError(s.store.Create(ctx, effective))
	_, err := s.store.Execute(ctx, orgID, effective.ID,
		func(o *models.Override) error { return o.CanValidate() },
		func(o *models.Override) { o.ApplyValidation(validator, now) },
	)
	s.Require().NoError(err)

	future := newOverride(orgID, "CA", now.AddDate(0, 6, 0))
	s.Require().NoError(s.store.Create(ctx, future))
	_, err = s.store.Execute(ctx, orgID, future.ID,
		func(o *models.Override) error { return o.CanValidate() },
		func(o *models.Override) { o.ApplyValidation(validator, now) },
	)
	s.Require().NoError(err)

	validated, err := s.store.ListValidated(ctx, orgID, "CA", id.TaxSales, now)
	s.Require().NoError(err)
	s.Require().Len(validated, 1)
	s.Equal(effective.ID, validated[0].ID)
}

func (s *PostgresStoreSuite) TestExecute_PersistsValidation() {
	ctx := context.Background()
	orgID := id.OrgID(uuid.New())
	override := newOverride(orgID, "NY", time.Now().UTC())
	s.Require().NoError(s.store.Create(ctx, override))

	validator := id.UserID(uuid.New())
	validatedAt := time.Now().UTC().Truncate(time.Microsecond)
	_, err := s.store.Execute(ctx, orgID, override.ID,
		func(o *models.Override) error { return o.CanValidate() },
		func(o *models.Override) { o.ApplyValidation(validator, validatedAt) },
	)
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, orgID, override.ID)
	s.Require().NoError(err)
	s.Equal(id.OverrideValidated, found.Status)
	s.Require().NotNil(found.ValidatedBy)
	s.Equal(validator, *found.ValidatedBy)
}

func (s *PostgresStoreSuite) TestExecute_JoinsAmbientTransaction() {
	ctx := context.Background()
	orgID := id.OrgID(uuid.New())
	override := newOverride(orgID, "WA", time.Now().UTC())
	s.Require().NoError(s.store.Create(ctx, override))

	auditStore := auditpg.New(s.postgres.DB)
	runner := tx.NewSQL(s.postgres.DB)
	validator := id.UserID(uuid.New())
	now := time.Now().UTC().Truncate(time.Microsecond)

	validateAndAudit := func(ctx context.Context) error {
		_, err := s.store.Execute(ctx, orgID, override.ID,
			func(o *models.Override) error { return o.CanValidate() },
			func(o *models.Override) { o.ApplyValidation(validator, now) },
		)
		if err != nil {
			return err
		}
		return auditStore.Append(ctx, audit.Event{
			ID:         uuid.NewString(),
			OrgID:      orgID,
			ActorID:    validator,
			Action:     audit.ActionOverrideValidated,
			EntityType: "statute_override",
			EntityID:   override.ID.String(),
			Severity:   id.SeverityInfo,
			Timestamp:  now,
		})
	}

	// An error after both writes rolls back the status flip and the audit row.
	abort := errors.New("abort after writes")
	err := runner.Within(ctx, func(ctx context.Context) error {
		if err := validateAndAudit(ctx); err != nil {
			return err
		}
		return abort
	})
	s.Require().ErrorIs(err, abort)

	found, err := s.store.FindByID(ctx, orgID, override.ID)
	s.Require().NoError(err)
	s.Equal(id.OverridePending, found.Status)
	trail, err := auditStore.ListByEntity(ctx, orgID, "statute_override", override.ID.String())
	s.Require().NoError(err)
	s.Empty(trail)

	// The same unit of work, allowed to commit, persists both.
	s.Require().NoError(runner.Within(ctx, validateAndAudit))

	found, err = s.store.FindByID(ctx, orgID, override.ID)
	s.Require().NoError(err)
	s.Equal(id.OverrideValidated, found.Status)
	trail, err = auditStore.ListByEntity(ctx, orgID, "statute_override", override.ID.String())
	s.Require().NoError(err)
	s.Len(trail, 1)
}

func (s *PostgresStoreSuite) TestExecute_FailedValidationLeavesRow() {
	ctx := context.Background()
	orgID := id.OrgID(uuid.New())
	override := newOverride(orgID, "TX", time.Now().UTC())
	s.Require().NoError(s.store.Create(ctx, override))

	validator := id.UserID(uuid.New())
	now := time.Now().UTC()
	_, err := s.store.Execute(ctx, orgID, override.ID,
		func(o *models.Override) error { return o.CanValidate() },
		func(o *models.Override) { o.ApplyValidation(validator, now) },
	)
	s.Require().NoError(err)

	// Second validation trips CanValidate; the row must keep the first signer.
	_, err = s.store.Execute(ctx, orgID, override.ID,
		func(o *models.Override) error { return o.CanValidate() },
		func(o *models.Override) { o.ApplyValidation(id.UserID(uuid.New()), now) },
	)
	s.Require().Error(err)

	found, err := s.store.FindByID(ctx, orgID, override.ID)
	s.Require().NoError(err)
	s.Equal(validator, *found.ValidatedBy)
}
