package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"veritax/internal/audit"
	"veritax/internal/nexus/engine"
	nexusModels "veritax/internal/nexus/models"
	"veritax/internal/statute/metrics"
	"veritax/internal/statute/models"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/sentinel"
	"veritax/pkg/platform/tx"
	"veritax/pkg/requestcontext"
)

// Store is the persistence surface the service needs. Implemented by the
// in-memory store, the Postgres store, and the Redis cache decorator.
type Store interface {
	Create(ctx context.Context, override *models.Override) error
	FindByID(ctx context.Context, orgID id.OrgID, overrideID id.OverrideID) (*models.Override, error)
	ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.Override, error)
	ListValidated(ctx context.Context, orgID id.OrgID, stateCode id.StateCode, taxType id.TaxType, asOf time.Time) ([]*models.Override, error)
	Execute(ctx context.Context, orgID id.OrgID, overrideID id.OverrideID, validate func(*models.Override) error, mutate func(*models.Override)) (*models.Override, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ClientStateLister reports the per-client compliance records in one US
// state. Implemented by the nexus service.
type ClientStateLister interface {
	StatesByCode(ctx context.Context, orgID id.OrgID, stateCode id.StateCode) ([]*nexusModels.ClientState, error)
}

// Service orchestrates the statute override workflow: staff enter corrections
// to the regulatory knowledge base, a partner validates them, and only
// validated corrections reach threshold evaluation.
type Service struct {
	store        Store
	clientStates ClientStateLister
	logger       *slog.Logger
	publisher    AuditPublisher
	metrics      *metrics.Metrics
	txRunner     tx.Runner
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClientStates(lister ClientStateLister) Option {
	return func(s *Service) { s.clientStates = lister }
}

// WithTxRunner makes partner validation transactional: the status flip and
// its audit row commit or roll back together. Postgres deployments pass
// tx.NewSQL(db); the default runs without a transaction.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) { s.txRunner = runner }
}

// SetClientStates attaches the nexus lookup after construction. The statute
// and nexus services reference each other, so one side is wired late.
func (s *Service) SetClientStates(lister ClientStateLister) {
	s.clientStates = lister
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.txRunner == nil {
		s.txRunner = tx.Noop{}
	}
	return s
}

// CreateOverride records a staff-entered correction in PENDING status.
func (s *Service) CreateOverride(ctx context.Context, req *models.CreateOverrideRequest) (*models.Override, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	changeType := id.ChangeType(req.ChangeType)
	previous, err := models.ParsePayload(changeType, req.PreviousValue)
	if err != nil {
		return nil, err
	}
	next, err := models.ParsePayload(changeType, req.NewValue)
	if err != nil {
		return nil, err
	}

	override, err := models.NewOverride(
		id.OverrideID(uuid.New()),
		requestcontext.OrgID(ctx),
		id.StateCode(req.StateCode),
		id.TaxType(req.TaxType),
		changeType,
		previous, next,
		req.EffectiveDate,
		req.Source, req.Citation, req.Notes,
		requestcontext.UserID(ctx),
		requestcontext.Now(ctx),
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.Create(ctx, override); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "override already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create override")
	}

	s.logger.InfoContext(ctx, "statute override entered",
		"override_id", override.ID,
		"state_code", override.StateCode,
		"tax_type", override.TaxType,
		"change_type", override.ChangeType,
	)
	_ = s.emit(ctx, audit.ActionOverrideCreated, override,
		fmt.Sprintf("change_type=%s state=%s", override.ChangeType, override.StateCode))
	if s.metrics != nil {
		s.metrics.OverridesCreated.Inc()
	}
	return override, nil
}

// ValidateOverride promotes a PENDING override to VALIDATED. Validating an
// already-validated override is an idempotent no-op that returns the record
// unchanged. The status flip and its audit row run as one unit of work, so a
// transactional runner commits or rolls back both.
func (s *Service) ValidateOverride(ctx context.Context, overrideID id.OverrideID) (*models.Override, error) {
	start := time.Now()
	orgID := requestcontext.OrgID(ctx)
	validatedBy := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)

	var override *models.Override
	err := s.txRunner.Within(ctx, func(ctx context.Context) error {
		validated, err := s.store.Execute(ctx, orgID, overrideID,
			func(o *models.Override) error { return o.CanValidate() },
			func(o *models.Override) { o.ApplyValidation(validatedBy, now) },
		)
		if err != nil {
			return err
		}
		override = validated
		return s.emit(ctx, audit.ActionOverrideValidated, validated,
			fmt.Sprintf("validated_by=%s", validatedBy))
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			// Already validated. Surface the record as-is.
			return s.GetOverride(ctx, overrideID)
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "override not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate override")
	}

	s.logger.InfoContext(ctx, "statute override validated",
		"override_id", override.ID,
		"state_code", override.StateCode,
		"validated_by", validatedBy,
	)
	if s.metrics != nil {
		s.metrics.OverridesValidated.Inc()
		s.metrics.ObserveValidate(start)
	}
	return override, nil
}

// GetOverride returns one override within the caller's organization.
func (s *Service) GetOverride(ctx context.Context, overrideID id.OverrideID) (*models.Override, error) {
	override, err := s.store.FindByID(ctx, requestcontext.OrgID(ctx), overrideID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "override not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load override")
	}
	return override, nil
}

// ListOverrides returns every override for the caller's organization, oldest
// first, pending and validated alike.
func (s *Service) ListOverrides(ctx context.Context) ([]*models.Override, error) {
	overrides, err := s.store.ListByOrg(ctx, requestcontext.OrgID(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list overrides")
	}
	return overrides, nil
}

// EffectiveThreshold resolves the nexus threshold for a state and tax type:
// the statutory base, unless validated THRESHOLD_ADJUSTMENT overrides replace
// it. The last-effective-wins tie-break lives in the engine so there is a
// single definition of it. PENDING overrides never reach this method; the
// stores exclude them.
func (s *Service) EffectiveThreshold(ctx context.Context, orgID id.OrgID, stateCode id.StateCode, taxType id.TaxType, base float64, asOf time.Time) (float64, error) {
	overrides, err := s.store.ListValidated(ctx, orgID, stateCode, taxType, asOf)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load validated overrides")
	}
	return engine.EffectiveThreshold(base, overrides, asOf), nil
}

// AffectedClients reports the client states touched by an override's state
// code. A pending override affects nothing yet, so it yields an empty list.
func (s *Service) AffectedClients(ctx context.Context, overrideID id.OverrideID) ([]*nexusModels.ClientState, error) {
	override, err := s.GetOverride(ctx, overrideID)
	if err != nil {
		return nil, err
	}
	if !override.IsValidated() {
		return []*nexusModels.ClientState{}, nil
	}
	if s.clientStates == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "client state lookup not configured")
	}
	states, err := s.clientStates.StatesByCode(ctx, requestcontext.OrgID(ctx), override.StateCode)
	if err != nil {
		return nil, err
	}
	if states == nil {
		states = []*nexusModels.ClientState{}
	}
	return states, nil
}

func (s *Service) emit(ctx context.Context, action string, override *models.Override, details string) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Emit(ctx, audit.Event{
		Action:     action,
		EntityType: "statute_override",
		EntityID:   override.ID.String(),
		Details:    details,
	})
}
