package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veritax/internal/audit"
	"veritax/internal/nexus/engine"
	"veritax/internal/nexus/metrics"
	"veritax/internal/nexus/models"
	"veritax/internal/sanitize"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/sentinel"
	"veritax/pkg/requestcontext"
)

// StateStore persists per-(client, state) compliance records.
type StateStore interface {
	Upsert(ctx context.Context, state *models.ClientState) (*models.ClientState, error)
	FindByClientAndState(ctx context.Context, orgID id.OrgID, clientID id.ClientID, stateCode id.StateCode) (*models.ClientState, error)
	ListByClient(ctx context.Context, orgID id.OrgID, clientID id.ClientID) ([]*models.ClientState, error)
	ListByState(ctx context.Context, orgID id.OrgID, stateCode id.StateCode) ([]*models.ClientState, error)
}

// AlertStore persists nexus alerts and guarantees at most one open alert per
// (clientID, stateCode).
type AlertStore interface {
	UpsertOpen(ctx context.Context, alert *models.NexusAlert) (*models.NexusAlert, bool, error)
	FindByID(ctx context.Context, orgID id.OrgID, alertID id.AlertID) (*models.NexusAlert, error)
	ListByOrg(ctx context.Context, orgID id.OrgID, status id.AlertStatus) ([]*models.NexusAlert, error)
	Execute(ctx context.Context, orgID id.OrgID, alertID id.AlertID, validate func(*models.NexusAlert) error, mutate func(*models.NexusAlert)) (*models.NexusAlert, error)
}

// ThresholdResolver supplies the override-adjusted threshold for a state and
// tax type. Implemented by the statute service; only validated overrides ever
// reach the result.
type ThresholdResolver interface {
	EffectiveThreshold(ctx context.Context, orgID id.OrgID, stateCode id.StateCode, taxType id.TaxType, base float64, asOf time.Time) (float64, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Evaluation is the outcome of recording activity for one (client, state).
type Evaluation struct {
	State        *models.ClientState `json:"state"`
	Alert        *models.NexusAlert  `json:"alert,omitempty"`
	AlertCreated bool                `json:"alert_created"`
}

// Service runs the threshold engine: ingestion feeds it raw per-state revenue
// records, it sanitizes them, evaluates status against the override-adjusted
// threshold, and maintains the alert lifecycle.
type Service struct {
	states     StateStore
	alerts     AlertStore
	thresholds ThresholdResolver
	sanitizer  *sanitize.Sanitizer
	engine     engine.Config
	logger     *slog.Logger
	publisher  AuditPublisher
	metrics    *metrics.Metrics
	tracer     trace.Tracer
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

func WithThresholdResolver(resolver ThresholdResolver) Option {
	return func(s *Service) { s.thresholds = resolver }
}

func WithEngineConfig(cfg engine.Config) Option {
	return func(s *Service) { s.engine = cfg }
}

// New constructs a Service.
func New(states StateStore, alerts AlertStore, opts ...Option) *Service {
	s := &Service{
		states: states,
		alerts: alerts,
		tracer: otel.Tracer("veritax/nexus"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.sanitizer = sanitize.New(s.logger)
	return s
}

// RecordActivity ingests one raw per-state revenue record: sanitize, upsert
// the client state, evaluate against the effective threshold, and open or
// refresh an alert when the state is warning or critical. Evaluation never
// auto-resolves an alert; a drop in revenue does not erase a historical
// crossing.
func (s *Service) RecordActivity(ctx context.Context, raw map[string]any) (*Evaluation, error) {
	start := time.Now()

	input, err := s.sanitizer.ClientState(raw)
	if err != nil {
		return nil, err
	}
	orgID, clientID, err := s.resolveTenancy(ctx, input.OrgID, input.ClientID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	ctx, span := s.tracer.Start(ctx, "nexus.evaluate", trace.WithAttributes(
		attribute.String("state_code", input.StateCode.String()),
	))
	defer span.End()

	state, err := s.states.FindByClientAndState(ctx, orgID, clientID, input.StateCode)
	if errors.Is(err, sentinel.ErrNotFound) {
		state, err = models.NewClientState(orgID, clientID, input.StateCode, now)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
	} else if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load client state")
	}

	base := state.ThresholdAmount
	if input.ThresholdAmount != nil {
		base = *input.ThresholdAmount
	}
	if base <= 0 {
		base = engine.DefaultThreshold
	}

	threshold := base
	if s.thresholds != nil {
		threshold, err = s.thresholds.EffectiveThreshold(ctx, orgID, input.StateCode, id.TaxSales, base, now)
		if err != nil {
			return nil, err
		}
	}

	status := s.engine.Evaluate(input.CurrentAmount, threshold)
	span.SetAttributes(attribute.String("status", string(status)))

	if input.StateName != "" {
		state.StateName = input.StateName
	}
	if input.RegistrationNumber != "" {
		state.RegistrationNumber = input.RegistrationNumber
	}
	state.RegistrationRequired = input.RegistrationRequired || status == id.StateCritical
	state.CurrentAmount = input.CurrentAmount
	state.ThresholdAmount = threshold
	state.Status = status
	state.UpdatedAt = now

	stored, err := s.states.Upsert(ctx, state)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to upsert client state")
	}

	evaluation := &Evaluation{State: stored}
	if status != id.StateCompliant {
		alert, created, err := s.upsertAlert(ctx, stored, status, now)
		if err != nil {
			return nil, err
		}
		evaluation.Alert = alert
		evaluation.AlertCreated = created
	}

	s.logger.InfoContext(ctx, "state evaluated",
		"client_id", clientID,
		"state_code", stored.StateCode,
		"status", status,
		"current_amount", stored.CurrentAmount,
		"threshold_amount", stored.ThresholdAmount,
	)
	s.emit(ctx, audit.ActionStateEvaluated, "client_state", stored.ID.String(),
		fmt.Sprintf("state=%s status=%s current=%.2f threshold=%.2f",
			stored.StateCode, status, stored.CurrentAmount, stored.ThresholdAmount))
	if s.metrics != nil {
		s.metrics.Evaluations.WithLabelValues(string(status)).Inc()
		s.metrics.ObserveEvaluate(start)
	}
	return evaluation, nil
}

func (s *Service) upsertAlert(ctx context.Context, state *models.ClientState, status id.StateStatus, now time.Time) (*models.NexusAlert, bool, error) {
	alertType := "threshold_warning"
	priority := "medium"
	title := fmt.Sprintf("Approaching nexus threshold in %s", state.StateCode)
	if status == id.StateCritical {
		alertType = "threshold_exceeded"
		priority = "high"
		title = fmt.Sprintf("Nexus threshold exceeded in %s", state.StateCode)
	}

	alert := &models.NexusAlert{
		ID:              id.AlertID(uuid.New()),
		OrgID:           state.OrgID,
		ClientID:        state.ClientID,
		StateCode:       state.StateCode,
		AlertType:       alertType,
		Priority:        priority,
		Status:          id.AlertOpen,
		Title:           title,
		CurrentAmount:   state.CurrentAmount,
		ThresholdAmount: state.ThresholdAmount,
		PenaltyRisk:     engine.PenaltyRisk(state.CurrentAmount, state.ThresholdAmount),
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	stored, created, err := s.alerts.UpsertOpen(ctx, alert)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to upsert alert")
	}

	if created {
		s.emit(ctx, audit.ActionAlertOpened, "nexus_alert", stored.ID.String(),
			fmt.Sprintf("state=%s type=%s", stored.StateCode, stored.AlertType))
		if s.metrics != nil {
			s.metrics.AlertsOpened.Inc()
		}
	} else {
		s.emit(ctx, audit.ActionAlertUpdated, "nexus_alert", stored.ID.String(),
			fmt.Sprintf("current=%.2f penalty_risk=%.2f", stored.CurrentAmount, stored.PenaltyRisk))
		if s.metrics != nil {
			s.metrics.AlertsRefreshed.Inc()
		}
	}
	return stored, created, nil
}

// ReviewAlert marks an open alert reviewed.
func (s *Service) ReviewAlert(ctx context.Context, alertID id.AlertID) (*models.NexusAlert, error) {
	return s.transitionAlert(ctx, alertID, id.AlertReviewed, audit.ActionAlertReviewed)
}

// ResolveAlert closes the alert. Resolution only happens through this
// explicit action, typically after the client registers in the state.
func (s *Service) ResolveAlert(ctx context.Context, alertID id.AlertID) (*models.NexusAlert, error) {
	alert, err := s.transitionAlert(ctx, alertID, id.AlertResolved, audit.ActionAlertResolved)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.AlertsResolved.Inc()
	}
	return alert, nil
}

func (s *Service) transitionAlert(ctx context.Context, alertID id.AlertID, next id.AlertStatus, action string) (*models.NexusAlert, error) {
	now := requestcontext.Now(ctx)
	alert, err := s.alerts.Execute(ctx, requestcontext.OrgID(ctx), alertID,
		func(a *models.NexusAlert) error { return a.CanTransitionTo(next) },
		func(a *models.NexusAlert) { a.ApplyTransition(next, now) },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "alert not found")
		}
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to transition alert")
	}

	s.logger.InfoContext(ctx, "alert transitioned",
		"alert_id", alert.ID,
		"status", alert.Status,
	)
	s.emit(ctx, action, "nexus_alert", alert.ID.String(), fmt.Sprintf("status=%s", alert.Status))
	return alert, nil
}

// GetAlert returns one alert within the caller's organization.
func (s *Service) GetAlert(ctx context.Context, alertID id.AlertID) (*models.NexusAlert, error) {
	alert, err := s.alerts.FindByID(ctx, requestcontext.OrgID(ctx), alertID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "alert not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load alert")
	}
	return alert, nil
}

// ListAlerts returns the organization's alerts, optionally filtered by status.
func (s *Service) ListAlerts(ctx context.Context, status id.AlertStatus) ([]*models.NexusAlert, error) {
	if status != "" && status != id.AlertOpen && status != id.AlertReviewed && status != id.AlertResolved {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown alert status")
	}
	alerts, err := s.alerts.ListByOrg(ctx, requestcontext.OrgID(ctx), status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list alerts")
	}
	return alerts, nil
}

// ClientStates returns the per-state compliance records for one client.
func (s *Service) ClientStates(ctx context.Context, clientID id.ClientID) ([]*models.ClientState, error) {
	states, err := s.states.ListByClient(ctx, requestcontext.OrgID(ctx), clientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list client states")
	}
	return states, nil
}

// StatesByCode returns every client state in a US state. The statute module
// uses it to report clients affected by a regulatory change.
func (s *Service) StatesByCode(ctx context.Context, orgID id.OrgID, stateCode id.StateCode) ([]*models.ClientState, error) {
	states, err := s.states.ListByState(ctx, orgID, stateCode)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list states by code")
	}
	return states, nil
}

// resolveTenancy checks the record's organization against the authenticated
// one and parses the client identifier. A record for another organization is
// rejected, not silently rescoped.
func (s *Service) resolveTenancy(ctx context.Context, rawOrgID, rawClientID string) (id.OrgID, id.ClientID, error) {
	orgID := requestcontext.OrgID(ctx)
	recordOrg, err := id.ParseOrgID(rawOrgID)
	if err != nil {
		return id.OrgID{}, id.ClientID{}, err
	}
	if recordOrg != orgID {
		return id.OrgID{}, id.ClientID{}, dErrors.New(dErrors.CodeForbidden, "record belongs to another organization")
	}
	clientID, err := id.ParseClientID(rawClientID)
	if err != nil {
		return id.OrgID{}, id.ClientID{}, err
	}
	return orgID, clientID, nil
}

func (s *Service) emit(ctx context.Context, action, entityType, entityID, details string) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Emit(ctx, audit.Event{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	})
}
