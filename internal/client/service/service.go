package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"veritax/internal/audit"
	"veritax/internal/client/metrics"
	"veritax/internal/client/models"
	nexusService "veritax/internal/nexus/service"
	"veritax/internal/sanitize"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/sentinel"
	"veritax/pkg/requestcontext"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, client *models.Client) error
	FindByID(ctx context.Context, orgID id.OrgID, clientID id.ClientID) (*models.Client, error)
	ListByOrg(ctx context.Context, orgID id.OrgID, includeArchived bool) ([]*models.Client, error)
	Execute(ctx context.Context, orgID id.OrgID, clientID id.ClientID, validate func(*models.Client) error, mutate func(*models.Client)) (*models.Client, error)
}

// ActivityRecorder feeds sanitized per-state revenue into the threshold
// engine. Implemented by the nexus service.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, raw map[string]any) (*nexusService.Evaluation, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RowFailure reports one rejected row of a batch without failing the batch.
type RowFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult summarizes an ingestion run.
type BatchResult struct {
	Processed   int                        `json:"processed"`
	Failed      int                        `json:"failed"`
	Failures    []RowFailure               `json:"failures,omitempty"`
	Evaluations []*nexusService.Evaluation `json:"evaluations"`
}

// Service manages client onboarding, archival, and revenue ingestion.
type Service struct {
	store     Store
	recorder  ActivityRecorder
	sanitizer *sanitize.Sanitizer
	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *metrics.Metrics
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

// New constructs a Service.
func New(store Store, recorder ActivityRecorder, opts ...Option) *Service {
	s := &Service{store: store, recorder: recorder}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.sanitizer = sanitize.New(s.logger)
	return s
}

// Create onboards a client from a raw record. Sanitization clamps the
// data-quality fields; the org always comes from the authenticated context.
func (s *Service) Create(ctx context.Context, raw map[string]any) (*models.Client, error) {
	orgID := requestcontext.OrgID(ctx)
	if raw == nil {
		raw = map[string]any{}
	}
	if _, ok := raw["organizationId"]; !ok {
		raw["organizationId"] = orgID.String()
	}

	input, err := s.sanitizer.Client(raw)
	if err != nil {
		return nil, err
	}
	recordOrg, err := id.ParseOrgID(input.OrgID)
	if err != nil {
		return nil, err
	}
	if recordOrg != orgID {
		return nil, dErrors.New(dErrors.CodeForbidden, "record belongs to another organization")
	}

	client, err := models.NewClient(
		id.ClientID(uuid.New()),
		orgID,
		input.Name, input.LegalName, input.Industry,
		input.AnnualRevenue,
		id.RiskLevel(input.RiskLevel),
		input.QualityScore,
		input.PenaltyExposure,
		requestcontext.Now(ctx),
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.Create(ctx, client); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create client")
	}

	s.logger.InfoContext(ctx, "client onboarded", "client_id", client.ID, "name", client.Name)
	s.emit(ctx, audit.ActionClientCreated, client.ID, fmt.Sprintf("name=%s", client.Name))
	if s.metrics != nil {
		s.metrics.ClientsCreated.Inc()
	}
	return client, nil
}

// Get returns one client within the caller's organization.
func (s *Service) Get(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	client, err := s.store.FindByID(ctx, requestcontext.OrgID(ctx), clientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "client not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load client")
	}
	return client, nil
}

// List returns the organization's clients, active by default.
func (s *Service) List(ctx context.Context, includeArchived bool) ([]*models.Client, error) {
	clients, err := s.store.ListByOrg(ctx, requestcontext.OrgID(ctx), includeArchived)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list clients")
	}
	return clients, nil
}

// Archive soft-archives a client. The compliance history, alerts included,
// stays queryable.
func (s *Service) Archive(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	now := requestcontext.Now(ctx)
	client, err := s.store.Execute(ctx, requestcontext.OrgID(ctx), clientID,
		func(c *models.Client) error { return c.CanArchive() },
		func(c *models.Client) { c.ApplyArchive(now) },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "client not found")
		}
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive client")
	}

	s.logger.InfoContext(ctx, "client archived", "client_id", client.ID)
	s.emit(ctx, audit.ActionClientArchived, client.ID, "")
	return client, nil
}

// IngestStateRevenue runs a batch of raw per-state revenue rows through the
// threshold engine. Dirty rows are sanitized inside RecordActivity; rows that
// fail the hard validation path are reported per-row and never abort the
// batch.
func (s *Service) IngestStateRevenue(ctx context.Context, clientID id.ClientID, rows []map[string]any) (*BatchResult, error) {
	orgID := requestcontext.OrgID(ctx)

	client, err := s.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !client.Active {
		return nil, dErrors.New(dErrors.CodeConflict, "client is archived")
	}

	result := &BatchResult{Evaluations: []*nexusService.Evaluation{}}
	for i, row := range rows {
		if row == nil {
			row = map[string]any{}
		}
		// The path, not the payload, decides whose data this is.
		row["organizationId"] = orgID.String()
		row["clientId"] = clientID.String()

		evaluation, err := s.recorder.RecordActivity(ctx, row)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, RowFailure{Index: i, Error: dErrors.MessageOf(err)})
			s.logger.WarnContext(ctx, "ingest row rejected",
				"client_id", clientID,
				"row", i,
				"error", err.Error(),
			)
			if s.metrics != nil {
				s.metrics.IngestedRows.WithLabelValues("rejected").Inc()
			}
			continue
		}
		result.Processed++
		result.Evaluations = append(result.Evaluations, evaluation)
		if s.metrics != nil {
			s.metrics.IngestedRows.WithLabelValues("processed").Inc()
		}
	}

	s.emit(ctx, audit.ActionIngestionSanitized, clientID,
		fmt.Sprintf("processed=%d failed=%d", result.Processed, result.Failed))
	return result, nil
}

func (s *Service) emit(ctx context.Context, action string, clientID id.ClientID, details string) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Emit(ctx, audit.Event{
		Action:     action,
		EntityType: "client",
		EntityID:   clientID.String(),
		Details:    details,
	})
}
