package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"veritax/internal/nexus/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
)

// AlertPostgres persists nexus alerts. A partial unique index on
// (client_id, state_code) WHERE status = 'open' makes the open-alert upsert
// race-free without explicit locking.
type AlertPostgres struct {
	db *sql.DB
}

func NewAlertPostgres(db *sql.DB) *AlertPostgres {
	return &AlertPostgres{db: db}
}

const alertColumns = `
	id, org_id, client_id, state_code, alert_type, priority, status,
	title, description, current_amount, threshold_amount, penalty_risk,
	deadline, active, created_at, updated_at, resolved_at
`

// UpsertOpen inserts the alert or, when an open alert already exists for the
// (client_id, state_code) pair, refreshes that alert's measured amounts.
// Reports whether a new row was created.
func (s *AlertPostgres) UpsertOpen(ctx context.Context, alert *models.NexusAlert) (*models.NexusAlert, bool, error) {
	query := `
		INSERT INTO nexus_alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (client_id, state_code) WHERE status = 'open' DO UPDATE SET
			current_amount = EXCLUDED.current_amount,
			threshold_amount = EXCLUDED.threshold_amount,
			penalty_risk = EXCLUDED.penalty_risk,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + alertColumns + `, (xmax = 0) AS inserted
	`
	row := s.db.QueryRowContext(ctx, query,
		uuid.UUID(alert.ID),
		uuid.UUID(alert.OrgID),
		uuid.UUID(alert.ClientID),
		alert.StateCode.String(),
		alert.AlertType,
		alert.Priority,
		string(alert.Status),
		alert.Title,
		alert.Description,
		alert.CurrentAmount,
		alert.ThresholdAmount,
		alert.PenaltyRisk,
		nullableTimePtr(alert.Deadline),
		alert.Active,
		alert.CreatedAt,
		alert.UpdatedAt,
		nullableTimePtr(alert.ResolvedAt),
	)

	var inserted bool
	stored, err := scanAlertWith(row, &inserted)
	if err != nil {
		return nil, false, err
	}
	return stored, inserted, nil
}

func (s *AlertPostgres) FindByID(ctx context.Context, orgID id.OrgID, alertID id.AlertID) (*models.NexusAlert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM nexus_alerts
		WHERE org_id = $1 AND id = $2
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(alertID))
	return scanAlert(row)
}

// ListByOrg returns alerts newest first. An empty status lists all of them.
func (s *AlertPostgres) ListByOrg(ctx context.Context, orgID id.OrgID, status id.AlertStatus) ([]*models.NexusAlert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM nexus_alerts
		WHERE org_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), string(status))
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.NexusAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

// Execute loads the alert FOR UPDATE, runs validation and mutation, and
// writes the lifecycle fields back inside one transaction.
func (s *AlertPostgres) Execute(
	ctx context.Context,
	orgID id.OrgID,
	alertID id.AlertID,
	validate func(*models.NexusAlert) error,
	mutate func(*models.NexusAlert),
) (*models.NexusAlert, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		SELECT ` + alertColumns + `
		FROM nexus_alerts
		WHERE org_id = $1 AND id = $2
		FOR UPDATE
	`
	alert, err := scanAlert(tx.QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(alertID)))
	if err != nil {
		return nil, err
	}
	if err := validate(alert); err != nil {
		return nil, err
	}
	mutate(alert)

	update := `
		UPDATE nexus_alerts
		SET status = $1, active = $2, updated_at = $3, resolved_at = $4,
		    current_amount = $5, penalty_risk = $6
		WHERE org_id = $7 AND id = $8
	`
	_, err = tx.ExecContext(ctx, update,
		string(alert.Status),
		alert.Active,
		alert.UpdatedAt,
		nullableTimePtr(alert.ResolvedAt),
		alert.CurrentAmount,
		alert.PenaltyRisk,
		uuid.UUID(orgID),
		uuid.UUID(alertID),
	)
	if err != nil {
		return nil, fmt.Errorf("update alert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit alert update: %w", err)
	}
	return alert, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*models.NexusAlert, error) {
	return scanAlertWith(row)
}

func scanAlertWith(row rowScanner, extra ...any) (*models.NexusAlert, error) {
	var (
		alert      models.NexusAlert
		alertID    uuid.UUID
		orgID      uuid.UUID
		clientID   uuid.UUID
		stateCode  string
		status     string
		deadline   *time.Time
		resolvedAt *time.Time
	)
	dest := []any{
		&alertID,
		&orgID,
		&clientID,
		&stateCode,
		&alert.AlertType,
		&alert.Priority,
		&status,
		&alert.Title,
		&alert.Description,
		&alert.CurrentAmount,
		&alert.ThresholdAmount,
		&alert.PenaltyRisk,
		&deadline,
		&alert.Active,
		&alert.CreatedAt,
		&alert.UpdatedAt,
		&resolvedAt,
	}
	dest = append(dest, extra...)

	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	alert.ID = id.AlertID(alertID)
	alert.OrgID = id.OrgID(orgID)
	alert.ClientID = id.ClientID(clientID)
	alert.StateCode = id.StateCode(stateCode)
	alert.Status = id.AlertStatus(status)
	alert.Deadline = deadline
	alert.ResolvedAt = resolvedAt
	return &alert, nil
}
