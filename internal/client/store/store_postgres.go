package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"veritax/internal/client/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
)

// Postgres persists clients. Every query is org-scoped.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const clientColumns = `
	id, org_id, name, legal_name, industry,
	annual_revenue, risk_level, quality_score, penalty_exposure,
	active, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(client.ID),
		uuid.UUID(client.OrgID),
		client.Name,
		client.LegalName,
		client.Industry,
		client.AnnualRevenue,
		string(client.RiskLevel),
		client.QualityScore,
		client.PenaltyExposure,
		client.Active,
		client.CreatedAt,
		client.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, orgID id.OrgID, clientID id.ClientID) (*models.Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE org_id = $1 AND id = $2
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(clientID))
	return scanClient(row)
}

func (s *Postgres) ListByOrg(ctx context.Context, orgID id.OrgID, includeArchived bool) ([]*models.Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE org_id = $1 AND ($2 OR active)
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return clients, nil
}

// Execute loads the row FOR UPDATE, runs validation and mutation, and writes
// the result back inside one transaction.
func (s *Postgres) Execute(
	ctx context.Context,
	orgID id.OrgID,
	clientID id.ClientID,
	validate func(*models.Client) error,
	mutate func(*models.Client),
) (*models.Client, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE org_id = $1 AND id = $2
		FOR UPDATE
	`
	client, err := scanClient(tx.QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(clientID)))
	if err != nil {
		return nil, err
	}
	if err := validate(client); err != nil {
		return nil, err
	}
	mutate(client)

	update := `
		UPDATE clients
		SET name = $1, legal_name = $2, industry = $3,
		    annual_revenue = $4, risk_level = $5, quality_score = $6,
		    penalty_exposure = $7, active = $8, updated_at = $9
		WHERE org_id = $10 AND id = $11
	`
	_, err = tx.ExecContext(ctx, update,
		client.Name,
		client.LegalName,
		client.Industry,
		client.AnnualRevenue,
		string(client.RiskLevel),
		client.QualityScore,
		client.PenaltyExposure,
		client.Active,
		client.UpdatedAt,
		uuid.UUID(orgID),
		uuid.UUID(clientID),
	)
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit client update: %w", err)
	}
	return client, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*models.Client, error) {
	var (
		client    models.Client
		clientID  uuid.UUID
		orgID     uuid.UUID
		riskLevel string
	)
	err := row.Scan(
		&clientID,
		&orgID,
		&client.Name,
		&client.LegalName,
		&client.Industry,
		&client.AnnualRevenue,
		&riskLevel,
		&client.QualityScore,
		&client.PenaltyExposure,
		&client.Active,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan client: %w", err)
	}
	client.ID = id.ClientID(clientID)
	client.OrgID = id.OrgID(orgID)
	client.RiskLevel = id.RiskLevel(riskLevel)
	return &client, nil
}
