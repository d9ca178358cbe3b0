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

// StatePostgres persists client states. The (client_id, state_code) unique
// constraint backs the upsert.
type StatePostgres struct {
	db *sql.DB
}

func NewStatePostgres(db *sql.DB) *StatePostgres {
	return &StatePostgres{db: db}
}

const stateColumns = `
	id, org_id, client_id, state_code, state_name, status,
	threshold_amount, current_amount,
	registration_required, registration_date, registration_number,
	created_at, updated_at
`

// Upsert inserts or refreshes the row for (client_id, state_code) and returns
// the stored record.
func (s *StatePostgres) Upsert(ctx context.Context, state *models.ClientState) (*models.ClientState, error) {
	query := `
		INSERT INTO client_states (` + stateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (client_id, state_code) DO UPDATE SET
			state_name = EXCLUDED.state_name,
			status = EXCLUDED.status,
			threshold_amount = EXCLUDED.threshold_amount,
			current_amount = EXCLUDED.current_amount,
			registration_required = EXCLUDED.registration_required,
			registration_date = EXCLUDED.registration_date,
			registration_number = EXCLUDED.registration_number,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + stateColumns + `
	`
	row := s.db.QueryRowContext(ctx, query,
		state.ID,
		uuid.UUID(state.OrgID),
		uuid.UUID(state.ClientID),
		state.StateCode.String(),
		state.StateName,
		string(state.Status),
		state.ThresholdAmount,
		state.CurrentAmount,
		state.RegistrationRequired,
		nullableTimePtr(state.RegistrationDate),
		state.RegistrationNumber,
		state.CreatedAt,
		state.UpdatedAt,
	)
	return scanState(row)
}

func (s *StatePostgres) FindByClientAndState(ctx context.Context, orgID id.OrgID, clientID id.ClientID, stateCode id.StateCode) (*models.ClientState, error) {
	query := `
		SELECT ` + stateColumns + `
		FROM client_states
		WHERE org_id = $1 AND client_id = $2 AND state_code = $3
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(clientID), stateCode.String())
	return scanState(row)
}

func (s *StatePostgres) ListByClient(ctx context.Context, orgID id.OrgID, clientID id.ClientID) ([]*models.ClientState, error) {
	query := `
		SELECT ` + stateColumns + `
		FROM client_states
		WHERE org_id = $1 AND client_id = $2
		ORDER BY state_code ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), uuid.UUID(clientID))
	if err != nil {
		return nil, fmt.Errorf("list client states: %w", err)
	}
	defer rows.Close()
	return scanStates(rows)
}

func (s *StatePostgres) ListByState(ctx context.Context, orgID id.OrgID, stateCode id.StateCode) ([]*models.ClientState, error) {
	query := `
		SELECT ` + stateColumns + `
		FROM client_states
		WHERE org_id = $1 AND state_code = $2
		ORDER BY client_id ASC, state_code ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), stateCode.String())
	if err != nil {
		return nil, fmt.Errorf("list states by code: %w", err)
	}
	defer rows.Close()
	return scanStates(rows)
}

func scanState(row rowScanner) (*models.ClientState, error) {
	var (
		state     models.ClientState
		orgID     uuid.UUID
		clientID  uuid.UUID
		stateCode string
		status    string
		regDate   *time.Time
	)
	err := row.Scan(
		&state.ID,
		&orgID,
		&clientID,
		&stateCode,
		&state.StateName,
		&status,
		&state.ThresholdAmount,
		&state.CurrentAmount,
		&state.RegistrationRequired,
		&regDate,
		&state.RegistrationNumber,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan client state: %w", err)
	}
	state.OrgID = id.OrgID(orgID)
	state.ClientID = id.ClientID(clientID)
	state.StateCode = id.StateCode(stateCode)
	state.Status = id.StateStatus(status)
	state.RegistrationDate = regDate
	return &state, nil
}

func scanStates(rows *sql.Rows) ([]*models.ClientState, error) {
	var states []*models.ClientState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client states: %w", err)
	}
	return states, nil
}

func nullableTimePtr(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}
