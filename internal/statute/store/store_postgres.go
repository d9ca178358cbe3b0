package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"veritax/internal/statute/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
	txcontext "veritax/pkg/platform/tx"
)

// Postgres persists statute overrides. Every query is org-scoped.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const overrideColumns = `
	id, org_id, state_code, tax_type, change_type,
	previous_value, new_value, effective_date, source, citation, notes,
	status, entered_by, validated_by, validated_at, created_at
`

func (s *Postgres) Create(ctx context.Context, override *models.Override) error {
	previous, err := models.EncodePayload(override.PreviousValue)
	if err != nil {
		return err
	}
	next, err := models.EncodePayload(override.NewValue)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO statute_overrides (` + overrideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(override.ID),
		uuid.UUID(override.OrgID),
		override.StateCode.String(),
		string(override.TaxType),
		string(override.ChangeType),
		nullableJSON(previous),
		[]byte(next),
		override.EffectiveDate,
		override.Source,
		override.Citation,
		override.Notes,
		string(override.Status),
		uuid.UUID(override.EnteredBy),
		nullableUUID(override.ValidatedBy),
		nullableTime(override.ValidatedAt),
		override.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert override: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, orgID id.OrgID, overrideID id.OverrideID) (*models.Override, error) {
	query := `
		SELECT ` + overrideColumns + `
		FROM statute_overrides
		WHERE org_id = $1 AND id = $2
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(overrideID))
	return scanOverride(row)
}

func (s *Postgres) ListByOrg(ctx context.Context, orgID id.OrgID) ([]*models.Override, error) {
	query := `
		SELECT ` + overrideColumns + `
		FROM statute_overrides
		WHERE org_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()
	return scanOverrides(rows)
}

// ListValidated excludes non-VALIDATED rows in the query itself so the
// evaluation engine cannot observe pending corrections.
func (s *Postgres) ListValidated(ctx context.Context, orgID id.OrgID, stateCode id.StateCode, taxType id.TaxType, asOf time.Time) ([]*models.Override, error) {
	query := `
		SELECT ` + overrideColumns + `
		FROM statute_overrides
		WHERE org_id = $1
		  AND state_code = $2
		  AND tax_type = $3
		  AND status = 'VALIDATED'
		  AND effective_date <= $4
		ORDER BY effective_date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), stateCode.String(), string(taxType), asOf)
	if err != nil {
		return nil, fmt.Errorf("list validated overrides: %w", err)
	}
	defer rows.Close()
	return scanOverrides(rows)
}

// Execute loads the row FOR UPDATE, runs validation and mutation, and writes
// the result back inside one transaction. When the context already carries a
// transaction (see tx.SQL.Within) the row change joins it, so the caller can
// commit the status flip together with other writes, such as the audit row.
func (s *Postgres) Execute(
	ctx context.Context,
	orgID id.OrgID,
	overrideID id.OverrideID,
	validate func(*models.Override) error,
	mutate func(*models.Override),
) (*models.Override, error) {
	if ambient, ok := txcontext.From(ctx); ok {
		return s.executeLocked(ctx, ambient, orgID, overrideID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	override, err := s.executeLocked(ctx, tx, orgID, overrideID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit override update: %w", err)
	}
	return override, nil
}

func (s *Postgres) executeLocked(
	ctx context.Context,
	tx *sql.Tx,
	orgID id.OrgID,
	overrideID id.OverrideID,
	validate func(*models.Override) error,
	mutate func(*models.Override),
) (*models.Override, error) {
	query := `
		SELECT ` + overrideColumns + `
		FROM statute_overrides
		WHERE org_id = $1 AND id = $2
		FOR UPDATE
	`
	override, err := scanOverride(tx.QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(overrideID)))
	if err != nil {
		return nil, err
	}
	if err := validate(override); err != nil {
		return nil, err
	}
	mutate(override)

	update := `
		UPDATE statute_overrides
		SET status = $1, validated_by = $2, validated_at = $3
		WHERE org_id = $4 AND id = $5
	`
	_, err = tx.ExecContext(ctx, update,
		string(override.Status),
		nullableUUID(override.ValidatedBy),
		nullableTime(override.ValidatedAt),
		uuid.UUID(orgID),
		uuid.UUID(overrideID),
	)
	if err != nil {
		return nil, fmt.Errorf("update override: %w", err)
	}
	return override, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverride(row rowScanner) (*models.Override, error) {
	var (
		override    models.Override
		overrideID  uuid.UUID
		orgID       uuid.UUID
		stateCode   string
		taxType     string
		changeType  string
		previous    []byte
		next        []byte
		status      string
		enteredBy   uuid.UUID
		validatedBy *uuid.UUID
		validatedAt *time.Time
	)
	err := row.Scan(
		&overrideID,
		&orgID,
		&stateCode,
		&taxType,
		&changeType,
		&previous,
		&next,
		&override.EffectiveDate,
		&override.Source,
		&override.Citation,
		&override.Notes,
		&status,
		&enteredBy,
		&validatedBy,
		&validatedAt,
		&override.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan override: %w", err)
	}

	override.ID = id.OverrideID(overrideID)
	override.OrgID = id.OrgID(orgID)
	override.StateCode = id.StateCode(stateCode)
	override.TaxType = id.TaxType(taxType)
	override.ChangeType = id.ChangeType(changeType)
	override.Status = id.OverrideStatus(status)
	override.EnteredBy = id.UserID(enteredBy)
	if validatedBy != nil {
		vb := id.UserID(*validatedBy)
		override.ValidatedBy = &vb
	}
	override.ValidatedAt = validatedAt

	if override.PreviousValue, err = models.ParsePayload(override.ChangeType, previous); err != nil {
		return nil, fmt.Errorf("decode previous value: %w", err)
	}
	if override.NewValue, err = models.ParsePayload(override.ChangeType, next); err != nil {
		return nil, fmt.Errorf("decode new value: %w", err)
	}
	return &override, nil
}

func scanOverrides(rows *sql.Rows) ([]*models.Override, error) {
	var overrides []*models.Override
	for rows.Next() {
		override, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, override)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return overrides, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullableUUID(value *id.UserID) any {
	if value == nil {
		return nil
	}
	return uuid.UUID(*value)
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}
