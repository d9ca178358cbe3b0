package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"veritax/internal/approval/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
)

// Postgres persists approval gates.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const approvalColumns = `
	id, org_id, entity_type, entity_id, approval_type, required_role,
	status, approved_by, approved_at, notes, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, approval *models.Approval) error {
	query := `
		INSERT INTO approvals (` + approvalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(approval.ID),
		uuid.UUID(approval.OrgID),
		approval.EntityType,
		approval.EntityID,
		approval.ApprovalType,
		approval.RequiredRole,
		string(approval.Status),
		nullableUserID(approval.ApprovedBy),
		nullableTime(approval.ApprovedAt),
		approval.Notes,
		approval.CreatedAt,
		approval.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, orgID id.OrgID, approvalID id.ApprovalID) (*models.Approval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approvals
		WHERE org_id = $1 AND id = $2
	`
	return scanApproval(s.db.QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(approvalID)))
}

func (s *Postgres) ListByEntity(ctx context.Context, orgID id.OrgID, entityType, entityID string) ([]*models.Approval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approvals
		WHERE org_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*models.Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, approval)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	return approvals, nil
}

// Execute loads the approval FOR UPDATE, runs validation and mutation, and
// writes the sign-off fields back inside one transaction.
func (s *Postgres) Execute(
	ctx context.Context,
	orgID id.OrgID,
	approvalID id.ApprovalID,
	validate func(*models.Approval) error,
	mutate func(*models.Approval),
) (*models.Approval, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		SELECT ` + approvalColumns + `
		FROM approvals
		WHERE org_id = $1 AND id = $2
		FOR UPDATE
	`
	approval, err := scanApproval(tx.QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(approvalID)))
	if err != nil {
		return nil, err
	}
	if err := validate(approval); err != nil {
		return nil, err
	}
	mutate(approval)

	update := `
		UPDATE approvals
		SET status = $1, approved_by = $2, approved_at = $3, notes = $4, updated_at = $5
		WHERE org_id = $6 AND id = $7
	`
	_, err = tx.ExecContext(ctx, update,
		string(approval.Status),
		nullableUserID(approval.ApprovedBy),
		nullableTime(approval.ApprovedAt),
		approval.Notes,
		approval.UpdatedAt,
		uuid.UUID(orgID),
		uuid.UUID(approvalID),
	)
	if err != nil {
		return nil, fmt.Errorf("update approval: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval update: %w", err)
	}
	return approval, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (*models.Approval, error) {
	var (
		approval   models.Approval
		approvalID uuid.UUID
		orgID      uuid.UUID
		status     string
		approvedBy *uuid.UUID
		approvedAt *time.Time
	)
	err := row.Scan(
		&approvalID,
		&orgID,
		&approval.EntityType,
		&approval.EntityID,
		&approval.ApprovalType,
		&approval.RequiredRole,
		&status,
		&approvedBy,
		&approvedAt,
		&approval.Notes,
		&approval.CreatedAt,
		&approval.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan approval: %w", err)
	}

	approval.ID = id.ApprovalID(approvalID)
	approval.OrgID = id.OrgID(orgID)
	approval.Status = id.ApprovalStatus(status)
	approval.ApprovedAt = approvedAt
	if approvedBy != nil {
		by := id.UserID(*approvedBy)
		approval.ApprovedBy = &by
	}
	return &approval, nil
}

func nullableUserID(value *id.UserID) any {
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
