package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"veritax/internal/memo/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
)

// Postgres persists memos and their verification history.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const memoColumns = `
	id, org_id, client_id, memo_type, title, sections,
	conclusion, recommendations, supersedes_memo_id,
	status, hash, sealed_at, sealed_by, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, memo *models.Memo) error {
	query := `
		INSERT INTO memos (` + memoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(memo.ID),
		uuid.UUID(memo.OrgID),
		uuid.UUID(memo.ClientID),
		string(memo.MemoType),
		memo.Title,
		nullableRaw(memo.Sections),
		memo.Conclusion,
		memo.Recommendations,
		nullableMemoID(memo.SupersedesMemoID),
		string(memo.Status),
		memo.Hash,
		nullableTime(memo.SealedAt),
		nullableUserID(memo.SealedBy),
		memo.CreatedAt,
		memo.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert memo: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, orgID id.OrgID, memoID id.MemoID) (*models.Memo, error) {
	query := `
		SELECT ` + memoColumns + `
		FROM memos
		WHERE org_id = $1 AND id = $2
	`
	return scanMemo(s.db.QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(memoID)))
}

func (s *Postgres) ListByClient(ctx context.Context, orgID id.OrgID, clientID id.ClientID) ([]*models.Memo, error) {
	query := `
		SELECT ` + memoColumns + `
		FROM memos
		WHERE org_id = $1 AND client_id = $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), uuid.UUID(clientID))
	if err != nil {
		return nil, fmt.Errorf("list memos: %w", err)
	}
	defer rows.Close()

	var memos []*models.Memo
	for rows.Next() {
		memo, err := scanMemo(rows)
		if err != nil {
			return nil, err
		}
		memos = append(memos, memo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memos: %w", err)
	}
	return memos, nil
}

// Execute loads the memo FOR UPDATE, runs validation and mutation, and writes
// the sealing fields back inside one transaction.
func (s *Postgres) Execute(
	ctx context.Context,
	orgID id.OrgID,
	memoID id.MemoID,
	validate func(*models.Memo) error,
	mutate func(*models.Memo),
) (*models.Memo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		SELECT ` + memoColumns + `
		FROM memos
		WHERE org_id = $1 AND id = $2
		FOR UPDATE
	`
	memo, err := scanMemo(tx.QueryRowContext(ctx, query, uuid.UUID(orgID), uuid.UUID(memoID)))
	if err != nil {
		return nil, err
	}
	if err := validate(memo); err != nil {
		return nil, err
	}
	mutate(memo)

	update := `
		UPDATE memos
		SET title = $1, sections = $2, conclusion = $3, recommendations = $4,
		    status = $5, hash = $6, sealed_at = $7, sealed_by = $8, updated_at = $9
		WHERE org_id = $10 AND id = $11
	`
	_, err = tx.ExecContext(ctx, update,
		memo.Title,
		nullableRaw(memo.Sections),
		memo.Conclusion,
		memo.Recommendations,
		string(memo.Status),
		memo.Hash,
		nullableTime(memo.SealedAt),
		nullableUserID(memo.SealedBy),
		memo.UpdatedAt,
		uuid.UUID(orgID),
		uuid.UUID(memoID),
	)
	if err != nil {
		return nil, fmt.Errorf("update memo: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit memo update: %w", err)
	}
	return memo, nil
}

// AppendVerification records an integrity check. The table has no update or
// delete path.
func (s *Postgres) AppendVerification(ctx context.Context, verification models.Verification) error {
	query := `
		INSERT INTO memo_verifications (id, memo_id, org_id, status, requested_by, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		verification.ID,
		uuid.UUID(verification.MemoID),
		uuid.UUID(verification.OrgID),
		string(verification.Status),
		uuid.UUID(verification.RequestedBy),
		verification.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *Postgres) ListVerifications(ctx context.Context, orgID id.OrgID, memoID id.MemoID) ([]models.Verification, error) {
	query := `
		SELECT id, memo_id, org_id, status, requested_by, checked_at
		FROM memo_verifications
		WHERE org_id = $1 AND memo_id = $2
		ORDER BY checked_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), uuid.UUID(memoID))
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var verifications []models.Verification
	for rows.Next() {
		var (
			verification models.Verification
			memoID       uuid.UUID
			orgID        uuid.UUID
			status       string
			requestedBy  uuid.UUID
		)
		if err := rows.Scan(&verification.ID, &memoID, &orgID, &status, &requestedBy, &verification.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		verification.MemoID = id.MemoID(memoID)
		verification.OrgID = id.OrgID(orgID)
		verification.Status = id.VerifyStatus(status)
		verification.RequestedBy = id.UserID(requestedBy)
		verifications = append(verifications, verification)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifications: %w", err)
	}
	return verifications, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemo(row rowScanner) (*models.Memo, error) {
	var (
		memo       models.Memo
		memoID     uuid.UUID
		orgID      uuid.UUID
		clientID   uuid.UUID
		memoType   string
		sections   []byte
		supersedes *uuid.UUID
		status     string
		sealedAt   *time.Time
		sealedBy   *uuid.UUID
	)
	err := row.Scan(
		&memoID,
		&orgID,
		&clientID,
		&memoType,
		&memo.Title,
		&sections,
		&memo.Conclusion,
		&memo.Recommendations,
		&supersedes,
		&status,
		&memo.Hash,
		&sealedAt,
		&sealedBy,
		&memo.CreatedAt,
		&memo.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan memo: %w", err)
	}

	memo.ID = id.MemoID(memoID)
	memo.OrgID = id.OrgID(orgID)
	memo.ClientID = id.ClientID(clientID)
	memo.MemoType = id.MemoType(memoType)
	memo.Sections = sections
	memo.Status = id.MemoStatus(status)
	memo.SealedAt = sealedAt
	if supersedes != nil {
		sid := id.MemoID(*supersedes)
		memo.SupersedesMemoID = &sid
	}
	if sealedBy != nil {
		sb := id.UserID(*sealedBy)
		memo.SealedBy = &sb
	}
	return &memo, nil
}

func nullableRaw(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func nullableMemoID(value *id.MemoID) any {
	if value == nil {
		return nil
	}
	return uuid.UUID(*value)
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
