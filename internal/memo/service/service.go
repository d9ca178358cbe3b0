package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"veritax/internal/audit"
	"veritax/internal/memo/models"
	"veritax/internal/memo/seal"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/platform/sentinel"
	"veritax/pkg/requestcontext"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, memo *models.Memo) error
	FindByID(ctx context.Context, orgID id.OrgID, memoID id.MemoID) (*models.Memo, error)
	ListByClient(ctx context.Context, orgID id.OrgID, clientID id.ClientID) ([]*models.Memo, error)
	Execute(ctx context.Context, orgID id.OrgID, memoID id.MemoID, validate func(*models.Memo) error, mutate func(*models.Memo)) (*models.Memo, error)
	AppendVerification(ctx context.Context, verification models.Verification) error
	ListVerifications(ctx context.Context, orgID id.OrgID, memoID id.MemoID) ([]models.Verification, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// CreateMemoRequest is the wire shape for drafting a memo.
type CreateMemoRequest struct {
	ClientID         string          `json:"clientId"`
	MemoType         string          `json:"memoType"`
	Title            string          `json:"title"`
	Sections         json.RawMessage `json:"sections,omitempty"`
	Conclusion       string          `json:"conclusion,omitempty"`
	Recommendations  string          `json:"recommendations,omitempty"`
	SupersedesMemoID string          `json:"supersedesMemoId,omitempty"`
}

// UpdateMemoRequest carries draft content changes. Nil fields are untouched.
type UpdateMemoRequest struct {
	Title           *string          `json:"title,omitempty"`
	Sections        *json.RawMessage `json:"sections,omitempty"`
	Conclusion      *string          `json:"conclusion,omitempty"`
	Recommendations *string          `json:"recommendations,omitempty"`
}

// VerifyResult is the outcome of an integrity check. TAMPERED is a business
// outcome, not an error; the HTTP status is 200 either way.
type VerifyResult struct {
	MemoID      id.MemoID       `json:"memo_id"`
	Status      id.VerifyStatus `json:"status"`
	Verified    bool            `json:"verified"`
	StoredHash  string          `json:"stored_hash,omitempty"`
	CurrentHash string          `json:"current_hash,omitempty"`
	CheckedAt   time.Time       `json:"checked_at"`
}

// Service manages memo drafting, sealing, and integrity verification.
type Service struct {
	store     Store
	logger    *slog.Logger
	publisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
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
	return s
}

// CreateMemo drafts a memo. When the memo supersedes another, the revision
// chain is walked to guarantee it stays acyclic and inside the organization.
func (s *Service) CreateMemo(ctx context.Context, req *CreateMemoRequest) (*models.Memo, error) {
	orgID := requestcontext.OrgID(ctx)

	clientID, err := id.ParseClientID(strings.TrimSpace(req.ClientID))
	if err != nil {
		return nil, err
	}

	var supersedes *id.MemoID
	if strings.TrimSpace(req.SupersedesMemoID) != "" {
		parsed, err := id.ParseMemoID(req.SupersedesMemoID)
		if err != nil {
			return nil, err
		}
		if err := s.checkRevisionChain(ctx, orgID, parsed); err != nil {
			return nil, err
		}
		supersedes = &parsed
	}

	memo, err := models.NewMemo(
		id.MemoID(uuid.New()),
		orgID,
		clientID,
		id.MemoType(strings.ToUpper(strings.TrimSpace(req.MemoType))),
		strings.TrimSpace(req.Title),
		req.Sections,
		req.Conclusion,
		req.Recommendations,
		supersedes,
		requestcontext.Now(ctx),
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.Create(ctx, memo); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create memo")
	}

	s.logger.InfoContext(ctx, "memo drafted", "memo_id", memo.ID, "memo_type", memo.MemoType)
	s.emit(ctx, audit.ActionMemoCreated, memo.ID, fmt.Sprintf("type=%s", memo.MemoType))
	return memo, nil
}

// checkRevisionChain walks supersedes links from the given memo. Every hop
// must exist in the organization and no memo may be visited twice.
func (s *Service) checkRevisionChain(ctx context.Context, orgID id.OrgID, start id.MemoID) error {
	visited := map[id.MemoID]bool{}
	current := start
	for {
		if visited[current] {
			return dErrors.New(dErrors.CodeValidation, "memo revision chain contains a cycle")
		}
		visited[current] = true

		memo, err := s.store.FindByID(ctx, orgID, current)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "superseded memo not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to walk revision chain")
		}
		if memo.SupersedesMemoID == nil {
			return nil
		}
		current = *memo.SupersedesMemoID
	}
}

// GetMemo returns one memo within the caller's organization.
func (s *Service) GetMemo(ctx context.Context, memoID id.MemoID) (*models.Memo, error) {
	memo, err := s.store.FindByID(ctx, requestcontext.OrgID(ctx), memoID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "memo not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load memo")
	}
	return memo, nil
}

// ListMemos returns a client's memos, oldest first.
func (s *Service) ListMemos(ctx context.Context, clientID id.ClientID) ([]*models.Memo, error) {
	memos, err := s.store.ListByClient(ctx, requestcontext.OrgID(ctx), clientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list memos")
	}
	return memos, nil
}

// UpdateMemo edits draft content. A sealed memo rejects every content change.
func (s *Service) UpdateMemo(ctx context.Context, memoID id.MemoID, req *UpdateMemoRequest) (*models.Memo, error) {
	now := requestcontext.Now(ctx)
	memo, err := s.store.Execute(ctx, requestcontext.OrgID(ctx), memoID,
		func(m *models.Memo) error { return m.CanMutate() },
		func(m *models.Memo) {
			if req.Title != nil {
				m.Title = strings.TrimSpace(*req.Title)
			}
			if req.Sections != nil {
				m.Sections = *req.Sections
			}
			if req.Conclusion != nil {
				m.Conclusion = *req.Conclusion
			}
			if req.Recommendations != nil {
				m.Recommendations = *req.Recommendations
			}
			m.UpdatedAt = now
		},
	)
	if err != nil {
		return nil, s.translateStoreErr(err, "failed to update memo")
	}
	return memo, nil
}

// Seal freezes the memo content and records its digest. The optional PDF
// rendering is mixed into the digest so the archived document is covered too.
func (s *Service) Seal(ctx context.Context, memoID id.MemoID, pdf []byte) (*models.Memo, error) {
	now := requestcontext.Now(ctx)
	sealedBy := requestcontext.UserID(ctx)

	// The digest is computed in the validation step so a memo whose sections
	// cannot be canonicalized is never sealed with an empty hash.
	var hash string
	memo, err := s.store.Execute(ctx, requestcontext.OrgID(ctx), memoID,
		func(m *models.Memo) error {
			if err := m.CanSeal(); err != nil {
				return err
			}
			digest, err := seal.Digest(sealContent(m), pdf)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeValidation, "memo content cannot be digested")
			}
			hash = digest
			return nil
		},
		func(m *models.Memo) { m.ApplySeal(hash, sealedBy, now) },
	)
	if err != nil {
		return nil, s.translateStoreErr(err, "failed to seal memo")
	}

	s.logger.InfoContext(ctx, "memo sealed", "memo_id", memo.ID, "hash", memo.Hash)
	s.emit(ctx, audit.ActionMemoSealed, memo.ID, fmt.Sprintf("hash=%s", memo.Hash))
	return memo, nil
}

// Verify recomputes the digest and compares it with the sealed hash. Every
// check, whatever its outcome, lands in the memo's verification history.
func (s *Service) Verify(ctx context.Context, memoID id.MemoID, pdf []byte) (*VerifyResult, error) {
	memo, err := s.GetMemo(ctx, memoID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	status := id.VerifyNotSealed
	var currentHash string
	if memo.IsSealed() {
		currentHash, err = seal.Digest(sealContent(memo), pdf)
		if err != nil {
			return nil, err
		}
		if currentHash == memo.Hash {
			status = id.VerifyVerified
		} else {
			status = id.VerifyTampered
		}
	}

	verification := models.Verification{
		ID:          uuid.New(),
		MemoID:      memo.ID,
		OrgID:       memo.OrgID,
		Status:      status,
		RequestedBy: requestcontext.UserID(ctx),
		CheckedAt:   now,
	}
	if err := s.store.AppendVerification(ctx, verification); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification")
	}

	if status == id.VerifyTampered {
		s.logger.WarnContext(ctx, "memo integrity check failed", "memo_id", memo.ID)
	}
	s.emitWithSeverity(ctx, audit.ActionMemoVerified, memo.ID,
		fmt.Sprintf("status=%s", status), severityFor(status))
	return &VerifyResult{
		MemoID:      memo.ID,
		Status:      status,
		Verified:    status == id.VerifyVerified,
		StoredHash:  memo.Hash,
		CurrentHash: currentHash,
		CheckedAt:   now,
	}, nil
}

// Verifications returns the memo's full integrity-check history.
func (s *Service) Verifications(ctx context.Context, memoID id.MemoID) ([]models.Verification, error) {
	if _, err := s.GetMemo(ctx, memoID); err != nil {
		return nil, err
	}
	verifications, err := s.store.ListVerifications(ctx, requestcontext.OrgID(ctx), memoID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifications")
	}
	return verifications, nil
}

func sealContent(m *models.Memo) seal.Content {
	return seal.Content{
		MemoID:          m.ID.String(),
		ClientID:        m.ClientID.String(),
		MemoType:        string(m.MemoType),
		Title:           m.Title,
		Sections:        m.Sections,
		Conclusion:      m.Conclusion,
		Recommendations: m.Recommendations,
	}
}

func severityFor(status id.VerifyStatus) id.Severity {
	if status == id.VerifyTampered {
		return id.SeverityError
	}
	return id.SeverityInfo
}

func (s *Service) translateStoreErr(err error, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "memo not found")
	}
	if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeValidation) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}

func (s *Service) emit(ctx context.Context, action string, memoID id.MemoID, details string) {
	s.emitWithSeverity(ctx, action, memoID, details, id.SeverityInfo)
}

func (s *Service) emitWithSeverity(ctx context.Context, action string, memoID id.MemoID, details string, severity id.Severity) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Emit(ctx, audit.Event{
		Action:     action,
		EntityType: "memo",
		EntityID:   memoID.String(),
		Details:    details,
		Severity:   severity,
	})
}
